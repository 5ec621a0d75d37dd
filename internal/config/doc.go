// Package config provides centralized configuration for the delivery dashboard.
//
// # Configuration Sources
//
// Configuration is assembled in order of increasing precedence:
//
//	1. Default values (Default)
//	2. An optional YAML file (config.yaml, configs/config.yaml or DELIVERY_CONFIG_FILE)
//	3. Environment variables
//
// # Environment Variables
//
// Variables follow the pattern DELIVERY_<SECTION>_<FIELD>:
//
//	DELIVERY_SERVER_PORT=8501
//	DELIVERY_PATHS_RAW_DIR=/srv/olist/raw
//	DELIVERY_SOURCE_URL=https://example.org/brazilian-ecommerce.zip
//	DELIVERY_SOURCE_S3_BUCKET=analytics-datasets
//	DELIVERY_LOGGING_LEVEL=debug
//
// # Paths
//
// Relative directories are resolved against Paths.BaseDir by ResolvePaths.
// The raw directory holds the seven Olist CSVs listed in RequiredCSVs; the processed
// directory holds the single cached fact table (FactTableFileName).
package config
