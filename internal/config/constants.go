package config

// Application constants
const (
	AppName    = "Delivery Pulse"
	AppVersion = "1.0.0"

	// Directory defaults, relative to the base directory
	DefaultRawDir       = "data/raw"
	DefaultProcessedDir = "data/processed"
	DefaultLogsDir      = "logs"

	// FactTableFileName is the processed cache file inside the processed directory
	FactTableFileName = "fact_orders.db"

	// ExportBaseName names downloaded exports (fact_orders.csv, fact_orders.xlsx)
	ExportBaseName = "fact_orders"

	// MaxHistogramBins caps the delay histogram resolution
	MaxHistogramBins = 50
)

// Raw dataset file names
const (
	OrdersFile              = "olist_orders_dataset.csv"
	CustomersFile           = "olist_customers_dataset.csv"
	OrderItemsFile          = "olist_order_items_dataset.csv"
	OrderPaymentsFile       = "olist_order_payments_dataset.csv"
	ProductsFile            = "olist_products_dataset.csv"
	CategoryTranslationFile = "product_category_name_translation.csv"
	GeolocationFile         = "olist_geolocation_dataset.csv"
)

// RequiredCSVs is the minimum set of raw files needed to build the fact table
var RequiredCSVs = []string{
	OrdersFile,
	CustomersFile,
	OrderItemsFile,
	OrderPaymentsFile,
	ProductsFile,
	CategoryTranslationFile,
	GeolocationFile,
}
