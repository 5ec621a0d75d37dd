// Package loader reads the raw Olist CSV exports into memory.
//
// Tables are kept as strings with a header index; the transform package owns
// every type conversion. When required files are absent, LoadRequired returns a
// *MissingFilesError naming all of them, and a Fetcher can fill the gap from an
// HTTP archive or an S3 prefix before loading again.
package loader
