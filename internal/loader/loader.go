package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deliverypulse/internal/config"
	"deliverypulse/internal/infrastructure"
)

// ErrMissingFiles is matched by errors.Is for any MissingFilesError
var ErrMissingFiles = errors.New("required data files missing")

// MissingFilesError lists every required file absent from the raw directory
type MissingFilesError struct {
	Dir   string
	Files []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("missing required files in %s: %s", e.Dir, strings.Join(e.Files, ", "))
}

// Is makes errors.Is(err, ErrMissingFiles) true
func (e *MissingFilesError) Is(target error) bool {
	return target == ErrMissingFiles
}

// Tables holds the seven raw inputs of the pipeline
type Tables struct {
	Orders              *Table
	Customers           *Table
	OrderItems          *Table
	OrderPayments       *Table
	Products            *Table
	CategoryTranslation *Table
	Geolocation         *Table
}

type tableSpec struct {
	file    string
	columns []string
	assign  func(*Tables, *Table)
}

var tableSpecs = []tableSpec{
	{
		file: config.OrdersFile,
		columns: []string{
			"order_id", "customer_id", "order_status", "order_purchase_timestamp",
			"order_approved_at", "order_delivered_carrier_date",
			"order_delivered_customer_date", "order_estimated_delivery_date",
		},
		assign: func(ts *Tables, t *Table) { ts.Orders = t },
	},
	{
		file:    config.CustomersFile,
		columns: []string{"customer_id", "customer_unique_id", "customer_zip_code_prefix", "customer_city", "customer_state"},
		assign:  func(ts *Tables, t *Table) { ts.Customers = t },
	},
	{
		file:    config.OrderItemsFile,
		columns: []string{"order_id", "product_id", "freight_value"},
		assign:  func(ts *Tables, t *Table) { ts.OrderItems = t },
	},
	{
		file:    config.OrderPaymentsFile,
		columns: []string{"order_id", "payment_type", "payment_value"},
		assign:  func(ts *Tables, t *Table) { ts.OrderPayments = t },
	},
	{
		file:    config.ProductsFile,
		columns: []string{"product_id", "product_category_name"},
		assign:  func(ts *Tables, t *Table) { ts.Products = t },
	},
	{
		file:    config.CategoryTranslationFile,
		columns: []string{"product_category_name", "product_category_name_english"},
		assign:  func(ts *Tables, t *Table) { ts.CategoryTranslation = t },
	},
	{
		file:    config.GeolocationFile,
		columns: []string{"geolocation_zip_code_prefix", "geolocation_lat", "geolocation_lng"},
		assign:  func(ts *Tables, t *Table) { ts.Geolocation = t },
	},
}

// CheckRequired returns the names of required files absent from rawDir
func CheckRequired(rawDir string) []string {
	var missing []string
	for _, name := range config.RequiredCSVs {
		info, err := os.Stat(filepath.Join(rawDir, name))
		if err != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	return missing
}

// LoadRequired reads all seven raw CSVs from rawDir.
// If any are absent the error is a *MissingFilesError naming all of them.
func LoadRequired(ctx context.Context, rawDir string) (*Tables, error) {
	logger := infrastructure.LoggerFromContext(ctx).With(slog.String("component", "loader"))

	if missing := CheckRequired(rawDir); len(missing) > 0 {
		return nil, &MissingFilesError{Dir: rawDir, Files: missing}
	}

	tables := &Tables{}
	for _, spec := range tableSpecs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		t, err := ReadTableFile(spec.file, filepath.Join(rawDir, spec.file))
		if err != nil {
			return nil, err
		}
		if err := t.HasColumns(spec.columns...); err != nil {
			return nil, err
		}
		spec.assign(tables, t)

		logger.DebugContext(ctx, "Loaded raw table",
			slog.String("file", spec.file),
			slog.Int("rows", t.Len()),
			slog.Duration("duration", time.Since(start)))
	}

	logger.InfoContext(ctx, "Loaded raw tables",
		slog.String("dir", rawDir),
		slog.Int("orders", tables.Orders.Len()),
		slog.Int("geolocation", tables.Geolocation.Len()))

	return tables, nil
}
