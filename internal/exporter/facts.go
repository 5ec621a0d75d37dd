package exporter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"deliverypulse/internal/config"
	"deliverypulse/pkg/contracts/domain"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	// SheetName is the worksheet holding exported rows
	SheetName = "fact_orders"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively and with an optional leading dot
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// FileName is the download name for an export, e.g. fact_orders.csv
func (f Format) FileName() string {
	return config.ExportBaseName + "." + string(f)
}

// ContentType is the HTTP media type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FactColumns is the column order of exported fact rows
var FactColumns = []string{
	"order_id",
	"customer_id",
	"order_status",
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
	"customer_unique_id",
	"customer_zip_code_prefix",
	"customer_city",
	"customer_state",
	"mean_lat",
	"mean_lng",
	"payment_type_mode",
	"payment_value_sum",
	"freight_value_sum",
	"product_category_mode",
	"delay_days",
	"on_time",
}

// FactRecord renders one fact row as CSV fields in FactColumns order
func FactRecord(o domain.FactOrder) []string {
	return []string{
		o.OrderID,
		o.CustomerID,
		o.OrderStatus,
		formatOptionalTime(o.PurchaseTimestamp),
		formatOptionalTime(o.ApprovedAt),
		formatOptionalTime(o.DeliveredCarrierDate),
		formatOptionalTime(o.DeliveredCustomerDate),
		formatOptionalTime(o.EstimatedDeliveryDate),
		o.CustomerUniqueID,
		o.CustomerZipCodePrefix,
		o.CustomerCity,
		o.CustomerState,
		formatOptionalFloat(o.MeanLat),
		formatOptionalFloat(o.MeanLng),
		o.PaymentTypeMode,
		formatOptionalFloat(o.PaymentValueSum),
		formatOptionalFloat(o.FreightValueSum),
		o.ProductCategoryMode,
		formatOptionalInt(o.DelayDays),
		formatOptionalBool(o.OnTime),
	}
}

// factCells is FactRecord with typed spreadsheet values; nulls stay empty cells
func factCells(o domain.FactOrder) []interface{} {
	record := FactRecord(o)
	cells := make([]interface{}, len(record))
	for i, v := range record {
		cells[i] = v
	}

	num := func(i int, f *float64) {
		if f != nil {
			cells[i] = *f
		} else {
			cells[i] = nil
		}
	}
	num(12, o.MeanLat)
	num(13, o.MeanLng)
	num(15, o.PaymentValueSum)
	num(16, o.FreightValueSum)
	if o.DelayDays != nil {
		cells[18] = *o.DelayDays
	} else {
		cells[18] = nil
	}
	if o.OnTime != nil {
		cells[19] = *o.OnTime
	} else {
		cells[19] = nil
	}
	return cells
}

// FactExporter writes filtered fact rows as CSV or XLSX
type FactExporter struct {
	csv    *CSVWriter
	logger *slog.Logger
}

// NewFactExporter creates an exporter writing relative paths under the processed directory
func NewFactExporter(paths *config.Paths) *FactExporter {
	return &FactExporter{
		csv:    NewCSVWriter(paths),
		logger: slog.Default().With(slog.String("component", "exporter")),
	}
}

// Write encodes rows onto w in the requested format
func (e *FactExporter) Write(w io.Writer, format Format, rows []domain.FactOrder) error {
	switch format {
	case FormatCSV:
		return e.WriteCSV(w, rows)
	case FormatXLSX:
		return e.WriteXLSX(w, rows)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteCSV writes a header row plus one record per order, prefixed with a UTF-8 BOM
func (e *FactExporter) WriteCSV(w io.Writer, rows []domain.FactOrder) error {
	records := make([][]string, len(rows))
	for i, o := range rows {
		records[i] = FactRecord(o)
	}
	return WriteTo(w, WriteOptions{
		Headers:   FactColumns,
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteXLSX writes a single-sheet workbook with a header row
func (e *FactExporter) WriteXLSX(w io.Writer, rows []domain.FactOrder) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(FactColumns), 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	header := make([]interface{}, len(FactColumns))
	for i, c := range FactColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, o := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, factCells(o)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	return f.Write(w)
}

// ExportFile writes rows to path, choosing the format from its extension.
// It returns the resolved path.
func (e *FactExporter) ExportFile(path string, rows []domain.FactOrder) (string, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}
	fullPath := e.csv.resolvePath(path)

	if format == FormatCSV {
		stream, err := e.csv.CreateStreamWriter(fullPath, FactColumns)
		if err != nil {
			return "", err
		}
		for _, o := range rows {
			if err := stream.WriteRecord(FactRecord(o)); err != nil {
				stream.Close()
				return "", fmt.Errorf("failed to write record: %w", err)
			}
		}
		if err := stream.Close(); err != nil {
			return "", err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		file, err := os.Create(fullPath)
		if err != nil {
			return "", fmt.Errorf("failed to create file: %w", err)
		}
		if err := e.WriteXLSX(file, rows); err != nil {
			file.Close()
			return "", err
		}
		if err := file.Close(); err != nil {
			return "", err
		}
	}

	e.logger.Info("Fact rows exported",
		slog.String("path", fullPath),
		slog.String("format", string(format)),
		slog.Int("rows", len(rows)))
	return fullPath, nil
}
