package transform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"deliverypulse/pkg/contracts/domain"
)

// SchemaVersion changes whenever the cached table layout changes
const SchemaVersion = 1

var (
	// ErrCacheMissing is returned when no cache file exists
	ErrCacheMissing = errors.New("fact table cache not found")
	// ErrCacheStale is returned when the cache was written by another schema version
	ErrCacheStale = errors.New("fact table cache has an incompatible schema")
)

// BuildInfo describes one materialization of the fact table
type BuildInfo struct {
	ID            string    `json:"id"`
	BuiltAt       time.Time `json:"built_at"`
	Rows          int       `json:"rows"`
	SchemaVersion int       `json:"schema_version"`
	// Source is "cache" when read from the store, "raw" when built from CSVs
	Source string `json:"source"`
}

const schemaSQL = `
CREATE TABLE fact_orders (
	seq INTEGER PRIMARY KEY,
	order_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	order_status TEXT NOT NULL,
	order_purchase_timestamp TEXT,
	order_approved_at TEXT,
	order_delivered_carrier_date TEXT,
	order_delivered_customer_date TEXT,
	order_estimated_delivery_date TEXT,
	customer_unique_id TEXT,
	customer_zip_code_prefix TEXT,
	customer_city TEXT,
	customer_state TEXT,
	mean_lat REAL,
	mean_lng REAL,
	payment_type_mode TEXT,
	payment_value_sum REAL,
	freight_value_sum REAL,
	product_category_mode TEXT,
	delay_days INTEGER,
	on_time INTEGER
);
CREATE TABLE build_info (
	id TEXT NOT NULL,
	built_at TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	schema_version INTEGER NOT NULL
);`

const insertSQL = `INSERT INTO fact_orders (
	seq, order_id, customer_id, order_status,
	order_purchase_timestamp, order_approved_at, order_delivered_carrier_date,
	order_delivered_customer_date, order_estimated_delivery_date,
	customer_unique_id, customer_zip_code_prefix, customer_city, customer_state,
	mean_lat, mean_lng, payment_type_mode, payment_value_sum, freight_value_sum,
	product_category_mode, delay_days, on_time
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectSQL = `SELECT
	order_id, customer_id, order_status,
	order_purchase_timestamp, order_approved_at, order_delivered_carrier_date,
	order_delivered_customer_date, order_estimated_delivery_date,
	customer_unique_id, customer_zip_code_prefix, customer_city, customer_state,
	mean_lat, mean_lng, payment_type_mode, payment_value_sum, freight_value_sum,
	product_category_mode, delay_days, on_time
FROM fact_orders ORDER BY seq`

// Store persists the fact table as a single SQLite file.
// Saves write a sibling temp file and rename it, so readers never see a partial table.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the cache file location
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a cache file is present
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Remove deletes the cache file if present
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	return nil
}

// Save replaces the cache with rows
func (s *Store) Save(ctx context.Context, rows []domain.FactOrder) (*BuildInfo, error) {
	ctx, span := tracer.Start(ctx, "transform.persist")
	defer span.End()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	info := &BuildInfo{
		ID:            uuid.New().String(),
		BuiltAt:       time.Now().UTC(),
		Rows:          len(rows),
		SchemaVersion: SchemaVersion,
		Source:        "raw",
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, info.ID)
	defer os.Remove(tmp)

	if err := writeDatabase(ctx, tmp, rows, info); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return nil, fmt.Errorf("failed to replace cache: %w", err)
	}
	return info, nil
}

func writeDatabase(ctx context.Context, path string, rows []domain.FactOrder, info *BuildInfo) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range rows {
		_, err := stmt.ExecContext(ctx,
			i, o.OrderID, o.CustomerID, o.OrderStatus,
			timeArg(o.PurchaseTimestamp), timeArg(o.ApprovedAt), timeArg(o.DeliveredCarrierDate),
			timeArg(o.DeliveredCustomerDate), timeArg(o.EstimatedDeliveryDate),
			o.CustomerUniqueID, o.CustomerZipCodePrefix, o.CustomerCity, o.CustomerState,
			floatArg(o.MeanLat), floatArg(o.MeanLng), o.PaymentTypeMode,
			floatArg(o.PaymentValueSum), floatArg(o.FreightValueSum),
			o.ProductCategoryMode, intArg(o.DelayDays), boolArg(o.OnTime),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.OrderID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build_info (id, built_at, row_count, schema_version) VALUES (?, ?, ?, ?)`,
		info.ID, info.BuiltAt.Format(time.RFC3339Nano), info.Rows, info.SchemaVersion,
	); err != nil {
		return fmt.Errorf("failed to record build info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	return nil
}

// Load reads the cached fact table
func (s *Store) Load(ctx context.Context) ([]domain.FactOrder, *BuildInfo, error) {
	if !s.Exists() {
		return nil, nil, ErrCacheMissing
	}

	ctx, span := tracer.Start(ctx, "transform.load_cache")
	defer span.End()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	info, err := readBuildInfo(ctx, db)
	if err != nil {
		return nil, nil, err
	}

	rs, err := db.QueryContext(ctx, selectSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rs.Close()

	rows := make([]domain.FactOrder, 0, info.Rows)
	for rs.Next() {
		var (
			o                                                 domain.FactOrder
			purchase, approved, carrier, delivered, estimated sql.NullString
			uniqueID, zip, city, state, paymentType, category sql.NullString
			lat, lng, paymentSum, freightSum                  sql.NullFloat64
			delay, onTime                                     sql.NullInt64
		)
		if err := rs.Scan(
			&o.OrderID, &o.CustomerID, &o.OrderStatus,
			&purchase, &approved, &carrier, &delivered, &estimated,
			&uniqueID, &zip, &city, &state,
			&lat, &lng, &paymentType, &paymentSum, &freightSum,
			&category, &delay, &onTime,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan cached row: %w", err)
		}

		o.PurchaseTimestamp = timeFrom(purchase)
		o.ApprovedAt = timeFrom(approved)
		o.DeliveredCarrierDate = timeFrom(carrier)
		o.DeliveredCustomerDate = timeFrom(delivered)
		o.EstimatedDeliveryDate = timeFrom(estimated)
		o.CustomerUniqueID = uniqueID.String
		o.CustomerZipCodePrefix = zip.String
		o.CustomerCity = city.String
		o.CustomerState = state.String
		o.MeanLat = floatFrom(lat)
		o.MeanLng = floatFrom(lng)
		o.PaymentTypeMode = paymentType.String
		o.PaymentValueSum = floatFrom(paymentSum)
		o.FreightValueSum = floatFrom(freightSum)
		o.ProductCategoryMode = category.String
		o.DelayDays = intFrom(delay)
		o.OnTime = boolFrom(onTime)

		rows = append(rows, o)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read cache: %w", err)
	}

	info.Source = "cache"
	return rows, info, nil
}

func readBuildInfo(ctx context.Context, db *sql.DB) (*BuildInfo, error) {
	var (
		info    BuildInfo
		builtAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, built_at, row_count, schema_version FROM build_info LIMIT 1`,
	).Scan(&info.ID, &builtAt, &info.Rows, &info.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheStale, err)
	}
	if info.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCacheStale, info.SchemaVersion)
	}
	info.BuiltAt, _ = time.Parse(time.RFC3339Nano, builtAt)
	return &info, nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func floatArg(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func intArg(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func boolArg(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return int64(1)
	}
	return int64(0)
}

func timeFrom(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func floatFrom(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func intFrom(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}

func boolFrom(i sql.NullInt64) *bool {
	if !i.Valid {
		return nil
	}
	v := i.Int64 != 0
	return &v
}
