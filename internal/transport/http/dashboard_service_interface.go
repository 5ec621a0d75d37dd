package http

import (
	"context"
	"io"

	"deliverypulse/internal/charts"
	"deliverypulse/internal/exporter"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/services"
	"deliverypulse/internal/transform"
	"deliverypulse/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations the handlers need
type DashboardServiceInterface interface {
	Filters(ctx context.Context) (domain.FilterOptions, error)
	KPIs(ctx context.Context, f metrics.Filter) (domain.KPIs, error)
	Geo(ctx context.Context, f metrics.Filter) ([]domain.GeoSummary, error)
	Categories(ctx context.Context, f metrics.Filter) ([]domain.CategoryPerformance, error)
	Chart(ctx context.Context, name string, f metrics.Filter) (charts.Figure, error)
	Orders(ctx context.Context, f metrics.Filter, page, pageSize int) (services.OrdersPage, error)
	Snapshot(ctx context.Context, f metrics.Filter, page int) (*services.Snapshot, error)
	Export(ctx context.Context, w io.Writer, format exporter.Format, f metrics.Filter) (int, error)
	Rebuild(ctx context.Context) (*transform.BuildInfo, error)
	Status() services.DataStatus
}
