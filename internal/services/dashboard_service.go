package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"deliverypulse/internal/charts"
	"deliverypulse/internal/config"
	apperrors "deliverypulse/internal/errors"
	"deliverypulse/internal/exporter"
	"deliverypulse/internal/infrastructure"
	"deliverypulse/internal/loader"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/transform"
	"deliverypulse/pkg/contracts/domain"
)

// Chart names accepted by Chart
const (
	ChartMap        = "map"
	ChartHistogram  = "histogram"
	ChartCategories = "categories"
)

// ChartNames lists the available charts in display order
var ChartNames = []string{ChartMap, ChartHistogram, ChartCategories}

const (
	loadKey    = "facts"
	rebuildKey = "rebuild"
)

// DataStatus describes where the fact table stands
type DataStatus struct {
	Loaded       bool                 `json:"loaded"`
	Rows         int                  `json:"rows"`
	Build        *transform.BuildInfo `json:"build,omitempty"`
	RawDir       string               `json:"raw_dir"`
	MissingFiles []string             `json:"missing_files,omitempty"`
	CacheFile    string               `json:"cache_file"`
	CacheExists  bool                 `json:"cache_exists"`
}

// OrdersPage is one page of the filtered fact table
type OrdersPage struct {
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
	Orders     []domain.FactOrder `json:"orders"`
}

// Snapshot is everything the dashboard page shows for one filter
type Snapshot struct {
	Filter     metrics.Filter
	Options    domain.FilterOptions
	KPIs       domain.KPIs
	Map        charts.Figure
	Histogram  charts.Figure
	Categories charts.Figure
	Orders     OrdersPage
	Build      *transform.BuildInfo
}

// Empty reports whether the filter matched no orders
func (s *Snapshot) Empty() bool {
	return s.KPIs.TotalOrders == 0
}

// DashboardService owns the in-memory fact table and answers dashboard queries.
// Rows are loaded once and never mutated, so readers may share the slice.
type DashboardService struct {
	rawDir         string
	store          *transform.Store
	fetcher        *loader.Fetcher
	exporter       *exporter.FactExporter
	settings       config.DashboardConfig
	autoFetch      bool
	rebuildTimeout time.Duration
	metrics        *infrastructure.BusinessMetrics
	logger         *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded bool
	rows   []domain.FactOrder
	info   *transform.BuildInfo
}

// NewDashboardService creates the dashboard service. fetcher and metrics may be nil.
func NewDashboardService(cfg *config.Config, paths *config.Paths, fetcher *loader.Fetcher, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	timeout := cfg.Server.RebuildTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	logger.Info("DashboardService initialized",
		slog.String("raw_dir", paths.RawDir),
		slog.String("cache_file", paths.FactTableFile),
		slog.Bool("use_cache_file", cfg.Dashboard.UseCacheFile),
		slog.Bool("auto_fetch", cfg.Source.AutoFetch && fetcher != nil))

	return &DashboardService{
		rawDir:         paths.RawDir,
		store:          transform.NewStore(paths.FactTableFile),
		fetcher:        fetcher,
		exporter:       exporter.NewFactExporter(paths),
		settings:       cfg.Dashboard,
		autoFetch:      cfg.Source.AutoFetch,
		rebuildTimeout: timeout,
		metrics:        metrics,
		logger:         logger.With(slog.String("component", "dashboard_service")),
	}
}

// Facts returns the full fact table, loading it on first use.
// Concurrent first calls share one load.
func (s *DashboardService) Facts(ctx context.Context) ([]domain.FactOrder, error) {
	s.mu.RLock()
	rows, loaded := s.rows, s.loaded
	s.mu.RUnlock()
	s.metrics.RecordCacheLookup(ctx, "memory", loaded)
	if loaded {
		return rows, nil
	}

	_, err := s.do(ctx, loadKey, func(ctx context.Context) (*transform.BuildInfo, error) {
		s.mu.RLock()
		info, loaded := s.info, s.loaded
		s.mu.RUnlock()
		if loaded {
			return info, nil
		}
		return s.load(ctx, false)
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows, nil
}

// Rebuild rebuilds the fact table from the raw files, refreshing the cache file
// and the in-memory copy. Concurrent calls share one rebuild.
func (s *DashboardService) Rebuild(ctx context.Context) (*transform.BuildInfo, error) {
	return s.do(ctx, rebuildKey, func(ctx context.Context) (*transform.BuildInfo, error) {
		return s.load(ctx, true)
	})
}

// do runs fn once per key. The shared work is detached from the caller's
// cancellation and bounded by the rebuild timeout; callers stop waiting when
// their own context ends.
func (s *DashboardService) do(ctx context.Context, key string, fn func(context.Context) (*transform.BuildInfo, error)) (*transform.BuildInfo, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rebuildTimeout)
		defer cancel()
		return fn(workCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "Shared fact table load", slog.String("key", key))
		}
		info, _ := res.Val.(*transform.BuildInfo)
		return info, nil
	}
}

func (s *DashboardService) load(ctx context.Context, force bool) (*transform.BuildInfo, error) {
	start := time.Now()
	useCache := s.settings.UseCacheFile && !force
	cached := useCache && s.store.Exists()

	if !cached {
		if err := s.ensureRaw(ctx); err != nil {
			s.metrics.RecordBuild(ctx, "raw", 0, time.Since(start), err)
			return nil, err
		}
	}

	var (
		rows []domain.FactOrder
		info *transform.BuildInfo
		err  error
	)
	if force {
		rows, info, err = transform.BuildAndSave(ctx, s.rawDir, s.store)
	} else {
		rows, info, err = transform.GetFactOrders(ctx, s.rawDir, s.store, useCache)
	}

	source := "raw"
	if info != nil {
		source = info.Source
	}
	if useCache {
		s.metrics.RecordCacheLookup(ctx, "file", source == "cache")
	}
	s.metrics.RecordBuild(ctx, source, len(rows), time.Since(start), err)

	if err != nil {
		s.logger.ErrorContext(ctx, "Fact table load failed",
			slog.Bool("force", force),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.mu.Lock()
	s.rows, s.info, s.loaded = rows, info, true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Fact table ready",
		slog.String("source", source),
		slog.String("build_id", info.ID),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)))

	return info, nil
}

// ensureRaw downloads missing raw files when auto-fetch is enabled.
// Without it the loader reports the missing files itself.
func (s *DashboardService) ensureRaw(ctx context.Context) error {
	if !s.autoFetch || s.fetcher == nil {
		return nil
	}

	fetched, err := s.fetcher.EnsureFiles(ctx, s.rawDir)
	if err != nil {
		var missing *loader.MissingFilesError
		if errors.As(err, &missing) {
			return err
		}
		return apperrors.NewNetworkError("failed to download dataset", err)
	}
	if len(fetched) > 0 {
		s.logger.InfoContext(ctx, "Raw files downloaded", slog.Any("files", fetched))
	}
	return nil
}

// Fetch downloads any missing raw files regardless of the auto-fetch setting
func (s *DashboardService) Fetch(ctx context.Context) ([]string, error) {
	if s.fetcher == nil {
		missing := loader.CheckRequired(s.rawDir)
		if len(missing) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", loader.ErrNoSource, &loader.MissingFilesError{Dir: s.rawDir, Files: missing})
	}
	return s.fetcher.EnsureFiles(ctx, s.rawDir)
}

// Status reports load state without triggering a load
func (s *DashboardService) Status() DataStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return DataStatus{
		Loaded:       s.loaded,
		Rows:         len(s.rows),
		Build:        s.info,
		RawDir:       s.rawDir,
		MissingFiles: loader.CheckRequired(s.rawDir),
		CacheFile:    s.store.Path(),
		CacheExists:  s.store.Exists(),
	}
}

// Query returns the rows matching f
func (s *DashboardService) Query(ctx context.Context, f metrics.Filter) ([]domain.FactOrder, error) {
	rows, err := s.Facts(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.ApplyFilters(rows, f), nil
}

// Filters returns the selectable filter values and the default date range
func (s *DashboardService) Filters(ctx context.Context) (domain.FilterOptions, error) {
	rows, err := s.Facts(ctx)
	if err != nil {
		return domain.FilterOptions{}, err
	}
	return metrics.Options(rows), nil
}

// KPIs summarizes the rows matching f
func (s *DashboardService) KPIs(ctx context.Context, f metrics.Filter) (domain.KPIs, error) {
	rows, err := s.Query(ctx, f)
	if err != nil {
		return domain.KPIs{}, err
	}
	return metrics.ComputeKPIs(rows), nil
}

// Geo aggregates the rows matching f per customer state
func (s *DashboardService) Geo(ctx context.Context, f metrics.Filter) ([]domain.GeoSummary, error) {
	rows, err := s.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	return metrics.GroupGeo(rows), nil
}

// Categories ranks delivered categories by on-time rate, worst first
func (s *DashboardService) Categories(ctx context.Context, f metrics.Filter) ([]domain.CategoryPerformance, error) {
	rows, err := s.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	delivered := metrics.ApplyFilters(rows, metrics.Filter{DeliveredOnly: true})
	return metrics.CategoryOnTime(delivered, s.settings.TopCategories), nil
}

// Chart builds the named figure for the rows matching f
func (s *DashboardService) Chart(ctx context.Context, name string, f metrics.Filter) (charts.Figure, error) {
	switch name {
	case ChartMap, ChartHistogram, ChartCategories:
	default:
		return charts.Figure{}, fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}

	rows, err := s.Query(ctx, f)
	if err != nil {
		return charts.Figure{}, err
	}
	return s.figure(name, rows), nil
}

func (s *DashboardService) figure(name string, rows []domain.FactOrder) charts.Figure {
	switch name {
	case ChartMap:
		return charts.DelayMap(metrics.GroupGeo(rows))
	case ChartHistogram:
		return charts.DelayHistogram(rows, s.settings.HistogramBins)
	default:
		return charts.TopCategories(rows, s.settings.TopCategories)
	}
}

// Orders returns one page of the rows matching f. pageSize <= 0 selects the
// configured default; larger than the configured maximum is clamped.
func (s *DashboardService) Orders(ctx context.Context, f metrics.Filter, page, pageSize int) (OrdersPage, error) {
	if page < 1 {
		return OrdersPage{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	rows, err := s.Query(ctx, f)
	if err != nil {
		return OrdersPage{}, err
	}
	return s.paginate(rows, page, pageSize)
}

func (s *DashboardService) paginate(rows []domain.FactOrder, page, pageSize int) (OrdersPage, error) {
	if pageSize <= 0 {
		pageSize = s.settings.PageSize
	}
	if s.settings.MaxPageSize > 0 && pageSize > s.settings.MaxPageSize {
		pageSize = s.settings.MaxPageSize
	}

	total := len(rows)
	pages := (total + pageSize - 1) / pageSize
	if total > 0 && page > pages {
		return OrdersPage{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, pages)
	}

	lo := min((page-1)*pageSize, total)
	hi := min(lo+pageSize, total)
	return OrdersPage{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		Orders:     rows[lo:hi],
	}, nil
}

// Snapshot computes every dashboard view for f in one pass over the fact table
func (s *DashboardService) Snapshot(ctx context.Context, f metrics.Filter, page int) (*Snapshot, error) {
	all, err := s.Facts(ctx)
	if err != nil {
		return nil, err
	}
	rows := metrics.ApplyFilters(all, f)

	if page < 1 {
		page = 1
	}
	orders, err := s.paginate(rows, page, 0)
	if errors.Is(err, ErrPageOutOfRange) {
		orders, err = s.paginate(rows, 1, 0)
	}
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()

	return &Snapshot{
		Filter:     f,
		Options:    metrics.Options(all),
		KPIs:       metrics.ComputeKPIs(rows),
		Map:        s.figure(ChartMap, rows),
		Histogram:  s.figure(ChartHistogram, rows),
		Categories: s.figure(ChartCategories, rows),
		Orders:     orders,
		Build:      info,
	}, nil
}

// Export writes the rows matching f to w and returns how many were written
func (s *DashboardService) Export(ctx context.Context, w io.Writer, format exporter.Format, f metrics.Filter) (int, error) {
	if _, err := exporter.ParseFormat(string(format)); err != nil {
		return 0, err
	}
	rows, err := s.Query(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := s.exporter.Write(w, format, rows); err != nil {
		return 0, apperrors.NewStorageError("failed to write export", err)
	}
	s.recordExport(ctx, format, len(rows))
	return len(rows), nil
}

// ExportFile writes the rows matching f to path, choosing the format by extension
func (s *DashboardService) ExportFile(ctx context.Context, path string, f metrics.Filter) (string, int, error) {
	format, err := exporter.FormatFromPath(path)
	if err != nil {
		return "", 0, err
	}
	rows, err := s.Query(ctx, f)
	if err != nil {
		return "", 0, err
	}
	written, err := s.exporter.ExportFile(path, rows)
	if err != nil {
		return "", 0, apperrors.NewStorageError("failed to write export", err)
	}
	s.recordExport(ctx, format, len(rows))
	return written, len(rows), nil
}

func (s *DashboardService) recordExport(ctx context.Context, format exporter.Format, rows int) {
	if s.metrics != nil {
		s.metrics.ExportsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "Fact table exported",
		slog.String("format", string(format)),
		slog.Int("rows", rows))
}
