package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"deliverypulse/internal/config"
	apierrors "deliverypulse/internal/errors"
	"deliverypulse/internal/exporter"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/middleware"
	"deliverypulse/internal/services"
)

// DashboardHandler serves the dashboard JSON API with RFC 7807 errors
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.Validator
	params       *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	settings     config.DashboardConfig
	logger       *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, settings config.DashboardConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    middleware.NewValidator(),
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler: errorHandler,
		settings:     settings,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
	}
}

// Routes returns the dashboard API routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/filters", h.GetFilters)
		r.Get("/kpis", h.GetKPIs)
		r.Get("/geo", h.GetGeo)
		r.Get("/categories", h.GetCategories)
		r.Get("/charts/{chart}", h.GetChart)
		r.Get("/orders", h.GetOrders)
		r.With(middleware.AuditLog(h.logger)).Post("/rebuild", h.Rebuild)
	})

	r.Get("/export.csv", h.Export(exporter.FormatCSV))
	r.Get("/export.xlsx", h.Export(exporter.FormatXLSX))

	return r
}

// filter parses the request filter, answering validation failures itself
func (h *DashboardHandler) filter(w http.ResponseWriter, r *http.Request) (metrics.Filter, bool) {
	_, f, err := filterFromRequest(r, h.validator)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return metrics.Filter{}, false
	}
	return f, true
}

// handleServiceError maps service sentinels to API errors
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownChart):
		err = apierrors.NewWithDetails(http.StatusNotFound, "NOT_FOUND", err.Error(),
			map[string]interface{}{"available": services.ChartNames})
	case errors.Is(err, services.ErrPageOutOfRange), errors.Is(err, services.ErrInvalidInput):
		err = apierrors.New(http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	}
	h.errorHandler.HandleError(w, r, err)
}

// GetFilters handles GET /api/dashboard/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Filters(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"states":        opts.States,
		"categories":    opts.Categories,
		"payment_types": opts.PaymentTypes,
		"min_date":      opts.MinDate.Format(middleware.DateLayout),
		"max_date":      opts.MaxDate.Format(middleware.DateLayout),
	})
}

// GetKPIs handles GET /api/dashboard/kpis
func (h *DashboardHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	kpis, err := h.service.KPIs(r.Context(), f)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, kpis)
}

// GetGeo handles GET /api/dashboard/geo
func (h *DashboardHandler) GetGeo(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	geo, err := h.service.Geo(r.Context(), f)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"data":  geo,
		"count": len(geo),
	})
}

// GetCategories handles GET /api/dashboard/categories
func (h *DashboardHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	cats, err := h.service.Categories(r.Context(), f)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"data":  cats,
		"count": len(cats),
	})
}

// GetChart handles GET /api/dashboard/charts/{chart}
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	name, ok := h.params.ValidateEnum(w, r, "chart", services.ChartNames, "")
	if !ok {
		return
	}

	fig, err := h.service.Chart(r.Context(), name, f)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, fig)
}

// GetOrders handles GET /api/dashboard/orders?page=&page_size=
func (h *DashboardHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := h.params.ValidateInt(w, r, "page", 1, math.MaxInt32, 1)
	if !ok {
		return
	}
	pageSize, ok := h.params.ValidateInt(w, r, "page_size", 1, h.settings.MaxPageSize, h.settings.PageSize)
	if !ok {
		return
	}
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	result, err := h.service.Orders(r.Context(), f, page, pageSize)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Export handles GET /api/dashboard/export.csv and /export.xlsx.
// The file is assembled in memory so a failure still yields a problem response.
func (h *DashboardHandler) Export(format exporter.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := h.filter(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		n, err := h.service.Export(r.Context(), &buf, format, f)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}

		h.logger.InfoContext(r.Context(), "export served",
			slog.String("format", string(format)),
			slog.Int("rows", n),
			slog.String("request_id", chimw.GetReqID(r.Context())))

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("X-Row-Count", strconv.Itoa(n))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.WarnContext(r.Context(), "export write interrupted", slog.String("error", err.Error()))
		}
	}
}

// Rebuild handles POST /api/dashboard/rebuild
func (h *DashboardHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Rebuild(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fact table rebuilt",
		slog.String("build_id", info.ID),
		slog.Int("rows", info.Rows))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"build":  info,
	})
}
