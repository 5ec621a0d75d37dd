package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"deliverypulse/internal/config"
	apierrors "deliverypulse/internal/errors"
	"deliverypulse/internal/exporter"
	"deliverypulse/internal/loader"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/middleware"
	"deliverypulse/internal/services"
	"deliverypulse/pkg/contracts/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTitle heads every rendered page
const PageTitle = "Delivery Performance Dashboard"

// kpiCard is one headline figure with its hover explanation
type kpiCard struct {
	Label   string
	Value   string
	Tooltip string
}

type dashboardView struct {
	Title     string
	Query     FilterQuery
	Start     string
	End       string
	Snapshot  *services.Snapshot
	KPIs      []kpiCard
	Columns   []string
	Rows      [][]string
	Errors    []string
	ExportCSV string
	ExportXLS string
	PrevPage  string
	NextPage  string
	Tab       string
}

type fileStatus struct {
	Name    string
	Present bool
}

type missingView struct {
	Title  string
	RawDir string
	Files  []fileStatus
}

// PageHandler renders the server-side dashboard page
type PageHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	templates    *template.Template
	logger       *slog.Logger
}

// NewPageHandler parses the embedded templates
func NewPageHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) (*PageHandler, error) {
	tmpl, err := template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		service:      service,
		validator:    middleware.NewValidator(),
		errorHandler: errorHandler,
		templates:    tmpl,
		logger:       logger.With(slog.String("component", "page_handler")),
	}, nil
}

var templateFuncs = template.FuncMap{
	"has": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
	"deliveredOnly": func(q FilterQuery) bool {
		f, err := q.Filter()
		return err == nil && f.DeliveredOnly
	},
}

// ServeDashboard handles GET /
func (h *PageHandler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	q, f, err := filterFromRequest(r, h.validator)
	var problems []string
	if err != nil {
		// Bad filters fall back to the unfiltered view with a banner
		problems = validationMessages(err)
		q, f = FilterQuery{}, metrics.Filter{}
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	// The page always filters on a purchase date range, the full span by default
	if q.Start == "" || q.End == "" {
		opts, err := h.service.Filters(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if dq, df, err := withDefaultDates(q, opts); err == nil {
			q, f = dq, df
		}
	}

	snap, err := h.service.Snapshot(r.Context(), f, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := h.buildView(q, snap, problems)
	view.Tab = r.URL.Query().Get("tab")
	h.render(w, r, http.StatusOK, "dashboard.html", view)
}

// withDefaultDates fills an open side of the date range from the dataset bounds.
// Links built from the returned query carry the same range.
func withDefaultDates(q FilterQuery, opts domain.FilterOptions) (FilterQuery, metrics.Filter, error) {
	if q.Start == "" {
		q.Start = opts.MinDate.Format(middleware.DateLayout)
	}
	if q.End == "" {
		q.End = opts.MaxDate.Format(middleware.DateLayout)
	}
	f, err := q.Filter()
	return q, f, err
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var missing *loader.MissingFilesError
	if errors.As(err, &missing) {
		h.renderMissing(w, r, missing)
		return
	}
	h.errorHandler.HandleError(w, r, err)
}

func (h *PageHandler) buildView(q FilterQuery, snap *services.Snapshot, problems []string) dashboardView {
	start, end := q.Start, q.End
	if start == "" {
		start = snap.Options.MinDate.Format(middleware.DateLayout)
	}
	if end == "" {
		end = snap.Options.MaxDate.Format(middleware.DateLayout)
	}

	values := q.Values()
	rows := make([][]string, len(snap.Orders.Orders))
	for i, o := range snap.Orders.Orders {
		rows[i] = exporter.FactRecord(o)
	}

	view := dashboardView{
		Title:     PageTitle,
		Query:     q,
		Start:     start,
		End:       end,
		Snapshot:  snap,
		KPIs:      kpiCards(snap.KPIs),
		Columns:   exporter.FactColumns,
		Rows:      rows,
		Errors:    problems,
		ExportCSV: withQuery("/api/dashboard/export.csv", values),
		ExportXLS: withQuery("/api/dashboard/export.xlsx", values),
	}

	if p := snap.Orders.Page; p > 1 {
		view.PrevPage = pageLink(values, p-1)
	}
	if p := snap.Orders.Page; p < snap.Orders.TotalPages {
		view.NextPage = pageLink(values, p+1)
	}
	return view
}

func (h *PageHandler) renderMissing(w http.ResponseWriter, r *http.Request, missing *loader.MissingFilesError) {
	absent := make(map[string]bool, len(missing.Files))
	for _, f := range missing.Files {
		absent[f] = true
	}
	files := make([]fileStatus, len(config.RequiredCSVs))
	for i, name := range config.RequiredCSVs {
		files[i] = fileStatus{Name: name, Present: !absent[name]}
	}

	h.logger.WarnContext(r.Context(), "dashboard unavailable, raw files missing",
		slog.String("raw_dir", missing.Dir),
		slog.Any("files", missing.Files))

	h.render(w, r, http.StatusServiceUnavailable, "missing.html", missingView{
		Title:  PageTitle,
		RawDir: missing.Dir,
		Files:  files,
	})
}

// render executes into a buffer first so template errors still produce a clean 500
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewInternalError("failed to render page: "+err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func kpiCards(k domain.KPIs) []kpiCard {
	return []kpiCard{
		{Label: "Total Orders", Value: thousands(k.TotalOrders), Tooltip: "Total number of orders in the filtered dataset"},
		{Label: "Delivered", Value: thousands(k.DeliveredOrders), Tooltip: "Orders with status 'delivered'"},
		{Label: "On-Time Rate", Value: strconv.FormatFloat(k.OnTimeRate*100, 'f', 1, 64) + "%", Tooltip: "Share of delivered orders that arrived on or before estimated date"},
		{Label: "Avg Delay (days)", Value: strconv.FormatFloat(k.AvgDelayDays, 'f', 1, 64), Tooltip: "Average delay in days (negative = early delivery)"},
	}
}

// thousands formats n with comma separators, e.g. 99441 -> 99,441
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func pageLink(v url.Values, page int) string {
	c := url.Values{}
	for k, vals := range v {
		c[k] = append([]string(nil), vals...)
	}
	c.Set("page", strconv.Itoa(page))
	c.Set("tab", "table")
	return "/?" + c.Encode()
}

// validationMessages flattens an API validation error into display lines
func validationMessages(err error) []string {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		return []string{err.Error()}
	}
	switch d := apiErr.Details.(type) {
	case apierrors.ValidationErrors:
		out := make([]string, len(d.Errors))
		for i, e := range d.Errors {
			out[i] = e.Message
		}
		return out
	case apierrors.ValidationError:
		return []string{d.Message}
	}
	return []string{apiErr.Message}
}
