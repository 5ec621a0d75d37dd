package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apierrors "deliverypulse/internal/errors"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/middleware"
)

// FilterQuery is the dashboard filter as it arrives in the query string.
// List parameters may repeat (state=SP&state=RJ) or be comma separated (state=SP,RJ).
type FilterQuery struct {
	Start         string   `query:"start" validate:"omitempty,isodate"`
	End           string   `query:"end" validate:"omitempty,isodate"`
	States        []string `query:"state" validate:"omitempty,dive,uf"`
	Categories    []string `query:"category" validate:"omitempty,dive,max=100"`
	PaymentTypes  []string `query:"payment" validate:"omitempty,dive,max=50"`
	DeliveredOnly string   `query:"delivered_only" validate:"omitempty,oneof=true false 1 0 on off"`
}

// ParseFilterQuery reads the filter parameters from q
func ParseFilterQuery(q url.Values) FilterQuery {
	return FilterQuery{
		Start:         strings.TrimSpace(q.Get("start")),
		End:           strings.TrimSpace(q.Get("end")),
		States:        listParam(q, "state"),
		Categories:    listParam(q, "category"),
		PaymentTypes:  listParam(q, "payment"),
		DeliveredOnly: strings.ToLower(strings.TrimSpace(q.Get("delivered_only"))),
	}
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Filter converts a validated query into a metrics filter.
// The only cross-field rule, start not after end, is checked here.
func (q FilterQuery) Filter() (metrics.Filter, error) {
	f := metrics.Filter{
		States:        q.States,
		Categories:    q.Categories,
		PaymentTypes:  q.PaymentTypes,
		DeliveredOnly: q.DeliveredOnly == "on" || q.DeliveredOnly == "true" || q.DeliveredOnly == "1",
	}

	if q.Start != "" {
		t, err := time.Parse(middleware.DateLayout, q.Start)
		if err != nil {
			return metrics.Filter{}, apierrors.ErrValidation("start", "start must be a date formatted YYYY-MM-DD")
		}
		f.Start = &t
	}
	if q.End != "" {
		t, err := time.Parse(middleware.DateLayout, q.End)
		if err != nil {
			return metrics.Filter{}, apierrors.ErrValidation("end", "end must be a date formatted YYYY-MM-DD")
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return metrics.Filter{}, apierrors.ErrValidation("end", "end must not be before start")
	}
	return f, nil
}

// Values encodes the query back into URL parameters, e.g. for export links
func (q FilterQuery) Values() url.Values {
	v := url.Values{}
	if q.Start != "" {
		v.Set("start", q.Start)
	}
	if q.End != "" {
		v.Set("end", q.End)
	}
	for _, s := range q.States {
		v.Add("state", s)
	}
	for _, c := range q.Categories {
		v.Add("category", c)
	}
	for _, p := range q.PaymentTypes {
		v.Add("payment", p)
	}
	if b, err := strconv.ParseBool(q.DeliveredOnly); (err == nil && b) || q.DeliveredOnly == "on" {
		v.Set("delivered_only", "true")
	}
	return v
}

// filterFromRequest parses and validates the request's filter parameters
func filterFromRequest(r *http.Request, v *middleware.Validator) (FilterQuery, metrics.Filter, error) {
	q := ParseFilterQuery(r.URL.Query())
	if err := v.ValidateStruct(q); err != nil {
		return q, metrics.Filter{}, err
	}
	f, err := q.Filter()
	return q, f, err
}
