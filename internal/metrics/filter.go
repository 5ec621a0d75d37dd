package metrics

import (
	"time"

	"deliverypulse/pkg/contracts/domain"
)

// Filter selects a subset of the fact table.
// Empty lists apply no restriction; nil dates leave that side of the range open.
type Filter struct {
	Start         *time.Time
	End           *time.Time
	States        []string
	Categories    []string
	PaymentTypes  []string
	DeliveredOnly bool
}

// IsZero reports whether the filter keeps every row
func (f Filter) IsZero() bool {
	return f.Start == nil && f.End == nil &&
		len(f.States) == 0 && len(f.Categories) == 0 && len(f.PaymentTypes) == 0 &&
		!f.DeliveredOnly
}

// endExclusive is midnight after the end date, so the whole end day is kept
func endExclusive(end time.Time) time.Time {
	y, m, d := end.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, end.Location()).AddDate(0, 0, 1)
}

func startOfDay(start time.Time) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, start.Location())
}

func set(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// matches reports membership; a nil set matches everything and "" never matches a set
func matches(allowed map[string]bool, v string) bool {
	if allowed == nil {
		return true
	}
	return v != "" && allowed[v]
}

// ApplyFilters returns the rows matching f, in input order.
// With a date bound set, rows lacking a purchase timestamp are dropped.
func ApplyFilters(rows []domain.FactOrder, f Filter) []domain.FactOrder {
	if len(rows) == 0 {
		return []domain.FactOrder{}
	}
	if f.IsZero() {
		out := make([]domain.FactOrder, len(rows))
		copy(out, rows)
		return out
	}

	var start, end time.Time
	if f.Start != nil {
		start = startOfDay(*f.Start)
	}
	if f.End != nil {
		end = endExclusive(*f.End)
	}
	states, categories, payments := set(f.States), set(f.Categories), set(f.PaymentTypes)

	out := make([]domain.FactOrder, 0, len(rows))
	for _, o := range rows {
		if f.Start != nil || f.End != nil {
			if o.PurchaseTimestamp == nil {
				continue
			}
			ts := *o.PurchaseTimestamp
			if f.Start != nil && ts.Before(start) {
				continue
			}
			if f.End != nil && !ts.Before(end) {
				continue
			}
		}
		if !matches(states, o.CustomerState) ||
			!matches(categories, o.ProductCategoryMode) ||
			!matches(payments, o.PaymentTypeMode) {
			continue
		}
		if f.DeliveredOnly && !o.IsDelivered() {
			continue
		}
		out = append(out, o)
	}
	return out
}
