package metrics

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"deliverypulse/pkg/contracts/domain"
)

// Date bounds used when no order carries a purchase timestamp
var (
	DefaultMinDate = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultMaxDate = time.Date(2018, 12, 31, 0, 0, 0, 0, time.UTC)
)

// mean returns 0 for an empty sample
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// rate returns 0 when the denominator is 0
func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// ComputeKPIs summarizes rows. An empty input yields all zeros.
func ComputeKPIs(rows []domain.FactOrder) domain.KPIs {
	var (
		k        domain.KPIs
		delays   []float64
		payments []float64
		freight  []float64
	)

	k.TotalOrders = len(rows)
	for _, o := range rows {
		if o.PaymentValueSum != nil {
			payments = append(payments, *o.PaymentValueSum)
		}
		if o.FreightValueSum != nil {
			freight = append(freight, *o.FreightValueSum)
		}
		if !o.IsDelivered() {
			continue
		}
		k.DeliveredOrders++
		if o.IsOnTime() {
			k.OnTimeCount++
		}
		if o.DelayDays != nil {
			delays = append(delays, float64(*o.DelayDays))
		}
	}

	k.OnTimeRate = rate(k.OnTimeCount, k.DeliveredOrders)
	k.AvgDelayDays = mean(delays)
	k.TotalPaymentValue = floats.Sum(payments)
	k.TotalFreightValue = floats.Sum(freight)
	return k
}

type geoAcc struct {
	lats, lngs []float64
	orders     map[string]bool
	delivered  map[string]bool
	onTime     int
	delays     []float64
}

// GroupGeo aggregates rows per customer state, sorted by state.
// Rows without coordinates or state are ignored.
func GroupGeo(rows []domain.FactOrder) []domain.GeoSummary {
	acc := make(map[string]*geoAcc)
	for _, o := range rows {
		if !o.HasGeo() || o.CustomerState == "" {
			continue
		}
		a, ok := acc[o.CustomerState]
		if !ok {
			a = &geoAcc{orders: map[string]bool{}, delivered: map[string]bool{}}
			acc[o.CustomerState] = a
		}
		a.lats = append(a.lats, *o.MeanLat)
		a.lngs = append(a.lngs, *o.MeanLng)
		a.orders[o.OrderID] = true

		if !o.IsDelivered() {
			continue
		}
		a.delivered[o.OrderID] = true
		if o.IsOnTime() {
			a.onTime++
		}
		if o.DelayDays != nil {
			a.delays = append(a.delays, float64(*o.DelayDays))
		}
	}

	out := make([]domain.GeoSummary, 0, len(acc))
	for state, a := range acc {
		out = append(out, domain.GeoSummary{
			CustomerState:  state,
			MeanLat:        mean(a.lats),
			MeanLng:        mean(a.lngs),
			OrderCount:     len(a.orders),
			DeliveredCount: len(a.delivered),
			OnTimeCount:    a.onTime,
			OnTimeRate:     rate(a.onTime, len(a.delivered)),
			AvgDelayDays:   mean(a.delays),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerState < out[j].CustomerState })
	return out
}

// CategoryOnTime ranks categories of delivered orders by on-time rate, worst first.
// Ties keep category-name order. limit <= 0 returns every category.
func CategoryOnTime(rows []domain.FactOrder, limit int) []domain.CategoryPerformance {
	type acc struct {
		orders map[string]bool
		onTime int
	}
	byCat := make(map[string]*acc)
	for _, o := range rows {
		if !o.IsDelivered() || o.ProductCategoryMode == "" {
			continue
		}
		a, ok := byCat[o.ProductCategoryMode]
		if !ok {
			a = &acc{orders: map[string]bool{}}
			byCat[o.ProductCategoryMode] = a
		}
		a.orders[o.OrderID] = true
		if o.IsOnTime() {
			a.onTime++
		}
	}

	out := make([]domain.CategoryPerformance, 0, len(byCat))
	for cat, a := range byCat {
		if len(a.orders) == 0 {
			continue
		}
		out = append(out, domain.CategoryPerformance{
			Category:    cat,
			OnTimeCount: a.onTime,
			Total:       len(a.orders),
			OnTimeRate:  rate(a.onTime, len(a.orders)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OnTimeRate != out[j].OnTimeRate {
			return out[i].OnTimeRate < out[j].OnTimeRate
		}
		return out[i].Category < out[j].Category
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DateRange returns the first and last purchase dates (midnight UTC).
// Without any timestamps it falls back to DefaultMinDate..DefaultMaxDate.
func DateRange(rows []domain.FactOrder) (time.Time, time.Time) {
	var lo, hi time.Time
	found := false
	for _, o := range rows {
		if o.PurchaseTimestamp == nil {
			continue
		}
		ts := *o.PurchaseTimestamp
		if !found || ts.Before(lo) {
			lo = ts
		}
		if !found || ts.After(hi) {
			hi = ts
		}
		found = true
	}
	if !found {
		return DefaultMinDate, DefaultMaxDate
	}
	return startOfDay(lo.UTC()), startOfDay(hi.UTC())
}

// Options lists the selectable filter values present in rows
func Options(rows []domain.FactOrder) domain.FilterOptions {
	states, cats, payments := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, o := range rows {
		if o.CustomerState != "" {
			states[o.CustomerState] = true
		}
		if o.ProductCategoryMode != "" {
			cats[o.ProductCategoryMode] = true
		}
		if o.PaymentTypeMode != "" {
			payments[o.PaymentTypeMode] = true
		}
	}

	minDate, maxDate := DateRange(rows)
	return domain.FilterOptions{
		States:       sortedKeys(states),
		Categories:   sortedKeys(cats),
		PaymentTypes: sortedKeys(payments),
		MinDate:      minDate,
		MaxDate:      maxDate,
	}
}

// DelayValues returns the non-null delay days, in row order
func DelayValues(rows []domain.FactOrder) []float64 {
	out := make([]float64, 0, len(rows))
	for _, o := range rows {
		if o.DelayDays != nil {
			out = append(out, float64(*o.DelayDays))
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
