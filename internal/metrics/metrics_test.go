package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/pkg/contracts/domain"
)

type orderOpt func(*domain.FactOrder)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func f64(v float64) *float64 { return &v }

func withPurchase(s string) orderOpt {
	return func(o *domain.FactOrder) { o.PurchaseTimestamp = ts(s) }
}

func withState(state string, lat, lng float64) orderOpt {
	return func(o *domain.FactOrder) {
		o.CustomerState = state
		o.MeanLat, o.MeanLng = f64(lat), f64(lng)
	}
}

func withDelivery(delay int) orderOpt {
	return func(o *domain.FactOrder) {
		o.OrderStatus = domain.OrderStatusDelivered
		onTime := delay <= 0
		o.DelayDays, o.OnTime = &delay, &onTime
	}
}

func withMoney(payment, freight float64) orderOpt {
	return func(o *domain.FactOrder) {
		o.PaymentValueSum, o.FreightValueSum = f64(payment), f64(freight)
	}
}

func order(id string, opts ...orderOpt) domain.FactOrder {
	o := domain.FactOrder{OrderID: id, CustomerID: "c-" + id, OrderStatus: "shipped"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// sample mirrors the seven-order fixture used by the pipeline tests
func sample() []domain.FactOrder {
	notOnTime := false
	o4 := order("o4", withPurchase("2018-01-20 14:00:00"), withMoney(55, 3))
	o4.OrderStatus = domain.OrderStatusDelivered
	o4.CustomerState = "RS"
	o4.OnTime = &notOnTime
	o4.PaymentTypeMode, o4.ProductCategoryMode = "voucher", "health_beauty"

	o5 := order("o5", withState("MG", -19.9, -43.9))
	o5.OrderStatus = "canceled"

	rows := []domain.FactOrder{
		order("o1", withPurchase("2017-01-05 10:00:00"), withState("SP", -23.6, -46.7), withDelivery(-5), withMoney(120, 15.75)),
		order("o2", withPurchase("2017-02-10 08:00:00"), withState("RJ", -22.9, -43.2), withDelivery(2), withMoney(250.5, 20)),
		order("o3", withPurchase("2017-03-01 09:30:00"), withState("SP", -23.6, -46.7), withMoney(80, 7)),
		o4,
		o5,
		order("o6", withPurchase("2018-06-30 23:59:59"), withState("RJ", -22.9, -43.2), withDelivery(0), withMoney(60, 25)),
		order("o7", withPurchase("2017-05-05 12:00:00"), withDelivery(-2), withMoney(45, 4)),
	}
	cats := map[string][2]string{
		"o1": {"credit_card", "health_beauty"},
		"o2": {"boleto", "computers_accessories"},
		"o3": {"credit_card", "categoria_sem_traducao"},
		"o6": {"debit_card", "computers_accessories"},
		"o7": {"credit_card", "health_beauty"},
	}
	for i := range rows {
		if c, ok := cats[rows[i].OrderID]; ok {
			rows[i].PaymentTypeMode, rows[i].ProductCategoryMode = c[0], c[1]
		}
	}
	return rows
}

func ids(rows []domain.FactOrder) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.OrderID
	}
	return out
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name: "no filter keeps everything",
			want: []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7"},
		},
		{
			name:   "date range includes the whole end day and drops missing timestamps",
			filter: Filter{Start: date(2017, 2, 1), End: date(2018, 1, 20)},
			want:   []string{"o2", "o3", "o4", "o7"},
		},
		{
			name:   "end date keeps the last second of the day",
			filter: Filter{End: date(2018, 6, 30)},
			want:   []string{"o1", "o2", "o3", "o4", "o6", "o7"},
		},
		{
			name:   "start only",
			filter: Filter{Start: date(2018, 1, 1)},
			want:   []string{"o4", "o6"},
		},
		{
			name:   "states exclude rows without state",
			filter: Filter{States: []string{"SP", "MG"}},
			want:   []string{"o1", "o3", "o5"},
		},
		{
			name:   "categories",
			filter: Filter{Categories: []string{"computers_accessories"}},
			want:   []string{"o2", "o6"},
		},
		{
			name:   "payment types",
			filter: Filter{PaymentTypes: []string{"voucher", "debit_card"}},
			want:   []string{"o4", "o6"},
		},
		{
			name:   "delivered only",
			filter: Filter{DeliveredOnly: true},
			want:   []string{"o1", "o2", "o4", "o6", "o7"},
		},
		{
			name:   "combined",
			filter: Filter{States: []string{"RJ"}, Start: date(2018, 1, 1), DeliveredOnly: true},
			want:   []string{"o6"},
		},
		{
			name:   "nothing matches",
			filter: Filter{States: []string{"AC"}},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilters(sample(), tt.filter)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyFilters_EmptyInput(t *testing.T) {
	got := ApplyFilters(nil, Filter{DeliveredOnly: true})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApplyFilters_DoesNotAlias(t *testing.T) {
	rows := sample()
	got := ApplyFilters(rows, Filter{})
	got[0].OrderID = "changed"
	assert.Equal(t, "o1", rows[0].OrderID)
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(sample())

	assert.Equal(t, 7, k.TotalOrders)
	assert.Equal(t, 5, k.DeliveredOrders)
	assert.Equal(t, 3, k.OnTimeCount)
	assert.InDelta(t, 0.6, k.OnTimeRate, 1e-9)
	assert.InDelta(t, -1.25, k.AvgDelayDays, 1e-9)
	assert.InDelta(t, 610.5, k.TotalPaymentValue, 1e-9)
	assert.InDelta(t, 74.75, k.TotalFreightValue, 1e-9)
}

func TestComputeKPIs_Empty(t *testing.T) {
	assert.Equal(t, domain.KPIs{}, ComputeKPIs(nil))

	// Orders but no deliveries
	k := ComputeKPIs([]domain.FactOrder{order("x")})
	assert.Equal(t, 1, k.TotalOrders)
	assert.Zero(t, k.OnTimeRate)
	assert.Zero(t, k.AvgDelayDays)
}

func TestGroupGeo(t *testing.T) {
	geo := GroupGeo(sample())
	require.Len(t, geo, 3)

	assert.Equal(t, []string{"MG", "RJ", "SP"}, []string{geo[0].CustomerState, geo[1].CustomerState, geo[2].CustomerState})

	mg := geo[0]
	assert.Equal(t, 1, mg.OrderCount)
	assert.Equal(t, 0, mg.DeliveredCount)
	assert.Zero(t, mg.OnTimeRate)
	assert.Zero(t, mg.AvgDelayDays)

	rj := geo[1]
	assert.InDelta(t, -22.9, rj.MeanLat, 1e-9)
	assert.InDelta(t, -43.2, rj.MeanLng, 1e-9)
	assert.Equal(t, 2, rj.OrderCount)
	assert.Equal(t, 2, rj.DeliveredCount)
	assert.Equal(t, 1, rj.OnTimeCount)
	assert.InDelta(t, 0.5, rj.OnTimeRate, 1e-9)
	assert.InDelta(t, 1.0, rj.AvgDelayDays, 1e-9)

	sp := geo[2]
	assert.Equal(t, 2, sp.OrderCount)
	assert.Equal(t, 1, sp.DeliveredCount)
	assert.InDelta(t, 1.0, sp.OnTimeRate, 1e-9)
	assert.InDelta(t, -5.0, sp.AvgDelayDays, 1e-9)

	assert.Empty(t, GroupGeo(nil))
}

func TestCategoryOnTime(t *testing.T) {
	cats := CategoryOnTime(sample(), 10)
	require.Len(t, cats, 2)

	assert.Equal(t, "computers_accessories", cats[0].Category)
	assert.Equal(t, 2, cats[0].Total)
	assert.Equal(t, 1, cats[0].OnTimeCount)
	assert.InDelta(t, 0.5, cats[0].OnTimeRate, 1e-9)

	assert.Equal(t, "health_beauty", cats[1].Category)
	assert.Equal(t, 3, cats[1].Total)
	assert.InDelta(t, 2.0/3.0, cats[1].OnTimeRate, 1e-9)

	assert.Len(t, CategoryOnTime(sample(), 1), 1)
}

func TestCategoryOnTime_TiesAndLimit(t *testing.T) {
	var rows []domain.FactOrder
	for _, cat := range []string{"zeta", "alpha", "mid", "beta"} {
		o := order("late-"+cat, withDelivery(3))
		o.ProductCategoryMode = cat
		rows = append(rows, o)
	}
	early := order("early-mid", withDelivery(-1))
	early.ProductCategoryMode = "mid"
	rows = append(rows, early)

	got := CategoryOnTime(rows, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Category)
	assert.Equal(t, "beta", got[1].Category)
	assert.Equal(t, "zeta", got[2].Category)

	assert.Len(t, CategoryOnTime(rows, 0), 4)
}

func TestDateRange(t *testing.T) {
	lo, hi := DateRange(sample())
	assert.Equal(t, time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2018, 6, 30, 0, 0, 0, 0, time.UTC), hi)

	lo, hi = DateRange([]domain.FactOrder{order("no-ts")})
	assert.Equal(t, DefaultMinDate, lo)
	assert.Equal(t, DefaultMaxDate, hi)
}

func TestOptions(t *testing.T) {
	opts := Options(sample())

	assert.Equal(t, []string{"MG", "RJ", "RS", "SP"}, opts.States)
	assert.Equal(t, []string{"categoria_sem_traducao", "computers_accessories", "health_beauty"}, opts.Categories)
	assert.Equal(t, []string{"boleto", "credit_card", "debit_card", "voucher"}, opts.PaymentTypes)
	assert.Equal(t, time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC), opts.MinDate)
}

func TestDelayValues(t *testing.T) {
	assert.Equal(t, []float64{-5, 2, 0, -2}, DelayValues(sample()))
	assert.Empty(t, DelayValues(nil))
}
