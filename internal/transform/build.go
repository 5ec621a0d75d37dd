package transform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deliverypulse/internal/infrastructure"
	"deliverypulse/internal/loader"
	"deliverypulse/pkg/contracts/domain"
)

// ErrNoTables is returned when Build is called without loaded tables
var ErrNoTables = errors.New("no tables to transform")

var tracer = otel.Tracer("deliverypulse/transform")

type geoPoint struct {
	sumLat, sumLng float64
	nLat, nLng     int
}

type customer struct {
	uniqueID, zip, city, state string
}

type paymentAgg struct {
	types counter
	sum   float64
}

type itemAgg struct {
	categories counter
	freight    float64
}

// Build joins the raw tables into one fact row per order, in orders-file order
func Build(ctx context.Context, tables *loader.Tables) ([]domain.FactOrder, error) {
	if tables == nil || tables.Orders == nil {
		return nil, ErrNoTables
	}

	ctx, span := tracer.Start(ctx, "transform.build",
		trace.WithAttributes(attribute.Int("orders.input", tables.Orders.Len())))
	defer span.End()

	logger := infrastructure.LoggerFromContext(ctx).With(slog.String("component", "transform"))
	start := time.Now()

	geo := stage(ctx, "geo_lookup", func() map[string]*geoPoint { return geoLookup(tables.Geolocation) })
	customers := stage(ctx, "customers", func() map[string]customer { return customerIndex(tables.Customers) })
	payments := stage(ctx, "payments", func() map[string]*paymentAgg { return aggregatePayments(tables.OrderPayments) })
	items := stage(ctx, "items", func() map[string]*itemAgg {
		return aggregateItems(tables.OrderItems, productCategories(tables.Products, tables.CategoryTranslation))
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infrastructure.AddSpanEvent(ctx, "lookups.ready",
		attribute.Int("geo_prefixes", len(geo)),
		attribute.Int("customers", len(customers)),
		attribute.Int("paid_orders", len(payments)),
		attribute.Int("item_orders", len(items)))

	_, joinSpan := tracer.Start(ctx, "transform.join")
	rows := joinOrders(tables.Orders, customers, geo, payments, items)
	joinSpan.SetAttributes(attribute.Int("rows", len(rows)))
	joinSpan.End()

	span.SetAttributes(attribute.Int("orders.output", len(rows)))
	logger.InfoContext(ctx, "Fact table built",
		slog.Int("rows", len(rows)),
		slog.Int("geo_prefixes", len(geo)),
		slog.Duration("duration", time.Since(start)))

	return rows, nil
}

func stage[T any](ctx context.Context, name string, fn func() T) T {
	_, span := tracer.Start(ctx, "transform."+name)
	defer span.End()
	return fn()
}

func geoLookup(t *loader.Table) map[string]*geoPoint {
	out := make(map[string]*geoPoint)
	if t == nil {
		return out
	}

	zipCol := t.Col("geolocation_zip_code_prefix")
	latCol := t.Col("geolocation_lat")
	lngCol := t.Col("geolocation_lng")

	for _, row := range t.Rows {
		zip := NormalizeZip(t.Value(row, zipCol))
		if zip == "" {
			continue
		}
		p, ok := out[zip]
		if !ok {
			p = &geoPoint{}
			out[zip] = p
		}
		if lat := ParseFloat(t.Value(row, latCol)); lat != nil {
			p.sumLat += *lat
			p.nLat++
		}
		if lng := ParseFloat(t.Value(row, lngCol)); lng != nil {
			p.sumLng += *lng
			p.nLng++
		}
	}
	return out
}

func customerIndex(t *loader.Table) map[string]customer {
	out := make(map[string]customer)
	if t == nil {
		return out
	}

	idCol := t.Col("customer_id")
	uniqueCol := t.Col("customer_unique_id")
	zipCol := t.Col("customer_zip_code_prefix")
	cityCol := t.Col("customer_city")
	stateCol := t.Col("customer_state")

	for _, row := range t.Rows {
		id := t.Value(row, idCol)
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		out[id] = customer{
			uniqueID: t.Value(row, uniqueCol),
			zip:      t.Value(row, zipCol),
			city:     t.Value(row, cityCol),
			state:    t.Value(row, stateCol),
		}
	}
	return out
}

func aggregatePayments(t *loader.Table) map[string]*paymentAgg {
	out := make(map[string]*paymentAgg)
	if t == nil {
		return out
	}

	orderCol := t.Col("order_id")
	typeCol := t.Col("payment_type")
	valueCol := t.Col("payment_value")

	for _, row := range t.Rows {
		id := t.Value(row, orderCol)
		agg, ok := out[id]
		if !ok {
			agg = &paymentAgg{types: counter{}}
			out[id] = agg
		}
		agg.types.add(t.Value(row, typeCol))
		if v := ParseFloat(t.Value(row, valueCol)); v != nil {
			agg.sum += *v
		}
	}
	return out
}

// productCategories maps product_id to its English category, falling back to the Portuguese name
func productCategories(products, translation *loader.Table) map[string]string {
	english := make(map[string]string)
	if translation != nil {
		ptCol := translation.Col("product_category_name")
		enCol := translation.Col("product_category_name_english")
		for _, row := range translation.Rows {
			pt := translation.Value(row, ptCol)
			if _, seen := english[pt]; !seen && pt != "" {
				english[pt] = translation.Value(row, enCol)
			}
		}
	}

	out := make(map[string]string)
	if products == nil {
		return out
	}

	idCol := products.Col("product_id")
	catCol := products.Col("product_category_name")
	for _, row := range products.Rows {
		id := products.Value(row, idCol)
		if _, seen := out[id]; seen {
			continue
		}
		cat := products.Value(row, catCol)
		if en := english[cat]; en != "" {
			cat = en
		}
		out[id] = cat
	}
	return out
}

func aggregateItems(t *loader.Table, categories map[string]string) map[string]*itemAgg {
	out := make(map[string]*itemAgg)
	if t == nil {
		return out
	}

	orderCol := t.Col("order_id")
	productCol := t.Col("product_id")
	freightCol := t.Col("freight_value")

	for _, row := range t.Rows {
		id := t.Value(row, orderCol)
		agg, ok := out[id]
		if !ok {
			agg = &itemAgg{categories: counter{}}
			out[id] = agg
		}
		agg.categories.add(categories[t.Value(row, productCol)])
		if v := ParseFloat(t.Value(row, freightCol)); v != nil {
			agg.freight += *v
		}
	}
	return out
}

func joinOrders(
	t *loader.Table,
	customers map[string]customer,
	geo map[string]*geoPoint,
	payments map[string]*paymentAgg,
	items map[string]*itemAgg,
) []domain.FactOrder {
	col := func(name string) int { return t.Col(name) }
	var (
		idCol        = col("order_id")
		customerCol  = col("customer_id")
		statusCol    = col("order_status")
		purchaseCol  = col("order_purchase_timestamp")
		approvedCol  = col("order_approved_at")
		carrierCol   = col("order_delivered_carrier_date")
		deliveredCol = col("order_delivered_customer_date")
		estimatedCol = col("order_estimated_delivery_date")
	)

	rows := make([]domain.FactOrder, 0, t.Len())
	for _, row := range t.Rows {
		o := domain.FactOrder{
			OrderID:               t.Value(row, idCol),
			CustomerID:            t.Value(row, customerCol),
			OrderStatus:           t.Value(row, statusCol),
			PurchaseTimestamp:     ParseTimestamp(t.Value(row, purchaseCol)),
			ApprovedAt:            ParseTimestamp(t.Value(row, approvedCol)),
			DeliveredCarrierDate:  ParseTimestamp(t.Value(row, carrierCol)),
			DeliveredCustomerDate: ParseTimestamp(t.Value(row, deliveredCol)),
			EstimatedDeliveryDate: ParseTimestamp(t.Value(row, estimatedCol)),
		}

		if c, ok := customers[o.CustomerID]; ok {
			o.CustomerUniqueID = c.uniqueID
			o.CustomerZipCodePrefix = c.zip
			o.CustomerCity = c.city
			o.CustomerState = c.state

			if p, ok := geo[NormalizeZip(c.zip)]; ok {
				if p.nLat > 0 {
					lat := p.sumLat / float64(p.nLat)
					o.MeanLat = &lat
				}
				if p.nLng > 0 {
					lng := p.sumLng / float64(p.nLng)
					o.MeanLng = &lng
				}
			}
		}

		if p, ok := payments[o.OrderID]; ok {
			o.PaymentTypeMode = p.types.mode()
			sum := p.sum
			o.PaymentValueSum = &sum
		}

		if it, ok := items[o.OrderID]; ok {
			o.ProductCategoryMode = it.categories.mode()
			freight := it.freight
			o.FreightValueSum = &freight
		}

		deriveDelivery(&o)
		rows = append(rows, o)
	}
	return rows
}

// deriveDelivery sets delay_days and on_time for delivered orders only.
// A delivered order without both dates counts as not on time.
func deriveDelivery(o *domain.FactOrder) {
	if !o.IsDelivered() {
		o.DelayDays, o.OnTime = nil, nil
		return
	}

	onTime := false
	if o.DeliveredCustomerDate != nil && o.EstimatedDeliveryDate != nil {
		delay := DelayDays(*o.DeliveredCustomerDate, *o.EstimatedDeliveryDate)
		o.DelayDays = &delay
		onTime = delay <= 0
	}
	o.OnTime = &onTime
}
