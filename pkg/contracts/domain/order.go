package domain

import (
	"time"
)

// OrderStatusDelivered is the only status that carries delivery-performance fields
const OrderStatusDelivered = "delivered"

// FactOrder is one row of the denormalized fact table, keyed by order.
// Pointer fields are nullable: nil means the source data had no value.
type FactOrder struct {
	OrderID     string `json:"order_id"`
	CustomerID  string `json:"customer_id"`
	OrderStatus string `json:"order_status"`

	PurchaseTimestamp     *time.Time `json:"order_purchase_timestamp,omitempty"`
	ApprovedAt            *time.Time `json:"order_approved_at,omitempty"`
	DeliveredCarrierDate  *time.Time `json:"order_delivered_carrier_date,omitempty"`
	DeliveredCustomerDate *time.Time `json:"order_delivered_customer_date,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"order_estimated_delivery_date,omitempty"`

	CustomerUniqueID      string `json:"customer_unique_id,omitempty"`
	CustomerZipCodePrefix string `json:"customer_zip_code_prefix,omitempty"`
	CustomerCity          string `json:"customer_city,omitempty"`
	CustomerState         string `json:"customer_state,omitempty"`

	MeanLat *float64 `json:"mean_lat,omitempty"`
	MeanLng *float64 `json:"mean_lng,omitempty"`

	PaymentTypeMode     string   `json:"payment_type_mode,omitempty"`
	PaymentValueSum     *float64 `json:"payment_value_sum,omitempty"`
	FreightValueSum     *float64 `json:"freight_value_sum,omitempty"`
	ProductCategoryMode string   `json:"product_category_mode,omitempty"`

	DelayDays *int  `json:"delay_days,omitempty"`
	OnTime    *bool `json:"on_time,omitempty"`
}

// IsDelivered reports whether the order reached the customer
func (o FactOrder) IsDelivered() bool {
	return o.OrderStatus == OrderStatusDelivered
}

// HasGeo reports whether the order has a resolved customer location
func (o FactOrder) HasGeo() bool {
	return o.MeanLat != nil && o.MeanLng != nil
}

// IsOnTime reports whether the order is known to have arrived on or before the estimate
func (o FactOrder) IsOnTime() bool {
	return o.OnTime != nil && *o.OnTime
}

// KPIs are the headline delivery-performance figures for a set of orders
type KPIs struct {
	TotalOrders       int     `json:"total_orders"`
	DeliveredOrders   int     `json:"delivered_orders"`
	OnTimeCount       int     `json:"on_time_count"`
	OnTimeRate        float64 `json:"on_time_rate"`
	AvgDelayDays      float64 `json:"avg_delay_days"`
	TotalPaymentValue float64 `json:"total_payment_value"`
	TotalFreightValue float64 `json:"total_freight_value"`
}

// GeoSummary aggregates delivery performance for one customer state
type GeoSummary struct {
	CustomerState  string  `json:"customer_state"`
	MeanLat        float64 `json:"mean_lat"`
	MeanLng        float64 `json:"mean_lng"`
	OrderCount     int     `json:"order_count"`
	DeliveredCount int     `json:"delivered_count"`
	OnTimeCount    int     `json:"on_time_count"`
	OnTimeRate     float64 `json:"on_time_rate"`
	AvgDelayDays   float64 `json:"avg_delay_days"`
}

// CategoryPerformance is the on-time breakdown for one product category
type CategoryPerformance struct {
	Category    string  `json:"product_category_mode"`
	OnTimeCount int     `json:"on_time_count"`
	Total       int     `json:"total"`
	OnTimeRate  float64 `json:"on_time_rate"`
}

// FilterOptions lists the selectable values for the dashboard filter widgets
type FilterOptions struct {
	States       []string  `json:"states"`
	Categories   []string  `json:"categories"`
	PaymentTypes []string  `json:"payment_types"`
	MinDate      time.Time `json:"min_date"`
	MaxDate      time.Time `json:"max_date"`
}
