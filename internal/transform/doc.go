// Package transform turns the raw Olist tables into the order-level fact table.
//
// Build performs the joins and derivations in memory:
//
//	orders ← customers (customer_id) ← geo lookup (zip prefix → mean lat/lng)
//	       ← payments  (mode payment_type, sum payment_value)
//	       ← items     (sum freight_value, mode category via products and translation)
//
// Delivered orders gain delay_days and on_time. Store keeps the result in a
// single SQLite file, and GetFactOrders decides between that cache and a rebuild.
package transform
