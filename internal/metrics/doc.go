// Package metrics filters the fact table and computes the dashboard aggregates:
// headline KPIs, per-state geography, and the category on-time ranking.
//
// Rates are 0 when their denominator is 0 and averages are 0 over an empty sample,
// so every function is total over empty input.
package metrics
