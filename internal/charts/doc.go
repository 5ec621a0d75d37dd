// Package charts builds the dashboard figures as Plotly JSON: the per-state delay map,
// the delay histogram and the worst-categories bar chart.
//
// Every builder returns a renderable figure. When there is nothing to plot the figure
// carries a single centred annotation explaining why.
package charts
