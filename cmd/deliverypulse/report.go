package main

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"deliverypulse/internal/metrics"
	"deliverypulse/internal/middleware"
	handlers "deliverypulse/internal/transport/http"
)

type reportOptions struct {
	start         string
	end           string
	states        []string
	categories    []string
	payments      []string
	deliveredOnly bool
	out           string
}

// filter validates the flags with the same rules as the HTTP query parameters
func (o *reportOptions) filter() (metrics.Filter, error) {
	v := url.Values{}
	v.Set("start", o.start)
	v.Set("end", o.end)
	v["state"] = o.states
	v["category"] = o.categories
	v["payment"] = o.payments
	v.Set("delivered_only", strconv.FormatBool(o.deliveredOnly))

	q := handlers.ParseFilterQuery(v)
	if err := middleware.NewValidator().ValidateStruct(q); err != nil {
		return metrics.Filter{}, err
	}
	return q.Filter()
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	ro := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print KPIs and category rankings for a filter, optionally exporting the rows",
		Example: `  deliverypulse report --start 2017-01-01 --end 2017-12-31 --state SP,RJ
  deliverypulse report --delivered-only --out late_orders.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ro.filter()
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}

			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			defer application.OTelProviders.Shutdown(cmd.Context())

			ctx := cmd.Context()
			kpis, err := application.Dashboard.KPIs(ctx, f)
			if err != nil {
				return err
			}
			cats, err := application.Dashboard.Categories(ctx, f)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Total Orders\t%d\n", kpis.TotalOrders)
			fmt.Fprintf(tw, "Delivered\t%d\n", kpis.DeliveredOrders)
			fmt.Fprintf(tw, "On-Time Rate\t%.1f%%\n", kpis.OnTimeRate*100)
			fmt.Fprintf(tw, "Avg Delay (days)\t%.1f\n", kpis.AvgDelayDays)
			if len(cats) > 0 {
				fmt.Fprintln(tw, "\nCategory\tOn-Time Rate\tDelivered")
				for _, c := range cats {
					fmt.Fprintf(tw, "%s\t%.1f%%\t%d\n", c.Category, c.OnTimeRate*100, c.Total)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if ro.out != "" {
				path, n, err := application.Dashboard.ExportFile(ctx, ro.out, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Exported %d rows to %s\n", n, path)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&ro.start, "start", "", "first purchase date, YYYY-MM-DD")
	fl.StringVar(&ro.end, "end", "", "last purchase date, YYYY-MM-DD (inclusive)")
	fl.StringSliceVar(&ro.states, "state", nil, "customer state codes, e.g. SP,RJ")
	fl.StringSliceVar(&ro.categories, "category", nil, "product categories")
	fl.StringSliceVar(&ro.payments, "payment", nil, "payment types")
	fl.BoolVar(&ro.deliveredOnly, "delivered-only", false, "only delivered orders")
	fl.StringVarP(&ro.out, "out", "o", "", "export the filtered rows to a .csv or .xlsx file")
	return cmd
}
