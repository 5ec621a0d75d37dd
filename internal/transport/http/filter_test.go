package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "deliverypulse/internal/errors"
	"deliverypulse/internal/metrics"
	"deliverypulse/internal/middleware"
)

func TestParseFilterQuery(t *testing.T) {
	q := ParseFilterQuery(url.Values{
		"start":          {" 2017-01-01 "},
		"state":          {"SP,RJ", "MG", " , "},
		"category":       {"health_beauty"},
		"payment":        {"boleto,voucher"},
		"delivered_only": {"ON"},
	})

	assert.Equal(t, "2017-01-01", q.Start)
	assert.Empty(t, q.End)
	assert.Equal(t, []string{"SP", "RJ", "MG"}, q.States)
	assert.Equal(t, []string{"health_beauty"}, q.Categories)
	assert.Equal(t, []string{"boleto", "voucher"}, q.PaymentTypes)
	assert.Equal(t, "on", q.DeliveredOnly)
}

func TestFilterQuery_Filter(t *testing.T) {
	tests := []struct {
		name    string
		query   FilterQuery
		want    metrics.Filter
		wantErr string
	}{
		{
			name:  "empty",
			query: FilterQuery{},
			want:  metrics.Filter{},
		},
		{
			name:  "dates and flag",
			query: FilterQuery{Start: "2017-01-01", End: "2017-01-01", DeliveredOnly: "1"},
			want:  metrics.Filter{Start: day(2017, 1, 1), End: day(2017, 1, 1), DeliveredOnly: true},
		},
		{
			name:  "false flag",
			query: FilterQuery{DeliveredOnly: "off"},
			want:  metrics.Filter{},
		},
		{
			name:    "end before start",
			query:   FilterQuery{Start: "2018-01-02", End: "2018-01-01"},
			wantErr: "end must not be before start",
		},
		{
			name:    "unparseable end",
			query:   FilterQuery{End: "2018-02-30"},
			wantErr: "end must be a date formatted YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.Filter()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, []string{tt.wantErr}, validationMessages(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterQuery_Validation(t *testing.T) {
	v := middleware.NewValidator()

	assert.NoError(t, v.ValidateStruct(FilterQuery{Start: "2017-01-01", States: []string{"SP"}, DeliveredOnly: "true"}))

	err := v.ValidateStruct(FilterQuery{Start: "01/01/2017", States: []string{"sp", "RJ"}, DeliveredOnly: "yes"})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, validationMessages(err), 3)
}

func TestFilterQuery_Values(t *testing.T) {
	q := FilterQuery{
		Start:         "2017-01-01",
		States:        []string{"SP", "RJ"},
		PaymentTypes:  []string{"boleto"},
		DeliveredOnly: "on",
	}
	v := q.Values()
	assert.Equal(t, "2017-01-01", v.Get("start"))
	assert.Equal(t, []string{"SP", "RJ"}, v["state"])
	assert.Equal(t, "true", v.Get("delivered_only"))
	assert.Empty(t, v.Get("end"))

	round := ParseFilterQuery(v)
	assert.Equal(t, q.States, round.States)
	assert.Equal(t, "true", round.DeliveredOnly)

	assert.Empty(t, FilterQuery{DeliveredOnly: "false"}.Values())
}
