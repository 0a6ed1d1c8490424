package parser_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/parser"
)

const site = "03292494"

// payload wraps readings in the nested NWIS envelope.
func payload(t *testing.T, readings ...map[string]any) []byte {
	t.Helper()
	body := map[string]any{
		"value": map[string]any{
			"timeSeries": []any{
				map[string]any{
					"sourceInfo": map[string]any{
						"siteName": "OHIO RIVER AT LOUISVILLE, KY",
						"siteCode": []any{map[string]any{"value": site, "agencyCode": "USGS"}},
					},
					"values": []any{map[string]any{"value": readings}},
				},
			},
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func reading(dateTime string, value any, qualifiers ...string) map[string]any {
	if qualifiers == nil {
		qualifiers = []string{}
	}
	return map[string]any{"dateTime": dateTime, "value": value, "qualifiers": qualifiers}
}

func TestDailyValuesSingleReading(t *testing.T) {
	res, err := parser.DailyValues(site, payload(t, reading("2018-01-01T00:00:00", "12345", "P")))
	require.NoError(t, err)
	require.Len(t, res.Observations, 1)
	assert.Empty(t, res.Rejected)

	obs := res.Observations[0]
	assert.Equal(t, site, obs.SiteID)
	assert.Equal(t, "2018-01-01", obs.Date.Format("2006-01-02"))
	assert.Equal(t, 12345.0, obs.Discharge)
	assert.Equal(t, "P", obs.Qualifier)
}

func TestDailyValuesRejectsNonNumericValueOnly(t *testing.T) {
	body := payload(t,
		reading("2018-01-01T00:00:00.000", "12345", "P"),
		reading("2018-01-02T00:00:00.000", "abc", "P"),
		reading("2018-01-03T00:00:00.000", "13000", "A", "e"),
	)

	res, err := parser.DailyValues(site, body)
	require.NoError(t, err)

	require.Len(t, res.Observations, 2)
	assert.Equal(t, "2018-01-01", res.Observations[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2018-01-03", res.Observations[1].Date.Format("2006-01-02"))
	assert.Equal(t, "A", res.Observations[1].Qualifier)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.ErrorIs(t, res.Rejected[0], apperr.ErrParse)
	assert.Contains(t, res.Rejected[0].Error(), `"abc"`)
}

func TestDailyValuesKeepsNonPositiveDischarge(t *testing.T) {
	res, err := parser.DailyValues(site, payload(t,
		reading("2018-01-01T00:00:00", "0", "A"),
		reading("2018-01-02T00:00:00", "-999999", "A", "Ice"),
		reading("2018-01-03T00:00:00", 42.5, "P"),
	))
	require.NoError(t, err)
	require.Len(t, res.Observations, 3)
	assert.Equal(t, 0.0, res.Observations[0].Discharge)
	assert.Equal(t, -999999.0, res.Observations[1].Discharge)
	assert.Equal(t, 42.5, res.Observations[2].Discharge)
}

func TestDailyValuesRecordErrors(t *testing.T) {
	cases := map[string]map[string]any{
		"empty qualifiers":   reading("2018-01-01T00:00:00", "1"),
		"short dateTime":     reading("2018-01", "1", "P"),
		"bad date":           reading("2018-02-31T00:00:00", "1", "P"),
		"null value":         reading("2018-01-01T00:00:00", nil, "P"),
		"non finite value":   reading("2018-01-01T00:00:00", "NaN", "P"),
		"boolean value":      reading("2018-01-01T00:00:00", true, "P"),
		"empty string value": reading("2018-01-01T00:00:00", "", "P"),
		"hex float value":    reading("2018-01-01T00:00:00", "0x1p4", "P"),
		"underscored value":  reading("2018-01-01T00:00:00", "1_000", "P"),
		"infinity value":     reading("2018-01-01T00:00:00", "Inf", "P"),
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := parser.DailyValues(site, payload(t, r))
			require.NoError(t, err)
			assert.Empty(t, res.Observations)
			require.Len(t, res.Rejected, 1)
			assert.ErrorIs(t, res.Rejected[0], apperr.ErrParse)
		})
	}
}

func TestDailyValuesStructureErrors(t *testing.T) {
	twoSeries := `{"value":{"timeSeries":[{"values":[{"value":[]}]},{"values":[{"value":[]}]}]}}`
	twoGroups := `{"value":{"timeSeries":[{"values":[{"value":[]},{"value":[]}]}]}}`
	otherSite := `{"value":{"timeSeries":[{"sourceInfo":{"siteCode":[{"value":"99999999"}]},"values":[{"value":[]}]}]}}`

	cases := map[string]string{
		"invalid json":     `{"value":`,
		"missing value":    `{"name":"ns1:timeSeriesResponseType"}`,
		"no time series":   `{"value":{"timeSeries":[]}}`,
		"missing series":   `{"value":{}}`,
		"two series":       twoSeries,
		"two value groups": twoGroups,
		"no value groups":  `{"value":{"timeSeries":[{"values":[]}]}}`,
		"other site":       otherSite,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser.DailyValues(site, []byte(body))
			assert.ErrorIs(t, err, apperr.ErrParse)
		})
	}
}

func TestDailyValuesEmptyGroup(t *testing.T) {
	res, err := parser.DailyValues(site, []byte(`{"value":{"timeSeries":[{"values":[{"value":[]}]}]}}`))
	require.NoError(t, err)
	assert.Empty(t, res.Observations)
	assert.Empty(t, res.Rejected)
}
