package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/howmuchwater/internal/models"
	"github.com/02loveslollipop/howmuchwater/internal/report"
)

func TestChartPoints(t *testing.T) {
	rows := []models.Row{
		{Date: "2018-01-04", Discharge: 250, Qualifier: "A"},
		{Date: "2018-01-03", Discharge: 0, Qualifier: "A"},
		{Date: "2018-01-02", Discharge: -1, Qualifier: "A:e"},
		{Date: "2018-01-01", Discharge: 125000.5, Qualifier: "P"},
	}

	assert.Equal(t, []report.Point{
		{Date: "2018-01-01", Discharge: 125000.5},
		{Date: "2018-01-04", Discharge: 250},
	}, report.ChartPoints(rows))
}

func TestChartPointsEmpty(t *testing.T) {
	points := report.ChartPoints(nil)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestDischarge(t *testing.T) {
	assert.Equal(t, "125,000", report.Discharge(125000))
	assert.Equal(t, "1,234.5", report.Discharge(1234.5))
	assert.Equal(t, "0", report.Discharge(0))
}

func TestWriteTable(t *testing.T) {
	rows := []models.Row{
		{Date: "2018-01-02", Discharge: 98000, Qualifier: "A"},
		{Date: "2018-01-01", Discharge: 125000, Qualifier: "P"},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, "03292494", rows))

	out := buf.String()
	assert.Contains(t, out, "Daily discharge for site 03292494 (2 days)")
	assert.Contains(t, out, "98,000")
	assert.Contains(t, out, "125,000")
	assert.Contains(t, out, "peak: 125,000 ft³/s on 2018-01-01")
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, "03292494", nil))
	assert.Contains(t, buf.String(), "no observations stored")
}
