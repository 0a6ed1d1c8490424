// Package report renders stored series for people: chart feeds and a plain
// text table.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/02loveslollipop/howmuchwater/internal/models"
)

// Point is one chart sample.
type Point struct {
	Date      string  `json:"date"`
	Discharge float64 `json:"discharge"`
}

// ChartPoints orders rows by date ascending and drops non-positive
// discharge, which cannot be drawn on the log-scaled flow chart.
func ChartPoints(rows []models.Row) []Point {
	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		if r.Discharge <= 0 {
			continue
		}
		points = append(points, Point{Date: r.Date, Discharge: r.Discharge})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// Discharge formats a value with thousands separators.
func Discharge(v float64) string {
	return humanize.Commaf(v)
}

// WriteTable prints rows as an aligned table followed by a peak line.
func WriteTable(w io.Writer, site string, rows []models.Row) error {
	if _, err := fmt.Fprintf(w, "Daily discharge for site %s (%s)\n", site, humanize.Comma(int64(len(rows)))+" days"); err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no observations stored")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\tdischarge (ft³/s)\tqualifier\t")
	peak := rows[0]
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.Date, Discharge(r.Discharge), r.Qualifier)
		if r.Discharge > peak.Discharge {
			peak = r
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "peak: %s ft³/s on %s\n", Discharge(peak.Discharge), peak.Date)
	return err
}
