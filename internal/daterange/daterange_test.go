package daterange_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := daterange.Parse(s)
	require.NoError(t, err)
	return d
}

func TestNormalizeKeepsValidRange(t *testing.T) {
	today := date(t, "2024-06-30")
	cases := [][2]string{
		{"2018-01-01", "2018-03-01"},
		{"2024-06-29", "2024-06-30"},
		{"2000-02-28", "2000-02-29"},
	}
	for _, c := range cases {
		start, end := date(t, c[0]), date(t, c[1])
		r, notes := daterange.Normalize(start, end, today)
		assert.Equal(t, start, r.Start, c)
		assert.Equal(t, end, r.End, c)
		assert.Equal(t, daterange.Notes{}, notes, c)
	}
}

func TestNormalizeClampsFutureEnd(t *testing.T) {
	today := date(t, "2024-06-30")
	r, notes := daterange.Normalize(date(t, "2024-06-01"), date(t, "2031-01-01"), today)

	assert.Equal(t, today, r.End)
	assert.Equal(t, date(t, "2024-06-01"), r.Start)
	assert.True(t, notes.EndClamped)
	assert.False(t, notes.StartReset)
}

func TestNormalizeResetsStartWhenNotBeforeEnd(t *testing.T) {
	today := date(t, "2024-06-30")

	// end before start
	r, notes := daterange.Normalize(date(t, "2018-03-01"), date(t, "2018-01-01"), today)
	assert.Equal(t, "2017-12-25", r.Start.Format(daterange.Layout))
	assert.Equal(t, "2018-01-01", r.End.Format(daterange.Layout))
	assert.True(t, notes.StartReset)

	// end equal to start
	r, _ = daterange.Normalize(date(t, "2020-05-10"), date(t, "2020-05-10"), today)
	assert.Equal(t, "2020-05-03", r.Start.Format(daterange.Layout))
}

func TestNormalizeClampThenReset(t *testing.T) {
	today := date(t, "2024-06-30")
	r, notes := daterange.Normalize(date(t, "2030-01-01"), date(t, "2031-01-01"), today)

	assert.Equal(t, today, r.End)
	assert.Equal(t, "2024-06-23", r.Start.Format(daterange.Layout))
	assert.True(t, notes.EndClamped)
	assert.True(t, notes.StartReset)
	assert.True(t, r.Start.Before(r.End))
}

func TestNormalizeIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 6, 30, 23, 30, 0, 0, loc)
	start := time.Date(2024, 6, 1, 18, 0, 0, 0, loc)

	r, notes := daterange.Normalize(start, now, daterange.Today(now))
	assert.Equal(t, "2024-06-01..2024-06-30", r.String())
	assert.Equal(t, daterange.Notes{}, notes)
	assert.Equal(t, 30, r.Days())
}

func TestParse(t *testing.T) {
	d, err := daterange.Parse(" 2018-1-5 ")
	require.NoError(t, err)
	assert.Equal(t, "2018-01-05", d.Format(daterange.Layout))

	for _, bad := range []string{"", "2018/01/05", "yesterday", "2018-13-01", "2018-02-30"} {
		_, err := daterange.Parse(bad)
		assert.ErrorIs(t, err, apperr.ErrInputFormat, bad)
	}
}
