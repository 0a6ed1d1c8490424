// Package parser turns NWIS daily-values payloads into observations.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/models"
)

// Result is the outcome of parsing one response. Observations keep the order
// in which the service returned them.
type Result struct {
	Observations []models.Observation
	Rejected     []RecordError
}

// RecordError describes a reading that could not be normalized. The rest of
// the batch is unaffected.
type RecordError struct {
	Index    int
	DateTime string
	Err      error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("reading %d (%s): %v", e.Index, e.DateTime, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// DailyValues parses a raw response body for site. The payload must hold
// exactly one time series with exactly one value group; anything else fails
// the whole response.
func DailyValues(site string, body []byte) (Result, error) {
	const op = "parser.DailyValues"

	var payload models.DailyValuesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, apperr.E(apperr.Parse, op, fmt.Errorf("decode payload: %w", err))
	}
	if payload.Value == nil || payload.Value.TimeSeries == nil {
		return Result{}, apperr.Errorf(apperr.Parse, op, "payload has no value.timeSeries")
	}
	if n := len(payload.Value.TimeSeries); n != 1 {
		return Result{}, apperr.Errorf(apperr.Parse, op, "expected exactly one time series, got %d", n)
	}

	series := payload.Value.TimeSeries[0]
	if codes := series.SourceInfo.SiteCode; len(codes) > 0 && codes[0].Value != "" && codes[0].Value != site {
		return Result{}, apperr.Errorf(apperr.Parse, op, "response is for site %s, requested %s", codes[0].Value, site)
	}
	if n := len(series.Values); n != 1 {
		return Result{}, apperr.Errorf(apperr.Parse, op, "expected exactly one value group, got %d", n)
	}

	readings := series.Values[0].Value
	res := Result{Observations: make([]models.Observation, 0, len(readings))}
	for i, r := range readings {
		obs, err := Reading(site, r)
		if err != nil {
			res.Rejected = append(res.Rejected, RecordError{Index: i, DateTime: r.DateTime, Err: err})
			continue
		}
		res.Observations = append(res.Observations, obs)
	}
	return res, nil
}

// Reading normalizes a single wire reading. The date is the first ten
// characters of dateTime, the qualifier is the first of the list.
func Reading(site string, r models.Reading) (models.Observation, error) {
	const op = "parser.Reading"

	if len(r.DateTime) < len(daterange.Layout) {
		return models.Observation{}, apperr.Errorf(apperr.Parse, op, "dateTime %q is too short", r.DateTime)
	}
	date, err := time.Parse(daterange.Layout, r.DateTime[:len(daterange.Layout)])
	if err != nil {
		return models.Observation{}, apperr.E(apperr.Parse, op, fmt.Errorf("dateTime %q: %w", r.DateTime, err))
	}

	discharge, err := Discharge(r.Value)
	if err != nil {
		return models.Observation{}, apperr.E(apperr.Parse, op, err)
	}

	if len(r.Qualifiers) == 0 {
		return models.Observation{}, apperr.Errorf(apperr.Parse, op, "reading for %s has no qualifiers", r.DateTime[:len(daterange.Layout)])
	}

	return models.Observation{
		SiteID:    site,
		Date:      date,
		Discharge: discharge,
		Qualifier: r.Qualifiers[0],
	}, nil
}

var errNoValue = errors.New("value is missing")

// strconv also takes hex floats, underscores and "Inf"; the service only
// sends plain decimals.
var decimalPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// Discharge converts a wire value, quoted or bare, to a finite number.
func Discharge(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errNoValue
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("value %s: %w", raw, err)
		}
	}

	if !decimalPattern.MatchString(text) {
		return 0, fmt.Errorf("value %q is not a decimal number", text)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", text)
	}
	return v, nil
}
