package nwis_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
	"github.com/02loveslollipop/howmuchwater/internal/nwis"
)

const site = "03292494"

func testRange(t *testing.T) daterange.Range {
	t.Helper()
	start, err := daterange.Parse("2018-01-01")
	require.NoError(t, err)
	end, err := daterange.Parse("2018-03-01")
	require.NoError(t, err)
	return daterange.Range{Start: start, End: end}
}

func TestFetchDailyValuesSendsQuery(t *testing.T) {
	var gotQuery map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{}
		for k := range q {
			gotQuery[k] = q.Get(k)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value":{"timeSeries":[]}}`)
	}))
	defer ts.Close()

	client := nwis.NewClient(ts.URL+"/nwis/dv/", ts.Client(), nwis.RetryPolicy{}, nil)
	body, err := client.FetchDailyValues(context.Background(), site, testRange(t))
	require.NoError(t, err)

	assert.JSONEq(t, `{"value":{"timeSeries":[]}}`, string(body))
	assert.Equal(t, map[string]string{
		"format":     "json",
		"indent":     "on",
		"sites":      site,
		"startDT":    "2018-01-01",
		"endDT":      "2018-03-01",
		"siteStatus": "all",
	}, gotQuery)
}

func TestFetchDailyValuesNonOKIsTransportError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "No sites found matching all criteria")
	}))
	defer ts.Close()

	client := nwis.NewClient(ts.URL, ts.Client(), nwis.RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond}, nil)
	_, err := client.FetchDailyValues(context.Background(), site, testRange(t))
	require.Error(t, err)

	assert.ErrorIs(t, err, apperr.ErrTransport)
	var se *nwis.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, site, se.Site)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, err.Error(), site)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors are not retried")
}

func TestFetchDailyValuesSingleAttemptByDefault(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := nwis.NewClient(ts.URL, ts.Client(), nwis.RetryPolicy{}, nil)
	_, err := client.FetchDailyValues(context.Background(), site, testRange(t))

	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchDailyValuesRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value":{"timeSeries":[]}}`)
	}))
	defer ts.Close()

	policy := nwis.RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	client := nwis.NewClient(ts.URL, ts.Client(), policy, nil)
	body, err := client.FetchDailyValues(context.Background(), site, testRange(t))

	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDailyValuesNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := nwis.NewClient(url, &http.Client{Timeout: time.Second}, nwis.RetryPolicy{}, nil)
	_, err := client.FetchDailyValues(context.Background(), site, testRange(t))

	assert.ErrorIs(t, err, apperr.ErrTransport)
	var se *nwis.StatusError
	assert.False(t, errors.As(err, &se))
}

func TestFetchDailyValuesContextDeadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := nwis.NewClient(ts.URL, ts.Client(), nwis.RetryPolicy{MaxRetries: 5, InitialInterval: time.Millisecond}, nil)
	_, err := client.FetchDailyValues(ctx, site, testRange(t))

	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestURL(t *testing.T) {
	client := nwis.NewClient("", nil, nwis.RetryPolicy{}, nil)
	u, err := client.URL(site, testRange(t))
	require.NoError(t, err)
	assert.Equal(t,
		"https://waterservices.usgs.gov/nwis/dv/?endDT=2018-03-01&format=json&indent=on&siteStatus=all&sites=03292494&startDT=2018-01-01",
		u)
}
