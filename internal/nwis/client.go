// Package nwis fetches daily values from the USGS National Water Information
// System web service.
package nwis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/daterange"
)

// DefaultBaseURL is the daily-values endpoint.
const DefaultBaseURL = "https://waterservices.usgs.gov/nwis/dv/"

// StatusError reports a response other than 200 OK.
type StatusError struct {
	Site       string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("site %s: unexpected status %s", e.Site, e.Status)
}

// Client issues daily-values requests for a site.
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient builds a client. A nil logger disables logging.
func NewClient(baseURL string, httpClient *http.Client, retry RetryPolicy, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nwis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		retry:   retry,
		circuit: cb,
		logger:  logger,
	}
}

// URL builds the daily-values request URL for site and r.
func (c *Client) URL(site string, r daterange.Range) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	values := u.Query()
	values.Set("format", "json")
	values.Set("indent", "on")
	values.Set("sites", site)
	values.Set("startDT", r.Start.Format(daterange.Layout))
	values.Set("endDT", r.End.Format(daterange.Layout))
	values.Set("siteStatus", "all")
	u.RawQuery = values.Encode()

	return u.String(), nil
}

// FetchDailyValues retrieves the raw JSON body for site over r. Any status
// other than 200 is a transport failure carrying a *StatusError.
func (c *Client) FetchDailyValues(ctx context.Context, site string, r daterange.Range) ([]byte, error) {
	const op = "nwis.FetchDailyValues"

	reqURL, err := c.URL(site, r)
	if err != nil {
		return nil, apperr.E(apperr.Transport, op, err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	c.logger.Debug("requesting daily values", zap.String("site", site), zap.String("url", reqURL))

	body, err := c.do(ctx, site, buildRequest)
	if err != nil {
		return nil, apperr.E(apperr.Transport, op, err)
	}

	c.logger.Debug("daily values received", zap.String("site", site), zap.Int("bytes", len(body)))
	return body, nil
}

// do runs one attempt through the circuit breaker per retry step.
func (c *Client) do(ctx context.Context, site string, buildRequest func() (*http.Request, error)) ([]byte, error) {
	attempt := 0
	for {
		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return c.once(req, site)
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type %T from circuit breaker", result)
			}
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) || attempt >= c.retry.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		delay := c.retry.delay(attempt)
		c.logger.Warn("daily values request failed, retrying",
			zap.String("site", site),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		attempt++
	}
}

func (c *Client) once(req *http.Request, site string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request daily values: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Site: site, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
