// Package tsapi reads raw tag samples from the historian's HTTP time-series
// API.
package tsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ntentasd/bopstack-api/internal/fetch"
	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

var ErrMissingURL = errors.New("missing time-series API URL")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("time-series API returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

var _ fetch.Source = (*Client)(nil)

type Client struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	HTTPClient *http.Client
}

func New(baseURL, key, secret string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrMissingURL
	}
	return &Client{
		BaseURL:   baseURL,
		APIKey:    key,
		APISecret: secret,
		HTTPClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type datapoint struct {
	Timestamp int64 `json:"timestamp"`
	Value     any   `json:"value"`
}

type dataResponse struct {
	Items []struct {
		ExternalID string      `json:"externalId"`
		Datapoints []datapoint `json:"datapoints"`
	} `json:"items"`
}

// Fetch returns the samples of tagID in [startMs, endMs]. Client errors
// other than 429 are permanent and not retried by the fetch pool.
func (c *Client) Fetch(ctx context.Context, tagID string, startMs, endMs int64) ([]types.Entry, error) {
	q := url.Values{}
	q.Set("externalId", tagID)
	q.Set("start", strconv.FormatInt(startMs, 10))
	q.Set("end", strconv.FormatInt(endMs, 10))
	endpoint := fmt.Sprintf("%s/timeseries/data?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetch.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if c.APIKey != "" {
		req.SetBasicAuth(c.APIKey, c.APISecret)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.DbReadLatencySeconds.WithLabelValues(metrics.TSAPI, "timeseries_data").
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		if serr.Temporary() {
			return nil, serr
		}
		return nil, fetch.Permanent(serr)
	}

	var payload dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var entries []types.Entry
	for _, item := range payload.Items {
		if item.ExternalID != "" && item.ExternalID != tagID {
			continue
		}
		for _, dp := range item.Datapoints {
			v, ok := parseValue(dp.Value)
			if !ok {
				continue
			}
			entries = append(entries, types.Entry{
				Timestamp: time.UnixMilli(dp.Timestamp).UTC(),
				Value:     v,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries, nil
}

func parseValue(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
