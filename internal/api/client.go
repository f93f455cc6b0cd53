package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/httputil"
)

// Client queries a running server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at base, e.g.
// "http://localhost:8080". A nil c uses http.DefaultClient.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

func (c *Client) url(path string, q url.Values) string {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Train starts a training run and waits for it to commit.
func (c *Client) Train(ctx context.Context) (*TrainResponse, error) {
	var resp TrainResponse
	if err := httputil.DoJSON(ctx, c.http, http.MethodPost, c.url("/api/train", nil), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Runs lists the most recent runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]db.Run, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var runs []db.Run
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.url("/api/runs", q), nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Stats returns the class areas of year.
func (c *Client) Stats(ctx context.Context, year int) (*StatsResponse, error) {
	q := url.Values{"year": {strconv.Itoa(year)}}
	var resp StatsResponse
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.url("/api/stats", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Change compares two years, returning at most limit transitions.
func (c *Client) Change(ctx context.Context, year1, year2, limit int) (*ChangeResponse, error) {
	if year1 >= year2 {
		return nil, fmt.Errorf("year1 (%d) must be before year2 (%d)", year1, year2)
	}
	q := url.Values{
		"year1": {strconv.Itoa(year1)},
		"year2": {strconv.Itoa(year2)},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp ChangeResponse
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.url("/api/change", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trend returns the long-format area table.
func (c *Client) Trend(ctx context.Context) (*TrendResponse, error) {
	var resp TrendResponse
	if err := httputil.DoJSON(ctx, c.http, http.MethodGet, c.url("/api/trend", nil), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
