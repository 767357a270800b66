package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// BaseURLFromEnv returns the server address from DP1_HTTP or a local default.
func BaseURLFromEnv() string {
	if v := os.Getenv("DP1_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8787"
}

type apiClient struct {
	base string
	hc   *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, hc: http.DefaultClient}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("server: %s (status %d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("server: status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (c *apiClient) getRecord(ctx context.Context, ns, key string) (json.RawMessage, error) {
	q := url.Values{"ns": {ns}, "key": {key}}
	var out struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/records/get?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *apiClient) putRecord(ctx context.Context, ns, key string, value json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/v1/records/save", map[string]any{
		"namespace": ns, "key": key, "value": value,
	}, nil)
}

func (c *apiClient) putBatch(ctx context.Context, ns string, entries map[string]json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/v1/records/save-batch", map[string]any{
		"namespace": ns, "entries": entries,
	}, nil)
}

func (c *apiClient) deleteRecord(ctx context.Context, ns, key string) error {
	return c.do(ctx, http.MethodPost, "/v1/records/delete", map[string]any{
		"namespace": ns, "key": key,
	}, nil)
}

type listPage struct {
	Keys       []string `json:"keys"`
	IsComplete bool     `json:"isComplete"`
	Cursor     string   `json:"cursor"`
}

func (c *apiClient) listRecords(ctx context.Context, ns, prefix, cursor, filter string, limit int) (listPage, error) {
	q := url.Values{"ns": {ns}}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if filter != "" {
		q.Set("filter", filter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page listPage
	err := c.do(ctx, http.MethodGet, "/v1/records/list?"+q.Encode(), nil, &page)
	return page, err
}

func (c *apiClient) queueStats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/v1/queue/stats", nil, &out)
	return out, err
}

func (c *apiClient) queueDead(ctx context.Context, limit int) ([]json.RawMessage, error) {
	path := "/v1/queue/dead"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Entries []json.RawMessage `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Entries, err
}
