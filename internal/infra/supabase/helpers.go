package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for POST, PATCH and counting
// ============================================================

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.doWrite(ctx, http.MethodPost, table, data, "return=representation")
}

// doUpsert POSTs with merge-duplicates so an existing row keyed by
// onConflict is updated instead of rejected.
func (c *Client) doUpsert(ctx context.Context, table, onConflict string, data any) ([]byte, error) {
	path := fmt.Sprintf("%s?on_conflict=%s", table, onConflict)
	return c.doWrite(ctx, http.MethodPost, path, data, "resolution=merge-duplicates,return=representation")
}

func (c *Client) doWrite(ctx context.Context, method, path string, data any, prefer string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)
	req.Header.Set("Prefer", prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: write request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: write non-2xx",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase %s %s returned %d: %s", method, path, resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: write OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	_, err := c.doWrite(ctx, http.MethodPatch, path, data, "return=minimal")
	return err
}

// doCount asks PostgREST for an exact row count via the Content-Range
// header, fetching at most one row of payload.
func (c *Client) doCount(ctx context.Context, path string) (int, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s/rest/v1/%s%sselect=id&limit=1", c.baseURL, path, sep)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	c.setHeaders(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: count request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("supabase count %s returned %d", path, resp.StatusCode)
	}

	// Content-Range: 0-0/42
	cr := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0, fmt.Errorf("supabase count: missing Content-Range")
	}
	total, err := strconv.Atoi(cr[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("supabase count: bad Content-Range %q", cr)
	}
	return total, nil
}

// rangePath appends PostgREST pagination to a query path.
func rangePath(path string, page, pageSize int) string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slimit=%d&offset=%d", path, sep, pageSize, (page-1)*pageSize)
}

func emptyBody(body []byte) bool {
	return len(body) == 0 || string(body) == "[]"
}
