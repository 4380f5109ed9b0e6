package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"thetaflow/logger"
)

type envelope struct {
	Response []json.RawMessage `json:"response"`
	Error    string            `json:"error,omitempty"`
}

// get fetches an endpoint and unwraps the response envelope. Transport
// failures (timeouts, connection errors) are retried with exponential
// backoff; non-200 statuses and envelope errors surface immediately.
// Every retry and every completed request is written to the audit sinks.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]json.RawMessage, error) {
	log := c.log.WithComponent("client").WithFields(logger.Fields{"endpoint": endpoint})

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	delay := c.retry.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			if aerr := c.retries.LogRetry(endpoint, attempt, err.Error()); aerr != nil {
				log.WithError(aerr).Warn("failed to record retry")
			}
			logger.IncrementRetry()
			log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("transport error, retrying")

			if attempt == c.retry.MaxAttempts {
				break
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= time.Duration(c.retry.BackoffMultiplier)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		duration := time.Since(start)

		if aerr := c.stats.AddStat(endpoint, duration, resp.StatusCode); aerr != nil {
			log.WithError(aerr).Warn("failed to record request stat")
		}
		logger.LogPerformanceEntry(log, "client", "api_request", duration, logger.Fields{"status": resp.StatusCode})

		if err != nil {
			return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}

		logger.IncrementRequest(len(body))

		var env envelope
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode envelope from %s: %w", endpoint, err)
		}
		if env.Error != "" {
			return nil, &APIError{Endpoint: endpoint, Message: env.Error}
		}
		return env.Response, nil
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", endpoint, c.retry.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// row is a decoded flat data row. Numeric fields arrive as json.Number.
type row map[string]any

// flattenRows normalizes history items: an item is either a flat row or a
// nested {contract: {...}, data: [...]} wrapper whose contract fields are
// joined onto each data row.
func flattenRows(items []json.RawMessage) ([]row, error) {
	var rows []row
	for _, item := range items {
		var m row
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}

		contract, hasContract := m["contract"].(map[string]any)
		data, hasData := m["data"].([]any)
		if !hasContract || !hasData {
			rows = append(rows, m)
			continue
		}
		for _, d := range data {
			inner, ok := d.(map[string]any)
			if !ok {
				continue
			}
			merged := make(row, len(contract)+len(inner))
			for k, v := range contract {
				merged[k] = v
			}
			for k, v := range inner {
				merged[k] = v
			}
			rows = append(rows, merged)
		}
	}
	return rows, nil
}

// decodeRow decodes a single object item, keeping numbers as json.Number.
func decodeRow(item json.RawMessage) (row, error) {
	var m row
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// listValue extracts a value from a listing item, which the terminal
// returns either as a bare scalar or as an object keyed by one of keys.
func listValue(item json.RawMessage, keys ...string) (string, bool) {
	if m, err := decodeRow(item); err == nil {
		if s := m.str(keys...); s != "" {
			return s, true
		}
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(item, &n); err == nil {
		return n.String(), true
	}
	var s string
	if err := json.Unmarshal(item, &s); err == nil && s != "" {
		return s, true
	}
	return "", false
}

var errMissingField = errors.New("missing field")

func (r row) float(keys ...string) (float64, error) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case float64:
			return n, nil
		case string:
			var f float64
			if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
				return f, nil
			}
		}
	}
	return 0, errMissingField
}

func (r row) int64(keys ...string) int64 {
	f, err := r.float(keys...)
	if err != nil {
		return 0
	}
	return int64(f)
}

func (r row) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			switch s := v.(type) {
			case string:
				return s
			case json.Number:
				return s.String()
			}
		}
	}
	return ""
}
