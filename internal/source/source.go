// Package source fetches the upstream list of file URLs.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/internal/metrics"
	"urltree/internal/retry"
	"urltree/pkg/types"
)

// maxPayloadSize bounds the upstream response body.
const maxPayloadSize = 64 << 20

// Source provides the ordered list of file URLs to build trees from.
type Source interface {
	Fetch(ctx context.Context) ([]types.SourceItem, error)
}

// FetchError reports an unavailable upstream or a malformed payload.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config holds HTTP source configuration.
type Config struct {
	URL         string
	Timeout     time.Duration
	RetryConfig retry.Config
}

// HTTPSource fetches {"items":[{"fileUrl":...}]} payloads over HTTP.
type HTTPSource struct {
	url         string
	httpClient  *http.Client
	retryConfig retry.Config

	mu  sync.RWMutex
	raw []byte
}

// NewHTTP creates an HTTP source.
func NewHTTP(cfg Config) *HTTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &HTTPSource{
		url:         cfg.URL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		retryConfig: cfg.RetryConfig,
	}
}

// Fetch downloads and validates the upstream payload. Network failures and
// 5xx responses are retried; everything else fails immediately.
func (s *HTTPSource) Fetch(ctx context.Context) ([]types.SourceItem, error) {
	start := time.Now()
	var body []byte

	err := retry.Do(ctx, s.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			logging.WithContext(ctx).Warn("upstream request failed", zap.String("url", s.url), zap.Error(err))
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("upstream returned %d", resp.StatusCode)
			if resp.StatusCode >= 500 {
				logging.WithContext(ctx).Warn("upstream server error", zap.String("url", s.url), zap.Int("status", resp.StatusCode))
				return retry.Retryable(err)
			}
			return err
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
		if err != nil {
			return retry.Retryable(err)
		}
		body = data
		return nil
	})
	if err != nil {
		metrics.RecordFetch(time.Since(start), false)
		return nil, &FetchError{URL: s.url, Err: err}
	}

	items, err := DecodePayload(body)
	if err != nil {
		metrics.RecordFetch(time.Since(start), false)
		return nil, &FetchError{URL: s.url, Err: err}
	}

	s.mu.Lock()
	s.raw = body
	s.mu.Unlock()

	metrics.RecordFetch(time.Since(start), true)
	logging.WithContext(ctx).Info("fetched upstream url list",
		zap.String("url", s.url),
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)),
	)
	return items, nil
}

// RawPayload returns the body of the last successful fetch.
func (s *HTTPSource) RawPayload() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

var (
	errMissingItems = errors.New("payload has no items list")
	errBadItem      = errors.New("item has no fileUrl string")
)

// DecodePayload validates and decodes an upstream body. items must be a
// list and every entry must carry a string fileUrl.
func DecodePayload(data []byte) ([]types.SourceItem, error) {
	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	raw := bytes.TrimSpace(envelope.Items)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errMissingItems
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid items: %w", err)
	}

	items := make([]types.SourceItem, 0, len(entries))
	for i, entry := range entries {
		var fileURL string
		value := bytes.TrimSpace(entry["fileUrl"])
		if len(value) == 0 || value[0] != '"' || json.Unmarshal(value, &fileURL) != nil {
			return nil, fmt.Errorf("item %d: %w", i, errBadItem)
		}
		items = append(items, types.SourceItem{FileURL: fileURL})
	}
	return items, nil
}
