// Package clients holds the outbound HTTP clients for the warehouse and
// pricing services, with TTL caching in front of both.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBodySize   = 1 << 20
)

// APIError is a structured failure returned by a downstream service.
type APIError struct {
	Code    string
	Status  int
	Service string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s client: %s (status %d)", e.Service, e.Code, e.Status)
}

type apiEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// doJSON performs an HTTP exchange and decodes the standard response envelope.
// The returned raw result is nil when the downstream reported no result.
func doJSON(ctx context.Context, client *http.Client, service, method, url, token string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s client: encode request: %w", service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s client: build request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s client: read response: %w", service, err)
	}

	var envelope apiEnvelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, &APIError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Status: resp.StatusCode, Service: service}
			}
			return nil, fmt.Errorf("%s client: decode response: %w", service, err)
		}
	}

	if envelope.Error != nil && envelope.Error.Code != "" {
		return nil, &APIError{Code: envelope.Error.Code, Status: resp.StatusCode, Service: service}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Status: resp.StatusCode, Service: service}
	}

	return envelope.Result, nil
}
