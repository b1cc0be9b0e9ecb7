package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/http/dto"
)

// apiClient talks to the ledger HTTP API on behalf of one tenant.
type apiClient struct {
	baseURL      string
	tenant       string
	token        string
	tenantHeader string
	http         *http.Client
}

// apiError is a non-2xx response decoded from the API error body.
type apiError struct {
	Status  int
	Code    string
	Message string
	Details []dto.ErrorDetail
	Delta   *decimal.Decimal
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("api error (status %d): %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Delta != nil {
		msg += fmt.Sprintf(" (delta %s)", e.Delta.String())
	}
	for _, d := range e.Details {
		switch {
		case d.Line != nil:
			msg += fmt.Sprintf("\n  line %d: %s", *d.Line, d.Reason)
		case d.Field != "":
			msg += fmt.Sprintf("\n  %s: %s", d.Field, d.Reason)
		}
	}
	return msg
}

// do sends a request and decodes a JSON response into out. Statuses listed in
// accept are decoded like 2xx responses instead of being turned into an apiError.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out any, accept ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := strings.TrimRight(c.baseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenant != "" {
		req.Header.Set(c.tenantHeader, c.tenant)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 && !accepted(resp.StatusCode, accept) {
		var errResp dto.ErrorResponse
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr != nil || errResp.Error == "" {
			return resp.StatusCode, &apiError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Code: errResp.Error, Message: errResp.Message, Details: errResp.Details, Delta: errResp.Delta}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}
