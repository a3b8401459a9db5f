package consoleauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 1 << 20

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// postJSON sends payload as JSON to path. Any 2xx is success; when out is
// non-nil the body is decoded into it. Every failure, including a 2xx body
// that cannot be decoded, is returned as a translated *Error.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return Translate(Failure{Err: fmt.Errorf("failed to marshal request: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		// A request that cannot even be built never produced a response.
		return Translate(Failure{Err: fmt.Errorf("failed to create request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Translate(Failure{Err: fmt.Errorf("failed to send request: %w", err)})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// Headers arrived but the body did not; treat it as a dropped connection.
		return Translate(Failure{Err: fmt.Errorf("failed to read response body: %w", err)})
	}

	received := &Response{StatusCode: resp.StatusCode, Body: raw}

	if !isSuccess(resp.StatusCode) {
		return Translate(Failure{
			Response: received,
			Err:      fmt.Errorf("request failed with status code %d", resp.StatusCode),
		})
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return Translate(Failure{
			Response: received,
			Err:      fmt.Errorf("failed to decode response: %w", err),
		})
	}

	return nil
}

// malformed builds the error for a 2xx response that lacks required fields.
func malformed(status int, format string, args ...any) *Error {
	return Translate(Failure{
		Response: &Response{StatusCode: status},
		Err:      fmt.Errorf("malformed response: "+format, args...),
	})
}
