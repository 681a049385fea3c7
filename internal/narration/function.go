package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// FunctionClient invokes a hosted text-to-speech function over HTTP.
type FunctionClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewFunctionClient targets {baseURL}/functions/v1/{name}.
func NewFunctionClient(baseURL, name, apiKey string, timeout time.Duration) *FunctionClient {
	return &FunctionClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/functions/v1/" + strings.Trim(name, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// ErrMalformedResponse is returned when the function answers with a body
// that does not match {"text": string}.
var ErrMalformedResponse = errors.New("narration: malformed response")

type functionResponse struct {
	Text    *string `json:"text"`
	Error   string  `json:"error"`
	Message string  `json:"message"`
}

// Synthesize posts {text, language} and returns the function's text payload.
func (c *FunctionClient) Synthesize(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("narration: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("narration: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("narration: invoke function: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("narration: read response: %w", err)
	}

	var out functionResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil {
			if msg := firstNonEmpty(out.Error, out.Message); msg != "" {
				return nil, errors.New(msg)
			}
		}
		return nil, fmt.Errorf("narration: function returned %d", resp.StatusCode)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Result{}, nil
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if out.Text == nil {
		return &Result{}, nil
	}
	return &Result{Text: *out.Text}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
