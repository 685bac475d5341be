package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultClassifyPath = "/api/assistant/classify"
	DefaultConversePath = "/api/assistant/converse"

	// maxErrorBody bounds how much of a failed response body ends up in a
	// StatusError (and from there in test reports).
	maxErrorBody = 200
)

// HTTPClient calls the assistant's JSON endpoints.
//
// Timeouts are not set on the underlying http.Client; every call is bounded
// by the context the caller passes in.
type HTTPClient struct {
	BaseURL      string
	ClassifyPath string
	ConversePath string
	HTTP         *http.Client
}

// NewHTTPClient creates a client rooted at baseURL with the default paths.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClassifyPath: DefaultClassifyPath,
		ConversePath: DefaultConversePath,
		HTTP:         &http.Client{},
	}
}

// ClassifyOnce posts a single message to the classification endpoint.
func (c *HTTPClient) ClassifyOnce(ctx context.Context, req ClassifyRequest) (*ClassifyReply, error) {
	var reply ClassifyReply
	if err := c.post(ctx, c.ClassifyPath, req, &reply); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return &reply, nil
}

// Converse posts a message with history to the conversation endpoint.
func (c *HTTPClient) Converse(ctx context.Context, req ConverseRequest) (*ConverseReply, error) {
	if req.History == nil {
		req.History = []Message{}
	}
	var reply ConverseReply
	if err := c.post(ctx, c.ConversePath, req, &reply); err != nil {
		return nil, fmt.Errorf("converse: %w", err)
	}
	return &reply, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
