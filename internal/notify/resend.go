package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultResendURL = "https://api.resend.com"

// Message is one outbound HTML email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendClient sends email through the Resend HTTP API.
type ResendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func NewResendClient(baseURL, apiKey string, logger *slog.Logger) *ResendClient {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	return &ResendClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

type sendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send posts the message and returns the provider message id.
func (c *ResendClient) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body (limit to 4KB)
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		var apiErr resendError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var sent sendResponse
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", fmt.Errorf("decoding resend response: %w", err)
	}

	c.logger.Debug("email sent",
		"to", msg.To,
		"message_id", sent.ID,
		"response_time_ms", time.Since(start).Milliseconds(),
	)
	return sent.ID, nil
}
