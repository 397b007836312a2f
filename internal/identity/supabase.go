package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrAlreadyExists is returned when the email already has a login.
var ErrAlreadyExists = errors.New("identity already exists")

// SupabaseClient provisions logins through the GoTrue admin API. It needs
// the service role key.
type SupabaseClient struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	logger     *slog.Logger
}

func NewSupabaseClient(baseURL, serviceKey string, logger *slog.Logger) *SupabaseClient {
	return &SupabaseClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		logger:     logger,
	}
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type createUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorResponse struct {
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Provision creates a confirmed user with the given password and returns its id.
func (c *SupabaseClient) Provision(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(createUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
	})
	if err != nil {
		return "", fmt.Errorf("encoding create user request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building create user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create user request failed: %w", err)
	}
	defer resp.Body.Close()

	// Limit the read; error bodies are small JSON documents.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var user createUserResponse
		if err := json.Unmarshal(respBody, &user); err != nil {
			return "", fmt.Errorf("decoding create user response: %w", err)
		}
		if user.ID == "" {
			return "", errors.New("create user response has no id")
		}
		c.logger.Debug("auth user created", "email", email, "user_id", user.ID)
		return user.ID, nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(respBody, &apiErr)
	if isAlreadyExists(resp.StatusCode, apiErr) {
		return "", ErrAlreadyExists
	}

	msg := apiErr.text()
	if msg == "" {
		msg = strings.TrimSpace(string(respBody))
	}
	return "", fmt.Errorf("create user: status %d: %s", resp.StatusCode, msg)
}

func isAlreadyExists(status int, e errorResponse) bool {
	if e.ErrorCode == "email_exists" || e.ErrorCode == "user_already_exists" {
		return true
	}
	text := strings.ToLower(e.text())
	if strings.Contains(text, "already registered") || strings.Contains(text, "already been registered") || strings.Contains(text, "already exists") {
		return true
	}
	return status == http.StatusConflict
}
