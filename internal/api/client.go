package api

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

	"github.com/go-playground/validator/v10"

	"github.com/quickcourt/quickcourt/internal/models"
)

// ErrUnauthorized is returned for HTTP 401 responses. It is the only signal
// that the backend has rejected the credential.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError describes any other non-success response
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Client represents an HTTP client for the QuickCourt API
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// New creates a new API client. baseURL includes the API prefix, e.g. http://localhost:5000/api
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: validator.New(),
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the backend's response wrapper
type envelope[T any] struct {
	Data T `json:"data"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) checkUser(user *models.User) error {
	if user == nil {
		return fmt.Errorf("response did not include a user")
	}
	if err := c.validate.Struct(user); err != nil {
		return fmt.Errorf("invalid user in response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and profile
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out envelope[LoginResponse]
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}

	if out.Data.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}
	if out.Data.User != nil {
		if err := c.checkUser(out.Data.User); err != nil {
			return nil, err
		}
	}

	return &out.Data, nil
}

// CurrentUser fetches the profile of the token's owner
func (c *Client) CurrentUser(ctx context.Context, bearer string) (*models.User, error) {
	var out envelope[*models.User]
	if err := c.do(ctx, "fetch current user", http.MethodGet, "/auth/me", bearer, nil, &out); err != nil {
		return nil, err
	}

	if err := c.checkUser(out.Data); err != nil {
		return nil, err
	}

	return out.Data, nil
}

// RefreshToken trades a token that is about to expire for a new one
func (c *Client) RefreshToken(ctx context.Context, bearer string) (string, error) {
	var out envelope[refreshResponse]
	if err := c.do(ctx, "refresh token", http.MethodPost, "/auth/refresh-token", bearer, nil, &out); err != nil {
		return "", err
	}

	if out.Data.Token == "" {
		return "", fmt.Errorf("refresh response did not include a token")
	}

	return out.Data.Token, nil
}

// UpdateRole assigns a role to the signed-in user and returns the updated profile
func (c *Client) UpdateRole(ctx context.Context, bearer, role string) (*models.User, error) {
	var out envelope[*models.User]
	if err := c.do(ctx, "update role", http.MethodPatch, "/auth/role", bearer, updateRoleRequest{Role: role}, &out); err != nil {
		return nil, err
	}

	if err := c.checkUser(out.Data); err != nil {
		return nil, err
	}

	return out.Data, nil
}
