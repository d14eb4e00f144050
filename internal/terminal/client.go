package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cutroom/floor-service/internal/models"
)

// APIError is a non-2xx answer from the floor service
type APIError struct {
	StatusCode    int
	Message       string
	Conflict      bool
	CurrentStatus models.MattressStatus
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a stale-status answer from the server
func IsConflict(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Conflict || apiErr.StatusCode == http.StatusConflict) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether the server rejected the session token
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

type envelope struct {
	Success       bool                  `json:"success"`
	Data          json.RawMessage       `json:"data"`
	Message       string                `json:"message"`
	Conflict      bool                  `json:"conflict"`
	CurrentStatus models.MattressStatus `json:"current_status"`
	Token         string                `json:"token"`
	User          *models.SessionUser   `json:"user"`
}

// APIClient talks to the floor service REST API
type APIClient struct {
	baseURL string
	client  *http.Client

	// Token supplies the bearer token for authenticated calls
	Token func() string
}

// NewAPIClient creates a client for the service at baseURL
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a token
func (c *APIClient) Login(ctx context.Context, username, password string) (string, models.SessionUser, error) {
	body := map[string]string{"username": username, "password": password}

	env, err := c.do(ctx, http.MethodPost, "/users/login", body, false)
	if err != nil {
		return "", models.SessionUser{}, err
	}
	if env.Token == "" || env.User == nil {
		return "", models.SessionUser{}, errors.New("login response without token or user")
	}
	return env.Token, *env.User, nil
}

// Logout revokes the current token
func (c *APIClient) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/logout", nil, true)
	return err
}

// Kanban fetches the mattresses of a day ("today" or YYYY-MM-DD)
func (c *APIClient) Kanban(ctx context.Context, day string) ([]models.Mattress, error) {
	var items []models.Mattress
	err := c.getData(ctx, "/mattress/kanban?day="+url.QueryEscape(day), &items)
	return items, err
}

// CutterQueue fetches the items a cutter device can see
func (c *APIClient) CutterQueue(ctx context.Context, device string) ([]models.Mattress, error) {
	var items []models.Mattress
	err := c.getData(ctx, "/mattress/cutter_queue?device="+url.QueryEscape(device), &items)
	return items, err
}

// ActiveOperators lists active operators of the given type
func (c *APIClient) ActiveOperators(ctx context.Context, opType models.OperatorType) ([]models.Operator, error) {
	path := "/operators/active"
	if opType != "" {
		path += "?type=" + url.QueryEscape(string(opType))
	}
	var ops []models.Operator
	err := c.getData(ctx, path, &ops)
	return ops, err
}

// UpdateStatus moves a mattress to req.Status
func (c *APIClient) UpdateStatus(ctx context.Context, id int64, req models.StatusUpdateRequest) (*models.Mattress, error) {
	return c.putMattress(ctx, fmt.Sprintf("/mattress/update_status/%d", id), req)
}

// FinishSpreading ends spreading and records the actual layers in one write
func (c *APIClient) FinishSpreading(ctx context.Context, id int64, req models.FinishSpreadingRequest) (*models.Mattress, error) {
	return c.putMattress(ctx, fmt.Sprintf("/mattress/finish_spreading/%d", id), req)
}

func (c *APIClient) putMattress(ctx context.Context, path string, body interface{}) (*models.Mattress, error) {
	env, err := c.do(ctx, http.MethodPut, path, body, true)
	if err != nil {
		return nil, err
	}

	var m models.Mattress
	if err := json.Unmarshal(env.Data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mattress: %w", err)
	}
	return &m, nil
}

func (c *APIClient) getData(ctx context.Context, path string, out interface{}) error {
	env, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, auth bool) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.Token != nil {
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	jsonErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (jsonErr == nil && !env.Success) {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr == nil {
			apiErr.Message = env.Message
			apiErr.Conflict = env.Conflict
			apiErr.CurrentStatus = env.CurrentStatus
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", jsonErr)
	}
	return &env, nil
}
