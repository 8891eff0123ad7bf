// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
)

// Client is the REST implementation of the consumed service contract.
//
// It implements [AuthAPI], [ProfileAPI], [TaskAPI], and [Pinger] against a
// Supabase-style surface: token exchanges under /auth/v1, row-level access
// under /rest/v1 with PostgREST filter syntax.
//
// # Concurrency
//
// Safe for concurrent use. The bearer token is owned by the session manager
// and pushed in via [Client.SetAccessToken]; every other field is read-only
// after construction.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.RWMutex
	bearer string
}

// NewClient constructs a REST client for the given service base URL.
//
// The outbound limiter keeps a misbehaving reload loop from hammering the
// service; every request waits for a token before leaving the process.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: constants.RemoteRequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(constants.RemoteRateLimitRPS), constants.RemoteRateLimitBurst),
		log:     logger,
	}
}

// SetAccessToken replaces the bearer token attached to subsequent requests.
// An empty token detaches authentication (anonymous key only).
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// # Request Plumbing

// do executes one JSON round trip. A non-2xx response is mapped to an
// [apperr.AppError]; out may be nil when the body is irrelevant.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("remote: limiter wait: %w", err)
	}

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}

	request.Header.Set("apikey", c.apiKey)
	request.Header.Set("Content-Type", "application/json")
	if token := c.accessToken(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := c.http.Do(request)
	if err != nil {
		// Transport failures look the same as unplugged network cables to
		// the caller; classification happens above this layer.
		return apperr.Auth("network failure", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return c.mapStatus(response)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

// mapStatus converts a failed response into the apperr taxonomy.
func (c *Client) mapStatus(response *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	var detail struct {
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(payload, &detail)
	message := detail.Message
	if message == "" {
		message = detail.Description
	}
	if message == "" {
		message = http.StatusText(response.StatusCode)
	}

	c.log.Debug("remote_request_failed",
		slog.Int("status", response.StatusCode),
		slog.String("message", message),
	)

	switch response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Unauthorized(message)
	case http.StatusNotFound:
		return apperr.NotFound("Resource")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.Auth(message, nil)
	default:
		return apperr.Internal(fmt.Errorf("remote: status %d: %s", response.StatusCode, message))
	}
}

// tokenResponse is the /auth/v1/token wire shape.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}

func (t *tokenResponse) session() *AuthSession {
	return &AuthSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		User:         t.User,
	}
}

// # AuthAPI

// SignInWithPassword implements [AuthAPI].
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	payload := map[string]string{"email": email, "password": password}
	var token tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", nil, payload, &token); err != nil {
		return nil, err
	}
	if token.User.ID == "" {
		return nil, apperr.Auth("no user data received", nil)
	}
	return token.session(), nil
}

// SignUp implements [AuthAPI].
func (c *Client) SignUp(ctx context.Context, details SignupDetails) (*AuthSession, error) {
	payload := map[string]any{
		"email":    details.Email,
		"password": details.Password,
		"data": Claims{
			Name:         details.Name,
			Phone:        details.Phone,
			Role:         "user",
			StudentID:    details.StudentID,
			DepartmentID: details.DepartmentID,
			BatchID:      details.BatchID,
			SectionID:    details.SectionID,
		},
	}
	var token tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, payload, &token); err != nil {
		return nil, err
	}
	if token.User.ID == "" {
		return nil, apperr.Auth("failed to create user", nil)
	}
	return token.session(), nil
}

// GetUser implements [AuthAPI].
func (c *Client) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	var user AuthUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", headers, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshSession implements [AuthAPI].
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	var token tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", nil, payload, &token); err != nil {
		return nil, err
	}
	return token.session(), nil
}

// SignOut implements [AuthAPI]. Scope is local: other devices stay signed in.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout?scope=local", headers, nil, nil)
}

// ResetPassword implements [AuthAPI].
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", nil, payload, nil)
}

// UpdateUserMetadata implements [AuthAPI].
func (c *Client) UpdateUserMetadata(ctx context.Context, accessToken string, claims Claims) error {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	payload := map[string]any{"data": claims}
	return c.do(ctx, http.MethodPut, "/auth/v1/user", headers, payload, nil)
}

// # ProfileAPI

// GetProfile implements [ProfileAPI].
func (c *Client) GetProfile(ctx context.Context, userID string) (*ProfileRecord, error) {
	path := "/rest/v1/users?id=eq." + url.QueryEscape(userID) + "&limit=1"
	var rows []ProfileRecord
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Profile")
	}
	return &rows[0], nil
}

// GetFullProfile implements [ProfileAPI].
func (c *Client) GetFullProfile(ctx context.Context, userID string) (*FullProfileRecord, error) {
	path := "/rest/v1/users_with_full_info?id=eq." + url.QueryEscape(userID) + "&limit=1"
	var rows []FullProfileRecord
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Profile")
	}
	return &rows[0], nil
}

// InsertProfile implements [ProfileAPI].
func (c *Client) InsertProfile(ctx context.Context, record *ProfileRecord) (*ProfileRecord, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	var rows []ProfileRecord
	if err := c.do(ctx, http.MethodPost, "/rest/v1/users", headers, record, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ProfileFetch("no profile data received after creation", nil)
	}
	return &rows[0], nil
}

// # TaskAPI

// ListTasks implements [TaskAPI]. The filter matches tasks owned by the
// user OR shared with the user's section, for every role.
func (c *Client) ListTasks(ctx context.Context, userID, sectionID string) ([]TaskRecord, error) {
	filter := fmt.Sprintf("(user_id.eq.%s,section_id.eq.%s)", userID, sectionID)
	if sectionID == "" {
		filter = fmt.Sprintf("(user_id.eq.%s)", userID)
	}
	path := "/rest/v1/tasks?or=" + url.QueryEscape(filter) + "&order=created_at.desc"

	var rows []TaskRecord
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertTask implements [TaskAPI].
func (c *Client) InsertTask(ctx context.Context, record *TaskRecord) (*TaskRecord, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	var rows []TaskRecord
	if err := c.do(ctx, http.MethodPost, "/rest/v1/tasks", headers, record, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Internal(fmt.Errorf("remote: no task data received after insert"))
	}
	return &rows[0], nil
}

// UpdateTask implements [TaskAPI].
func (c *Client) UpdateTask(ctx context.Context, taskID string, changes TaskChanges) (*TaskRecord, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	path := "/rest/v1/tasks?id=eq." + url.QueryEscape(taskID)
	var rows []TaskRecord
	if err := c.do(ctx, http.MethodPatch, path, headers, changes, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Task")
	}
	return &rows[0], nil
}

// DeleteTask implements [TaskAPI].
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	path := "/rest/v1/tasks?id=eq." + url.QueryEscape(taskID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// # Pinger

// Ping implements [Pinger] via the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/v1/health", nil, nil, nil)
}

var (
	_ AuthAPI    = (*Client)(nil)
	_ ProfileAPI = (*Client)(nil)
	_ TaskAPI    = (*Client)(nil)
	_ Pinger     = (*Client)(nil)
)
