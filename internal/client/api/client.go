package api

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

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/questline/internal/client/storage"
	"github.com/iudanet/questline/pkg/api"
)

const (
	refreshCookieName = "Refresh-Token"
	bearerPrefix      = "Bearer "
)

// StatusError is a non-2xx answer from the server
type StatusError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Code)
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Каждый запрос несет сохраненные токены, а ротированные сервером
// токены сразу записываются обратно в хранилище.
type Client struct {
	httpClient *http.Client
	store      storage.AuthStorage
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string, store storage.AuthStorage) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Signup регистрирует пользователя и сохраняет выданную сессию
func (c *Client) Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/signup", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("signup request failed: %w", err)
	}
	if err := c.rememberUser(ctx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if err := c.rememberUser(ctx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout завершает сессию на сервере; локальная сессия удаляется вместе с cookie
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Me возвращает текущего пользователя с ролями
func (c *Client) Me(ctx context.Context) (*api.Me, error) {
	var resp api.Me
	if err := c.doRequest(ctx, http.MethodGet, "/user/me", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return &resp, nil
}

// Tasks lists the caller's tasks, or the tasks of one quest when questID is set
func (c *Client) Tasks(ctx context.Context, questID string) ([]api.Task, error) {
	var query url.Values
	if questID != "" {
		query = url.Values{"questId": {questID}}
	}

	var resp []api.Task
	if err := c.doRequest(ctx, http.MethodGet, "/task", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("list tasks request failed: %w", err)
	}
	return resp, nil
}

// CreateTask создает задачу
func (c *Client) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error) {
	var resp api.Task
	if err := c.doRequest(ctx, http.MethodPost, "/task", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("create task request failed: %w", err)
	}
	return &resp, nil
}

// CheckTask отмечает очередное выполнение задачи
func (c *Client) CheckTask(ctx context.Context, taskID string) (*api.TaskProgress, error) {
	return c.transitionTask(ctx, "check", taskID)
}

// CompleteTask завершает задачу
func (c *Client) CompleteTask(ctx context.Context, taskID string) (*api.TaskProgress, error) {
	return c.transitionTask(ctx, "complete", taskID)
}

// FailTask проваливает задачу
func (c *Client) FailTask(ctx context.Context, taskID string) (*api.TaskProgress, error) {
	return c.transitionTask(ctx, "fail", taskID)
}

func (c *Client) transitionTask(ctx context.Context, action, taskID string) (*api.TaskProgress, error) {
	var resp api.TaskProgress
	query := url.Values{"id": {taskID}}
	if err := c.doRequest(ctx, http.MethodPatch, "/task/"+action, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s task request failed: %w", action, err)
	}
	return &resp, nil
}

// DeleteTask удаляет задачу
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	query := url.Values{"id": {taskID}}
	if err := c.doRequest(ctx, http.MethodDelete, "/task", query, nil, nil); err != nil {
		return fmt.Errorf("delete task request failed: %w", err)
	}
	return nil
}

// Quests lists the caller's quests
func (c *Client) Quests(ctx context.Context) ([]api.Quest, error) {
	var resp []api.Quest
	if err := c.doRequest(ctx, http.MethodGet, "/quest", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list quests request failed: %w", err)
	}
	return resp, nil
}

// CreateQuest создает квест
func (c *Client) CreateQuest(ctx context.Context, req api.CreateQuestRequest) (*api.Quest, error) {
	var resp api.Quest
	if err := c.doRequest(ctx, http.MethodPost, "/quest", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("create quest request failed: %w", err)
	}
	return &resp, nil
}

// AddQuestTask создает задачу сразу внутри квеста
func (c *Client) AddQuestTask(ctx context.Context, questID string, req api.CreateTaskRequest) (*api.Task, error) {
	var resp api.Task
	query := url.Values{"id": {questID}}
	if err := c.doRequest(ctx, http.MethodPost, "/quest/task", query, req, &resp); err != nil {
		return nil, fmt.Errorf("add quest task request failed: %w", err)
	}
	return &resp, nil
}

// StartQuest запускает квест
func (c *Client) StartQuest(ctx context.Context, questID string) (*api.Quest, error) {
	var resp api.Quest
	query := url.Values{"id": {questID}}
	if err := c.doRequest(ctx, http.MethodPatch, "/quest/start", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("start quest request failed: %w", err)
	}
	return &resp, nil
}

// rememberUser дописывает в сессию, сохраненную по заголовкам, данные пользователя
func (c *Client) rememberUser(ctx context.Context, resp *api.AuthResponse) error {
	auth, err := c.store.GetAuth(ctx)
	if err != nil {
		return fmt.Errorf("server did not issue a session: %w", err)
	}

	auth.Login = resp.User.Login
	auth.UserID = resp.User.UUID
	auth.ServerURL = c.baseURL
	if auth.AccessExpiresAt == 0 && !resp.AccessExpiresAt.IsZero() {
		auth.AccessExpiresAt = resp.AccessExpiresAt.Unix()
	}

	if err := c.store.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.attachSession(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Токены сохраняем до разбора статуса: 401 тоже может очистить сессию
	if err := c.captureSession(ctx, resp); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Code: errResp.Error, Message: errResp.Message}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// attachSession кладет в запрос access token и refresh cookie
func (c *Client) attachSession(ctx context.Context, req *http.Request) error {
	auth, err := c.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load auth data: %w", err)
	}

	if auth.AccessToken != "" {
		req.Header.Set("Authorization", bearerPrefix+auth.AccessToken)
	}
	if auth.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: auth.RefreshToken})
	}
	return nil
}

// captureSession сохраняет токены, которые сервер выдал или отозвал в ответе
func (c *Client) captureSession(ctx context.Context, resp *http.Response) error {
	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == refreshCookieName {
			cookie = ck
		}
	}

	if cookie != nil && (cookie.MaxAge < 0 || cookie.Value == "") {
		err := c.store.DeleteAuth(ctx)
		if err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
			return fmt.Errorf("failed to clear auth data: %w", err)
		}
		return nil
	}

	access := accessTokenFromHeader(resp.Header.Get("Authorization"))
	if cookie == nil && access == "" {
		return nil
	}

	auth, err := c.store.GetAuth(ctx)
	switch {
	case errors.Is(err, storage.ErrAuthNotFound):
		auth = &storage.AuthData{ServerURL: c.baseURL}
	case err != nil:
		return fmt.Errorf("failed to load auth data: %w", err)
	}

	if access != "" {
		auth.AccessToken = access
		if exp, ok := tokenExpiry(access); ok {
			auth.AccessExpiresAt = exp.Unix()
		}
	}
	if cookie != nil {
		auth.RefreshToken = cookie.Value
		if !cookie.Expires.IsZero() {
			auth.RefreshExpiresAt = cookie.Expires.Unix()
		}
	}

	if err := c.store.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}
	return nil
}

func accessTokenFromHeader(header string) string {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// tokenExpiry читает exp без проверки подписи: ключа у клиента нет
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
