// Package api is the HTTP client for the medical-assistant server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized is returned for HTTP 401 responses. Callers treat it as
// "not logged in" rather than as a chat error.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a structured {error} payload returned with a non-OK status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error! Status: %d", e.StatusCode)
}

// DefaultTimeout for server requests.
const DefaultTimeout = 60 * time.Second

// Client talks to the medical-assistant server. Authentication is a server
// session cookie, so the client keeps a cookie jar across calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			// Auth endpoints answer with redirects; the client inspects
			// the first response instead of following them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckSystemStatus reports which backend model providers are available.
func (c *Client) CheckSystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.getJSON(ctx, "/api/check-system-status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// NewSession asks the server to create a new chat session.
func (c *Client) NewSession(ctx context.Context) (*NewSessionResponse, error) {
	var resp NewSessionResponse
	if err := c.postJSON(ctx, "/api/chat/new", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage sends a chat message to the selected model. An application
// error comes back in ChatResponse.Error with OK framing.
func (c *Client) SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions fetches the user's session list, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var resp SessionListResponse
	if err := c.getJSON(ctx, "/api/chat/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// GetSession fetches the full message history of one session.
func (c *Client) GetSession(ctx context.Context, id string) ([]Message, error) {
	var resp SessionMessagesResponse
	if err := c.getJSON(ctx, "/api/chat/session/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// RenameSession sets a new title on a session.
func (c *Client) RenameSession(ctx context.Context, id, title string) error {
	body := map[string]string{"title": title}
	return c.postJSON(ctx, "/api/chat/session/"+url.PathEscape(id), body, nil)
}

// DeleteSession removes a session and its history.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/chat/session/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// UploadFile uploads a document for text extraction. filename is the name
// reported to the server; r supplies the file bytes.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result UploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Login authenticates with the server's form-based login. The session
// cookie lands in the client's jar; a redirect response means success,
// re-rendering the login page means bad credentials.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	ok, err := c.postForm(ctx, "/login", form)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("invalid credentials")
	}
	return nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	ok, err := c.postForm(ctx, "/signup", form)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("email already exists")
	}
	return nil
}

// ChangePassword updates the password for an existing account.
func (c *Client) ChangePassword(ctx context.Context, email, newPassword, confirmPassword string) error {
	form := url.Values{
		"email":            {email},
		"new_password":     {newPassword},
		"confirm_password": {confirmPassword},
	}
	ok, err := c.postForm(ctx, "/change-password", form)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("password change rejected")
	}
	return nil
}

// Logout clears the server session.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	resp.Body.Close()
	return nil
}

// getJSON performs a GET and decodes an OK response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doJSON(req, out)
}

// postJSON performs a POST with an optional JSON body and decodes an OK
// response into out when out is non-nil.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// postForm submits an auth form. Returns true when the server redirected
// (the Flask success path) and false when it re-rendered the form.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return true, nil
	case resp.StatusCode == http.StatusOK:
		return false, nil
	default:
		return false, statusError(resp.StatusCode, nil)
	}
}

// checkStatus maps a non-OK response to an error without consuming a body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	return statusError(resp.StatusCode, respBody)
}

// statusError maps a non-OK status and optional body to a typed error.
// 401 becomes ErrUnauthorized; a structured {error} body becomes an
// APIError carrying the server's message.
func statusError(status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if len(body) > 0 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return &APIError{StatusCode: status, Message: payload.Error}
		}
	}
	return &APIError{StatusCode: status}
}
