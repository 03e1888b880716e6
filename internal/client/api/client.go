// Package api is the typed request/response mapping for the reminder
// service: the CRUD surface plus login. It attaches the bearer credential
// when one is present and never short-circuits locally on a missing token;
// the server decides what is authorized.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dpoeymirou/call-me-reminder/internal/shared/models"
)

// TokenSource yields the current bearer credential, or "" when there is
// none. The session gate implements this.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

func New(baseURL string, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logger,
	}
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string { return c.baseURL }

// List fetches reminders, server-filtered by status when one is given.
// Ordering is server-determined and must be treated as opaque.
func (c *Client) List(ctx context.Context, status *models.ReminderStatus) ([]models.Reminder, error) {
	path := "/reminders"
	if status != nil {
		path += "?" + url.Values{"status": {string(*status)}}.Encode()
	}
	var out []models.Reminder
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Reminder{}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (models.Reminder, error) {
	var out models.Reminder
	err := c.do(ctx, http.MethodGet, "/reminders/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, req models.CreateReminderRequest) (models.Reminder, error) {
	var out models.Reminder
	err := c.do(ctx, http.MethodPost, "/reminders", req, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, req models.UpdateReminderRequest) (models.Reminder, error) {
	var out models.Reminder
	err := c.do(ctx, http.MethodPut, "/reminders/"+url.PathEscape(id), req, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/reminders/"+url.PathEscape(id), nil, nil)
}

// Login exchanges the password for an access token. It needs no
// credential and does not store the result; the session gate does that.
func (c *Client) Login(ctx context.Context, password string) (models.TokenResponse, error) {
	var out models.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"password": password}, &out)
	if errors.Is(err, ErrUnauthorized) {
		return models.TokenResponse{}, ErrLoginRejected
	}
	if err != nil {
		return models.TokenResponse{}, err
	}
	if out.AccessToken == "" {
		return models.TokenResponse{}, ErrLoginRejected
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	detail := readDetail(resp.Body)
	c.logger.Debug("api request failed",
		"method", method, "path", path, "status", resp.StatusCode, "detail", detail)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrValidationRejected, detail)
		}
		return ErrValidationRejected
	}
	return &StatusError{StatusCode: resp.StatusCode, Detail: detail}
}

// readDetail pulls a human-readable message out of an error body. The
// backend uses {"detail": ...}; anything unparseable is returned raw.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(b)
}
