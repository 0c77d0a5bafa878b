// Package remote is the console's client for the catalog server's JSON API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"case-console/internal/model"
)

const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken() string
}

type TokenSourceFunc func() string

func (f TokenSourceFunc) AccessToken() string {
	return f()
}

// CaseFields are the text parts of a create request.
type CaseFields struct {
	Title       string
	ServiceType string
	LocationTag string
	Description string
}

// ImagePayload is the file part of a create request.
type ImagePayload struct {
	Filename string
	Data     []byte
}

func (p ImagePayload) Empty() bool {
	return len(p.Data) == 0
}

type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithUnauthorizedHandler registers fn to run when an authenticated call is
// answered with 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTokenSource wires the session after construction, since the session
// itself needs the client for login.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// ImageURL resolves a record's server-relative image path.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *Client) List(ctx context.Context) ([]model.CaseRecord, error) {
	var records []model.CaseRecord
	if err := c.do(ctx, "list cases", http.MethodGet, "/api/v1/cases", nil, "", false, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.CaseRecord{}
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, fields CaseFields, image ImagePayload) (model.CaseRecord, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for name, value := range map[string]string{
		"title":        fields.Title,
		"service_type": fields.ServiceType,
		"location_tag": fields.LocationTag,
		"description":  fields.Description,
	} {
		if err := writer.WriteField(name, value); err != nil {
			return model.CaseRecord{}, err
		}
	}

	filename := image.Filename
	if filename == "" {
		filename = "image"
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return model.CaseRecord{}, err
	}
	if _, err := part.Write(image.Data); err != nil {
		return model.CaseRecord{}, err
	}
	if err := writer.Close(); err != nil {
		return model.CaseRecord{}, err
	}

	var created model.CaseRecord
	err = c.do(ctx, "create case", http.MethodPost, "/api/v1/cases", &body, writer.FormDataContentType(), true, &created)
	return created, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete case", http.MethodDelete, "/api/v1/cases/"+url.PathEscape(id), nil, "", true, nil)
}

// Reorder commits ids as the complete display order.
func (c *Client) Reorder(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	body, err := json.Marshal(model.ReorderRequest{IDs: ids})
	if err != nil {
		return err
	}
	return c.do(ctx, "commit order", http.MethodPatch, "/api/v1/cases/reorder", bytes.NewReader(body), "application/json", true, nil)
}

func (c *Client) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	body, err := json.Marshal(model.LoginRequest{Username: username, Password: password})
	if err != nil {
		return model.TokenPair{}, err
	}

	var pair model.TokenPair
	err = c.do(ctx, "login", http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body), "application/json", false, &pair)
	return pair, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	body, err := json.Marshal(model.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return model.TokenPair{}, err
	}

	var pair model.TokenPair
	err = c.do(ctx, "refresh", http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body), "application/json", false, &pair)
	return pair, err
}

// Revoke invalidates refreshToken on the server.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(model.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return c.do(ctx, "logout", http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(body), "application/json", true, nil)
}

func (c *Client) do(ctx context.Context, op string, method string, path string, body io.Reader, contentType string, authenticated bool, out any) error {
	endpoint := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	bearer := ""
	if authenticated && c.tokens != nil {
		bearer = c.tokens.AccessToken()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := readServerError(op, resp)
		if serverErr.Unauthorized() && bearer != "" && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return serverErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env model.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response data: %w", err)}
	}
	return nil
}

func readServerError(op string, resp *http.Response) *ServerError {
	serverErr := &ServerError{Op: op, Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return serverErr
	}

	var env model.Envelope[json.RawMessage]
	if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.Error != nil {
		serverErr.Code = env.Error.Code
		serverErr.Message = env.Error.Message
		return serverErr
	}

	text := strings.TrimSpace(string(raw))
	if text != "" && !strings.HasPrefix(text, "<") {
		serverErr.Message = text
	}
	return serverErr
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Unauthorized()
}
