// Package identity talks to the Appwrite-compatible account service that owns
// users and sessions.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
)

const (
	headerProject = "X-Appwrite-Project"
	headerKey     = "X-Appwrite-Key"
	headerSession = "X-Appwrite-Session"

	defaultTimeout = 10 * time.Second
)

type Config struct {
	// Endpoint is the API root, e.g. https://cloud.appwrite.io/v1.
	Endpoint string
	Project  string
	APIKey   string
	Timeout  time.Duration

	HTTPClient *http.Client
}

type Client struct {
	endpoint string
	project  string
	apiKey   string
	hc       *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: strings.TrimRight(c.Endpoint, "/"),
		project:  c.Project,
		apiKey:   c.APIKey,
		hc:       hc,
	}
}

// Session is a login session. Secret authenticates later requests.
type Session struct {
	SessionID  string    `json:"$id"`
	UserID     string    `json:"userId"`
	Secret     string    `json:"secret"`
	ExpireTime time.Time `json:"expire"`
}

type user struct {
	ID    string `json:"$id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u user) domain() *domain.User {
	return &domain.User{UserID: u.ID, Name: u.Name, Email: u.Email}
}

type CreateAccountRequest struct {
	Email    string
	Password string
	Name     string
}

func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.User, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, errors.Validation("email", "email is required")
	}
	if req.Password == "" {
		return nil, errors.Validation("password", "password is required")
	}

	var u user
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/account",
		body: map[string]string{
			"userId":   "unique()",
			"email":    req.Email,
			"password": req.Password,
			"name":     req.Name,
		},
	}, &u)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return u.domain(), nil
}

type LoginRequest struct {
	Email    string
	Password string
}

// Login creates an email/password session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var ss Session
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/account/sessions/email",
		body: map[string]string{
			"email":    req.Email,
			"password": req.Password,
		},
		withKey: true,
	}, &ss)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &ss, nil
}

// Logout deletes the session identified by secret.
func (c *Client) Logout(ctx context.Context, secret string) error {
	if err := c.do(ctx, call{
		method:  http.MethodDelete,
		path:    "/account/sessions/current",
		session: secret,
	}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// CurrentUser returns the user owning the session secret.
func (c *Client) CurrentUser(ctx context.Context, secret string) (*domain.User, error) {
	if secret == "" {
		return nil, errors.Unauthenticated(nil)
	}

	var u user
	if err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/account",
		session: secret,
	}, &u); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return u.domain(), nil
}

// GetUser looks a user up by id with the server API key.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u user
	if err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/users/" + url.PathEscape(id),
		withKey: true,
	}, &u); err != nil {
		return nil, fmt.Errorf("get user: id=%s: %w", id, err)
	}

	return u.domain(), nil
}

type call struct {
	method  string
	path    string
	body    any
	session string
	withKey bool
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint+cl.path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerProject, c.project)
	if cl.withKey && c.apiKey != "" {
		req.Header.Set(headerKey, c.apiKey)
	}
	if cl.session != "" {
		req.Header.Set(headerSession, cl.session)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("identity service unavailable"),
			errors.WithCause(err),
		)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return convertError(ctx, cl, resp.StatusCode, b)
	}

	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

func convertError(ctx context.Context, cl call, status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	cause := fmt.Errorf("%s %s: status %d: %s (%s)", cl.method, cl.path, status, ae.Message, ae.Type)

	slog.DebugContext(ctx, "identity: request failed",
		"method", cl.method,
		"path", cl.path,
		"status", status,
		"type", ae.Type,
	)

	switch {
	case status == http.StatusUnauthorized:
		return errors.Unauthenticated(cause)
	case status == http.StatusNotFound:
		return errors.New(errors.CodeNotFound,
			errors.WithReason(errors.ReasonNotFound),
			errors.WithMessagef("%s", message(ae, "not found")),
			errors.WithCause(cause),
		)
	case status == http.StatusConflict:
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("%s", message(ae, "already exists")),
			errors.WithCause(cause),
		)
	case status == http.StatusForbidden:
		return errors.New(errors.CodePermissionDenied,
			errors.WithReason(errors.ReasonPermissionDenied),
			errors.WithMessagef("%s", message(ae, "permission denied")),
			errors.WithCause(cause),
		)
	case status < http.StatusInternalServerError:
		return errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonValidation),
			errors.WithMessagef("%s", message(ae, "invalid request")),
			errors.WithCause(cause),
		)
	default:
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("identity service unavailable"),
			errors.WithCause(cause),
		)
	}
}

func message(ae apiError, fallback string) string {
	if ae.Message != "" {
		return ae.Message
	}
	return fallback
}
