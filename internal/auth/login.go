package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/torosent/fanload/internal/httpclient"
)

const loginPath = "/auth/login"

// ErrNoAccessToken is returned when a login succeeds without an access_token.
var ErrNoAccessToken = errors.New("no access token in response")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginProvider exchanges email/password for an access token at /auth/login.
// The token is fetched once and kept for the rest of the run; it is never
// refreshed and a failed login is not retried.
type LoginProvider struct {
	role       Role
	email      string
	password   string
	builder    *httpclient.RequestBuilder
	httpClient *http.Client

	mu          sync.Mutex
	cachedToken string
	lastErr     error
}

// NewLoginProvider creates a provider for role. A nil client falls back to
// http.DefaultClient.
func NewLoginProvider(role Role, builder *httpclient.RequestBuilder, client *http.Client, email, password string) *LoginProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &LoginProvider{
		role:       role,
		email:      email,
		password:   password,
		builder:    builder,
		httpClient: client,
	}
}

// Role returns the account this provider logs in as.
func (p *LoginProvider) Role() Role {
	return p.role
}

// Token logs in on first call and returns the cached token afterwards.
// A failed first login is remembered and returned on every later call.
func (p *LoginProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedToken != "" {
		return p.cachedToken, nil
	}
	if p.lastErr != nil {
		return "", p.lastErr
	}

	token, err := p.login(ctx)
	if err != nil {
		p.lastErr = &Error{Role: p.role, Err: err}
		return "", p.lastErr
	}
	p.cachedToken = token
	return token, nil
}

func (p *LoginProvider) login(ctx context.Context) (string, error) {
	if p.builder == nil {
		return "", errors.New("request builder is not configured")
	}
	req, err := p.builder.Build(ctx, http.MethodPost, loginPath, nil, loginRequest{
		Email:    p.email,
		Password: p.password,
	})
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return "", err
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// InjectHeader injects the login token into the Authorization header.
func (p *LoginProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	setBearer(req, token)
	return nil
}

// Close releases idle connections held by the provider's client.
func (p *LoginProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
