package auth

import (
	"context"
	"net/http"
)

// TokenProvider carries a token obtained earlier in the run, so requests that
// use it never trigger a login of their own.
type TokenProvider struct {
	role  Role
	token string
}

// NewTokenProvider wraps the token role logged in with.
func NewTokenProvider(role Role, token string) *TokenProvider {
	return &TokenProvider{role: role, token: token}
}

// Role returns the account the token belongs to.
func (p *TokenProvider) Role() Role {
	return p.role
}

// Token returns the wrapped token. An empty token is reported as a login
// failure for the role.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", &Error{Role: p.role, Err: ErrNoAccessToken}
	}
	return p.token, nil
}

func (p *TokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	setBearer(req, token)
	return nil
}

func (p *TokenProvider) Close() error {
	return nil
}
