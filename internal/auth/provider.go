// Package auth obtains and injects the bearer tokens used by the setup run.
package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Provider defines the interface for authentication providers that can
// obtain tokens and inject them into HTTP requests.
type Provider interface {
	// Token retrieves the authentication token, logging in on first use.
	Token(ctx context.Context) (string, error)

	// InjectHeader injects the authentication token into the Authorization
	// header of the provided HTTP request.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// Role names the account a token belongs to.
type Role string

const (
	RoleRoot    Role = "root"
	RoleManager Role = "manager"
)

// Error reports a failed login for one role.
type Error struct {
	Role Role
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("login as %s: %v", e.Role, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
}
