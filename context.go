package cgAuth

import (
	"context"
	"net/http"
)

type managerContextKey struct{}

// Accessor is the view of a session handed to code running inside a
// manager's scope.
type Accessor interface {
	Token() string
	User() *UserProfile
	Session() Session
	Tenant() string
	Login(ctx context.Context, email, password string) (*ServerResponse, error)
	Logout(ctx context.Context) error
	Forgot(ctx context.Context, email string) (*ServerResponse, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) (*http.Response, error)
	SetProviderAccessToken(ctx context.Context, token string) error
}

var _ Accessor = (*Manager)(nil)

// WithManager returns a copy of ctx that carries m.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerContextKey{}, m)
}

// FromContext returns the manager carried by ctx, or [ErrOutsideScope].
func FromContext(ctx context.Context) (Accessor, error) {
	if ctx == nil {
		return nil, ErrOutsideScope
	}
	m, _ := ctx.Value(managerContextKey{}).(*Manager)
	if m == nil {
		return nil, ErrOutsideScope
	}
	return m, nil
}

// MustFromContext is like FromContext but panics with [ErrOutsideScope] when
// ctx carries no manager.
func MustFromContext(ctx context.Context) Accessor {
	a, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return a
}
