package tenant

import (
	"context"
	"errors"
	"regexp"
)

type contextKey string

const scopeKey contextKey = "tenant_scope"

var (
	ErrMissingTenant = errors.New("tenant identifier required")
	ErrInvalidTenant = errors.New("invalid tenant identifier")

	tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Scope identifies the tenant every read and write is confined to. Services and
// repositories take it as an explicit argument.
type Scope struct {
	TenantID string
}

func New(tenantID string) (Scope, error) {
	s := Scope{TenantID: tenantID}
	return s, s.Validate()
}

func (s Scope) Validate() error {
	if s.TenantID == "" {
		return ErrMissingTenant
	}
	if len(s.TenantID) > 64 || !tenantIDPattern.MatchString(s.TenantID) {
		return ErrInvalidTenant
	}
	return nil
}

func NewContext(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext returns the scope placed by the tenant middleware.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	return s, ok
}
