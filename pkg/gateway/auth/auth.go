package auth

import "context"

// Authenticator resolves a bearer token to a Principal. JWTManager and
// OIDCAuthenticator both satisfy it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

type contextKey string

const principalKey contextKey = "principal"

func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
