package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated caller as seen by the handlers.
type Principal struct {
	Subject   string
	TenantID  string
	Role      string
	PatientID string
}

type Claims struct {
	TenantID  string `json:"tid"`
	Role      string `json:"role"`
	PatientID string `json:"pid,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() Principal {
	return Principal{
		Subject:   c.Subject,
		TenantID:  c.TenantID,
		Role:      c.Role,
		PatientID: c.PatientID,
	}
}

type JWTManager struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	nowFunc    func() time.Time
}

func NewJWTManager(secret, issuer, audience string, ttl time.Duration) (*JWTManager, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTManager{
		signingKey: []byte(secret),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		nowFunc:    time.Now,
	}, nil
}

// IssueToken signs an HS256 token for the principal. Used by the CLI and by
// tests; production callers normally present tokens from the identity provider.
func (m *JWTManager) IssueToken(p Principal) (string, error) {
	if p.Subject == "" {
		return "", errors.New("subject required")
	}
	now := m.nowFunc()
	claims := Claims{
		TenantID:  p.TenantID,
		Role:      p.Role,
		PatientID: p.PatientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
}

func (m *JWTManager) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token empty", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Authenticate resolves a bearer token to the caller.
func (m *JWTManager) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := m.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	p := claims.Principal()
	return &p, nil
}
