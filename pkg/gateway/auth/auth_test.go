package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/logger"
)

func init() {
	logger.Silence()
}

const testSecret = "0123456789abcdef-test"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testSecret, "nourish-clinic", "nourish-api", time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestJWTRoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueToken(Principal{Subject: "dietitian-1", TenantID: "clinic_a", Role: "practitioner"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := m.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Subject != "dietitian-1" || p.TenantID != "clinic_a" || p.Role != "practitioner" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestJWTRejects(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueToken(Principal{Subject: "patient-7", TenantID: "clinic_a", Role: "patient", PatientID: "p-7"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, _ := NewJWTManager("another-secret-0000", "nourish-clinic", "nourish-api", time.Hour)
	wrongAudience, _ := NewJWTManager(testSecret, "nourish-clinic", "someone-else", time.Hour)
	expired := newTestManager(t)
	expired.nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }

	cases := map[string]struct {
		m     *JWTManager
		token string
	}{
		"wrong secret":   {other, token},
		"wrong audience": {wrongAudience, token},
		"expired":        {expired, token},
		"garbage":        {m, "not.a.token"},
		"empty":          {m, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tc.m.ValidateToken(context.Background(), tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "i", "a", time.Hour); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestOIDCUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "user-9", "tenant_id": "clinic_b", "role": "practitioner"})
	}))
	defer srv.Close()

	a, err := NewOIDCAuthenticator(srv.URL+"/", "client", "secret", time.Second)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}

	p, err := a.Authenticate(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Subject != "user-9" || p.TenantID != "clinic_b" {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := a.Authenticate(context.Background(), "revoked"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestOIDCRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "user-1"})
	}))
	defer srv.Close()

	a, _ := NewOIDCAuthenticator(srv.URL, "client", "", time.Second)
	if _, err := a.Authenticate(context.Background(), "token"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestOIDCDoesNotRetryRejectedTokens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a, _ := NewOIDCAuthenticator(srv.URL, "client", "", time.Second)
	if _, err := a.Authenticate(context.Background(), "token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestNewOIDCAuthenticatorIncomplete(t *testing.T) {
	if _, err := NewOIDCAuthenticator("", "client", "", time.Second); err == nil {
		t.Fatal("expected error without issuer")
	}
}
