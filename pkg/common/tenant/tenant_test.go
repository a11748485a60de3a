package tenant

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestScopeValidate(t *testing.T) {
	cases := []struct {
		name    string
		tenant  string
		wantErr error
	}{
		{"valid", "clinic_42", nil},
		{"dash", "north-clinic", nil},
		{"empty", "", ErrMissingTenant},
		{"injection", "a; DROP TABLE meals", ErrInvalidTenant},
		{"too long", strings.Repeat("a", 65), ErrInvalidTenant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.tenant)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no scope on empty context")
	}
	ctx := NewContext(context.Background(), Scope{TenantID: "clinic_a"})
	s, ok := FromContext(ctx)
	if !ok || s.TenantID != "clinic_a" {
		t.Fatalf("unexpected scope %+v", s)
	}
}
