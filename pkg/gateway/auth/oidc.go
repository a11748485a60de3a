package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/gateway/httpclient"
	"golang.org/x/oauth2"
)

// OIDCAuthenticator validates opaque access tokens against the issuer's
// userinfo endpoint.
type OIDCAuthenticator struct {
	config      *oauth2.Config
	issuer      string
	userInfoURL string
	client      *http.Client
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string, timeout time.Duration) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}
	issuer = strings.TrimRight(issuer, "/")

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config:      config,
		issuer:      issuer,
		userInfoURL: fmt.Sprintf("%s/userinfo", issuer),
		client:      httpclient.New(timeout),
	}, nil
}

type userInfo struct {
	Subject   string `json:"sub"`
	TenantID  string `json:"tenant_id"`
	Role      string `json:"role"`
	PatientID string `json:"patient_id"`
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token empty", ErrInvalidToken)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	client := a.config.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	var info userInfo
	err := httpclient.Retry(ctx, 3, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
		if err != nil {
			return httpclient.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if httpclient.IsRetriable(err) {
				return err
			}
			return httpclient.Permanent(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return httpclient.Permanent(ErrInvalidToken)
		case resp.StatusCode >= 500:
			return fmt.Errorf("userinfo returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return httpclient.Permanent(fmt.Errorf("userinfo returned %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return httpclient.Permanent(err)
		}
		return nil
	})
	if err != nil {
		logger.Log.WithError(err).WithField("issuer", a.issuer).Debug("userinfo lookup failed")
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo without subject", ErrInvalidToken)
	}

	return &Principal{
		Subject:   info.Subject,
		TenantID:  info.TenantID,
		Role:      info.Role,
		PatientID: info.PatientID,
	}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return a.ValidateToken(ctx, token)
}
