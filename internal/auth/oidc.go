package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig carries the provider settings for OIDC sign-in.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCClient performs the authorization-code flow against the configured
// identity provider.
type OIDCClient struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCClient discovers the provider and prepares the flow.
func NewOIDCClient(ctx context.Context, cfg OIDCConfig) (*OIDCClient, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discover oidc provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return &OIDCClient{verifier: verifier, oauth2Config: oauth2Config}, nil
}

// AuthCodeURL returns the provider authorization URL for state.
func (c *OIDCClient) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}

// Exchange trades the callback code for a verified identity.
func (c *OIDCClient) Exchange(ctx context.Context, r *http.Request) (ExternalIdentity, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return ExternalIdentity{}, fmt.Errorf("auth: missing authorization code")
	}
	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("auth: exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return ExternalIdentity{}, fmt.Errorf("auth: missing id_token in response")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("auth: verify id token: %w", err)
	}
	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return ExternalIdentity{}, fmt.Errorf("auth: parse claims: %w", err)
	}
	return ExternalIdentity{
		Subject:  idToken.Subject,
		Email:    claims.Email,
		FullName: claims.Name,
	}, nil
}
