package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var defaultScopes = []string{oidc.ScopeOpenID, "profile", "email", "offline_access"}

// LoginOptions configures the OAuth2 password grant against an OIDC issuer.
type LoginOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
	// HTTPClient is used for discovery and the token request, if set.
	HTTPClient *http.Client
}

// Login discovers the issuer, exchanges the username and password for a token,
// verifies the returned id token and saves the token in store.
func Login(ctx context.Context, opts LoginOptions, store TokenStore) (*oauth2.Token, error) {
	if opts.Issuer == "" || opts.ClientID == "" {
		return nil, fmt.Errorf("issuer and client id are required")
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("no authentication method provided")
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, opts.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID: opts.ClientID,
	})

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	token, err := config.PasswordCredentialsToken(ctx, opts.Username, opts.Password)
	if err != nil {
		return nil, err
	}
	rawIdToken, ok := token.Extra("id_token").(string)
	if !ok || rawIdToken == "" {
		return nil, fmt.Errorf("no id_token in response")
	}
	if _, err = verifier.Verify(ctx, rawIdToken); err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Store(token); err != nil {
			return nil, err
		}
	}
	return token, nil
}
