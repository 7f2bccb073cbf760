package client_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "sitectl"

func TestLoginStoresToken(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mockRouter := http.NewServeMux()
	mockServer := httptest.NewServer(mockRouter)
	defer mockServer.Close()

	var tokensCreated int64
	err := addMockOIDCRoutes(mockServer, mockRouter, func() string {
		// this gets called to create an access token
		if atomic.AddInt64(&tokensCreated, 1) == 1 {
			return "first"
		}
		return "later"
	})
	require.NoError(err)

	store := client.NewFileTokenStore(filepath.Join(t.TempDir(), "sitectl", "token.json"))
	token, err := client.Login(context.Background(), client.LoginOptions{
		Issuer:     mockServer.URL + "/realms/sitegrid",
		ClientID:   testClientID,
		Username:   "fake",
		Password:   "password",
		HTTPClient: mockServer.Client(),
	}, store)
	require.NoError(err)
	assert.Equal("first", token.AccessToken)
	assert.Equal(int64(1), atomic.LoadInt64(&tokensCreated))

	stored, err := store.Load()
	require.NoError(err)
	require.NotNil(stored)
	assert.Equal("first", stored.AccessToken)

	// the stored token is picked up without hitting the token endpoint again.
	creds, err := client.NewStoredCredentials(store, nil)
	require.NoError(err)
	got, err := creds.Token()
	require.NoError(err)
	assert.Equal("first", got.AccessToken)
	assert.Equal(int64(1), atomic.LoadInt64(&tokensCreated))
}

func TestLoginRequiresCredentials(t *testing.T) {
	_, err := client.Login(context.Background(), client.LoginOptions{
		Issuer:   "https://auth.example.test/realms/sitegrid",
		ClientID: testClientID,
	}, nil)
	require.Error(t, err)
}

func TestLoginRejectsForeignAudience(t *testing.T) {
	mockRouter := http.NewServeMux()
	mockServer := httptest.NewServer(mockRouter)
	defer mockServer.Close()
	require.NoError(t, addMockOIDCRoutes(mockServer, mockRouter, func() string { return "x" }))

	_, err := client.Login(context.Background(), client.LoginOptions{
		Issuer:     mockServer.URL + "/realms/sitegrid",
		ClientID:   "someone-else",
		Username:   "fake",
		Password:   "password",
		HTTPClient: mockServer.Client(),
	}, nil)
	require.Error(t, err)
}

func sendJson(resp http.ResponseWriter, status int, body interface{}) {
	resp.Header().Add("Content-Type", "application/json")
	resp.WriteHeader(status)
	if body != nil {
		switch body := body.(type) {
		case string:
			_, _ = resp.Write([]byte(body))
		default:
			_ = json.NewEncoder(resp).Encode(body)
		}
	}
}

func addMockOIDCRoutes(server *httptest.Server, router *http.ServeMux, createAccessToken func() string) error {
	router.HandleFunc("/realms/sitegrid/.well-known/openid-configuration", func(resp http.ResponseWriter, req *http.Request) {
		sendJson(resp, http.StatusOK, struct {
			Issuer      string   `json:"issuer"`
			AuthURL     string   `json:"authorization_endpoint"`
			TokenURL    string   `json:"token_endpoint"`
			JWKSURL     string   `json:"jwks_uri"`
			UserInfoURL string   `json:"userinfo_endpoint"`
			Algorithms  []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:      server.URL + "/realms/sitegrid",
			AuthURL:     server.URL + "/realms/sitegrid/protocol/openid-connect/auth",
			TokenURL:    server.URL + "/realms/sitegrid/protocol/openid-connect/token",
			JWKSURL:     server.URL + "/realms/sitegrid/protocol/openid-connect/certs",
			UserInfoURL: server.URL + "/realms/sitegrid/protocol/openid-connect/userinfo",
			Algorithms:  []string{"RS256"},
		})
	})
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	router.HandleFunc("/realms/sitegrid/protocol/openid-connect/certs", func(resp http.ResponseWriter, req *http.Request) {
		set := jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				KeyID:     "test",
				Algorithm: "RS256",
				Use:       "sig",
				Key:       &privateKey.PublicKey,
			}},
		}
		sendJson(resp, http.StatusOK, set)
	})
	router.HandleFunc("/realms/sitegrid/protocol/openid-connect/token", func(resp http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil || req.Form.Get("grant_type") != "password" {
			sendJson(resp, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
			return
		}
		claims := jwt.MapClaims{
			"sub": "test",
			"iss": server.URL + "/realms/sitegrid",
			"aud": testClientID,
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "test"
		idToken, err := token.SignedString(privateKey)
		if err != nil {
			sendJson(resp, http.StatusInternalServerError, nil)
			return
		}
		sendJson(resp, http.StatusOK, map[string]interface{}{
			"id_token":      idToken,
			"access_token":  createAccessToken(),
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "openid profile email offline_access",
		})
	})
	return nil
}
