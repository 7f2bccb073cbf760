package client_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFileTokenStore(t *testing.T) {
	require := require.New(t)
	file := filepath.Join(t.TempDir(), "nested", "token.json")
	store := client.NewFileTokenStore(file)

	token, err := store.Load()
	require.NoError(err)
	require.Nil(token)

	require.NoError(store.Store(&oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}))
	info, err := os.Stat(filepath.Dir(file))
	require.NoError(err)
	require.Equal(os.FileMode(0700), info.Mode().Perm())

	token, err = store.Load()
	require.NoError(err)
	require.Equal("abc", token.AccessToken)

	require.NoError(store.Clear())
	require.NoError(store.Clear())
	token, err = store.Load()
	require.NoError(err)
	require.Nil(token)
}

func TestFileTokenStoreCorrupt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0600))
	_, err := client.NewFileTokenStore(file).Load()
	require.Error(t, err)
}

func TestStoredCredentials(t *testing.T) {
	require := require.New(t)

	empty, err := client.NewStoredCredentials(&memoryTokenStore{}, nil)
	require.NoError(err)
	_, err = empty.Token()
	require.ErrorIs(err, client.ErrNotSignedIn)

	expired, err := client.NewStoredCredentials(&memoryTokenStore{token: &oauth2.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Minute),
	}}, nil)
	require.NoError(err)
	_, err = expired.Token()
	require.ErrorIs(err, client.ErrSessionExpired)

	store := &memoryTokenStore{}
	creds, err := client.NewStoredCredentials(store, nil)
	require.NoError(err)
	require.NoError(creds.Set(&oauth2.Token{AccessToken: "fresh"}))
	require.Equal("fresh", store.token.AccessToken)

	token, err := creds.Token()
	require.NoError(err)
	token.AccessToken = "mutated"
	token, err = creds.Token()
	require.NoError(err)
	require.Equal("fresh", token.AccessToken)

	creds.Invalidate()
	_, err = creds.Token()
	require.ErrorIs(err, client.ErrNotSignedIn)
	require.True(store.cleared)
}

func TestStaticCredentials(t *testing.T) {
	creds := client.NewStaticCredentials("abc")
	token, err := creds.Token()
	require.NoError(t, err)
	require.Equal(t, "abc", token.AccessToken)

	creds.Invalidate()
	_, err = creds.Token()
	require.ErrorIs(t, err, client.ErrNotSignedIn)
}
