package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/sitegrid/sitegrid/internal/util"
	"golang.org/x/oauth2"
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSessionExpired = errors.New("session expired")
)

// CredentialProvider supplies the bearer credential attached to every request.
// Invalidate is called when the server rejects the credential with a 401.
type CredentialProvider interface {
	Token() (*oauth2.Token, error)
	Invalidate()
}

// TokenStore persists the sign-in token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Store(*oauth2.Token) error
	Clear() error
}

// StoredCredentials is a CredentialProvider backed by a TokenStore. The cached
// token is loaded once at construction, attached to each request, and dropped
// from both memory and the store on invalidation.
type StoredCredentials struct {
	mu           sync.Mutex
	store        TokenStore
	token        *oauth2.Token
	onInvalidate func()
}

var _ CredentialProvider = &StoredCredentials{}

func NewStoredCredentials(store TokenStore, onInvalidate func()) (*StoredCredentials, error) {
	token, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading stored credentials: %w", err)
	}
	return &StoredCredentials{
		store:        store,
		token:        token,
		onInvalidate: onInvalidate,
	}, nil
}

func (c *StoredCredentials) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || c.token.AccessToken == "" {
		return nil, ErrNotSignedIn
	}
	if !c.token.Valid() {
		return nil, ErrSessionExpired
	}
	token := *c.token
	return &token, nil
}

// Set replaces the current token, e.g. after a fresh sign-in, and stores it.
func (c *StoredCredentials) Set(token *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Store(token); err != nil {
		return err
	}
	c.token = token
	return nil
}

func (c *StoredCredentials) Invalidate() {
	c.mu.Lock()
	c.token = nil
	// a token file that survives a failed removal is rejected again by the server.
	_ = c.store.Clear()
	onInvalidate := c.onInvalidate
	c.mu.Unlock()
	if onInvalidate != nil {
		onInvalidate()
	}
}

// StaticCredentials attaches a fixed bearer token until it is invalidated.
type StaticCredentials struct {
	mu          sync.Mutex
	accessToken string
}

var _ CredentialProvider = &StaticCredentials{}

func NewStaticCredentials(accessToken string) *StaticCredentials {
	return &StaticCredentials{accessToken: accessToken}
}

func (c *StaticCredentials) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" {
		return nil, ErrNotSignedIn
	}
	return &oauth2.Token{AccessToken: c.accessToken, TokenType: "Bearer"}, nil
}

func (c *StaticCredentials) Invalidate() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// FileTokenStore keeps the token as json in a single file, replaced atomically.
type FileTokenStore struct {
	File string
	mu   sync.Mutex
}

var _ TokenStore = &FileTokenStore{}

func NewFileTokenStore(file string) *FileTokenStore {
	return &FileTokenStore{File: file}
}

func (fs *FileTokenStore) String() string {
	return fmt.Sprintf("file '%s'", fs.File)
}

// Load returns nil without an error when no token has been stored yet.
func (fs *FileTokenStore) Load() (*oauth2.Token, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, err := os.Open(fs.File)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer util.IgnoreError(f.Close)
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fs, err)
	}
	return token, nil
}

func (fs *FileTokenStore) Store(token *oauth2.Token) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	// Create the path to the file if it doesn't exist.
	dir := filepath.Dir(fs.File)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(token); err != nil {
		return err
	}
	return atomic.WriteFile(fs.File, buf)
}

func (fs *FileTokenStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	err := os.Remove(fs.File)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
