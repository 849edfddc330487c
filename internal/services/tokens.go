package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// KeyringService is the service name tokens are filed under in the OS keyring.
const KeyringService = "pureplaylist"

// TokenStore persists OAuth tokens between runs.
//
// Load returns a nil token without error when nothing has been saved.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
	Clear() error
}

// NewTokenStore picks the backend named by the spotify token_store setting.
func NewTokenStore(config *shared.Config, configPath string) (TokenStore, error) {
	switch config.Credentials.Spotify.TokenStore {
	case "", shared.TokenStoreConfig:
		return NewConfigTokenStore(config, configPath), nil
	case shared.TokenStoreKeyring:
		return NewKeyringTokenStore(config.Credentials.Spotify.ClientID), nil
	default:
		return nil, fmt.Errorf("%w: unknown token_store %q", shared.ErrInvalidConfig, config.Credentials.Spotify.TokenStore)
	}
}

// KeyringTokenStore keeps the token as JSON in the operating system keyring.
type KeyringTokenStore struct {
	service string
	user    string
}

// NewKeyringTokenStore files the token under the client id so separate apps do not collide.
func NewKeyringTokenStore(clientID string) *KeyringTokenStore {
	user := clientID
	if user == "" {
		user = "default"
	}
	return &KeyringTokenStore{service: KeyringService, user: user}
}

func (k *KeyringTokenStore) Load() (*oauth2.Token, error) {
	data, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: keyring read: %v", shared.ErrStore, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("%w: corrupt keyring entry: %v", shared.ErrStore, err)
	}
	return &token, nil
}

// Save writes token, keeping the stored refresh token when token has none.
func (k *KeyringTokenStore) Save(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	stored := *token
	if stored.RefreshToken == "" {
		if prev, err := k.Load(); err == nil && prev != nil {
			stored.RefreshToken = prev.RefreshToken
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("%w: keyring write: %v", shared.ErrStore, err)
	}
	return nil
}

func (k *KeyringTokenStore) Clear() error {
	err := keyring.Delete(k.service, k.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring delete: %v", shared.ErrStore, err)
	}
	return nil
}

// ConfigTokenStore keeps the token in the credentials.spotify section of config.toml.
type ConfigTokenStore struct {
	mu     sync.Mutex
	config *shared.Config
	path   string
}

func NewConfigTokenStore(config *shared.Config, path string) *ConfigTokenStore {
	return &ConfigTokenStore{config: config, path: path}
}

func (c *ConfigTokenStore) Load() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Credentials.Spotify.Token(), nil
}

func (c *ConfigTokenStore) Save(token *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.config.Credentials.Spotify.Update(token); err != nil {
		return err
	}
	if err := shared.SaveConfig(c.path, c.config); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStore, err)
	}
	return nil
}

func (c *ConfigTokenStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.Credentials.Spotify.ClearToken()
	if err := shared.SaveConfig(c.path, c.config); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStore, err)
	}
	return nil
}
