package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/pureplaylist/internal/shared"
	"golang.org/x/oauth2"
)

// Refresher renews the bearer credential after the remote side rejected it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Session supplies the bearer credential and the acting user.
type Session interface {
	Refresher
	// Credential returns the current access token.
	Credential(ctx context.Context) (string, error)
	// UserID returns the id of the authenticated user, or "" before it is known.
	UserID() string
}

// WithAuthRetry runs call and, when it fails with [shared.ErrTokenExpired], refreshes once and runs it again.
//
// A second expiry, or a failed refresh, is returned to the caller.
func WithAuthRetry(ctx context.Context, r Refresher, call func(context.Context) error) error {
	err := call(ctx)
	if err == nil || r == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	if rerr := r.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: %w: %v", shared.ErrTokenExpired, shared.ErrRefreshFailed, rerr)
	}

	return call(ctx)
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every token it has not handed out before.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// OAuthSession is a [Session] backed by an oauth2 token.
//
// Tokens close to expiry are refreshed transparently by the underlying [oauth2.ReuseTokenSource];
// Refresh forces a refresh after a 401.
type OAuthSession struct {
	config     *oauth2.Config
	httpClient *http.Client

	mu             sync.Mutex
	token          *oauth2.Token
	source         oauth2.TokenSource
	onTokenRefresh func(*oauth2.Token)
	userID         string
}

// NewOAuthSession creates a session from a previously obtained token.
func NewOAuthSession(config *oauth2.Config, token *oauth2.Token) *OAuthSession {
	s := &OAuthSession{config: config, token: token}
	s.rebuild()
	return s
}

// SetHTTPClient sets the client used for token refresh requests.
func (s *OAuthSession) SetHTTPClient(c *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpClient = c
	s.rebuildLocked()
}

// SetTokenRefreshCallback registers fn to receive every newly issued token so it can be persisted.
func (s *OAuthSession) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
	s.rebuildLocked()
}

func (s *OAuthSession) rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()
}

func (s *OAuthSession) rebuildLocked() {
	ctx := context.Background()
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	if s.token == nil {
		s.source = nil
		return
	}
	s.source = &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, s.token),
		callback: s.tokenIssued,
		last:     s.token.AccessToken,
	}
}

// tokenIssued runs when the underlying source refreshed on its own.
func (s *OAuthSession) tokenIssued(token *oauth2.Token) {
	s.mu.Lock()
	if s.token != nil && token.RefreshToken == "" {
		token.RefreshToken = s.token.RefreshToken
	}
	s.token = token
	cb := s.onTokenRefresh
	s.mu.Unlock()

	if cb != nil {
		cb(token)
	}
}

// Credential returns a valid access token, refreshing it first if it has expired.
func (s *OAuthSession) Credential(ctx context.Context) (string, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return "", shared.ErrNotAuthenticated
	}

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token regardless of the cached expiry.
func (s *OAuthSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.token == nil || s.token.RefreshToken == "" {
		s.mu.Unlock()
		return shared.ErrNoRefreshToken
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	stale := *s.token
	stale.Expiry = time.Now().Add(-time.Minute)

	fresh, err := s.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.token.RefreshToken
	}

	s.token = fresh
	s.rebuildLocked()
	cb := s.onTokenRefresh
	s.mu.Unlock()

	if cb != nil {
		cb(fresh)
	}
	return nil
}

// Token returns a copy of the current token.
func (s *OAuthSession) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

func (s *OAuthSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUserID records the acting user once the profile is known.
func (s *OAuthSession) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}
