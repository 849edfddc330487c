package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/pureplaylist/internal/shared"
	"golang.org/x/oauth2"
)

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

type countingRefresher struct {
	calls int
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls++
	return c.err
}

func TestWithAuthRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("success does not refresh", func(t *testing.T) {
		r := &countingRefresher{}
		calls := 0
		err := WithAuthRetry(ctx, r, func(context.Context) error {
			calls++
			return nil
		})
		if err != nil || calls != 1 || r.calls != 0 {
			t.Errorf("unexpected result: err=%v calls=%d refreshes=%d", err, calls, r.calls)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		r := &countingRefresher{}
		err := WithAuthRetry(ctx, r, func(context.Context) error {
			return shared.ErrForbidden
		})
		if !errors.Is(err, shared.ErrForbidden) || r.calls != 0 {
			t.Errorf("expected ErrForbidden without refresh, got %v (%d refreshes)", err, r.calls)
		}
	})

	t.Run("expiry refreshes once then retries once", func(t *testing.T) {
		r := &countingRefresher{}
		calls := 0
		err := WithAuthRetry(ctx, r, func(context.Context) error {
			calls++
			return fmt.Errorf("%w: again", shared.ErrTokenExpired)
		})
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if calls != 2 || r.calls != 1 {
			t.Errorf("expected 2 calls and 1 refresh, got %d and %d", calls, r.calls)
		}
	})

	t.Run("refresh failure stops", func(t *testing.T) {
		r := &countingRefresher{err: errors.New("boom")}
		calls := 0
		err := WithAuthRetry(ctx, r, func(context.Context) error {
			calls++
			return shared.ErrTokenExpired
		})
		if !errors.Is(err, shared.ErrRefreshFailed) || calls != 1 {
			t.Errorf("expected ErrRefreshFailed after one call, got %v (%d calls)", err, calls)
		}
	})
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback on first token fetch", func(t *testing.T) {
		var captured *oauth2.Token
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			callback: func(token *oauth2.Token) { captured = token },
		}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if captured == nil || captured.AccessToken != "test_token" {
			t.Errorf("expected callback with test_token, got %+v", captured)
		}
		if token.AccessToken != "test_token" {
			t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
		}
	})

	t.Run("calls callback when token changes", func(t *testing.T) {
		callCount := 0
		mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{
			source:   mockSource,
			callback: func(*oauth2.Token) { callCount++ },
		}

		_, _ = source.Token()
		mockSource.token = &oauth2.Token{AccessToken: "token2"}
		token2, _ := source.Token()

		if callCount != 2 {
			t.Errorf("expected callback called twice, got %d", callCount)
		}
		if token2.AccessToken != "token2" {
			t.Errorf("expected new token, got %s", token2.AccessToken)
		}
	})

	t.Run("skips the token it was seeded with", func(t *testing.T) {
		callCount := 0
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "same_token"}},
			callback: func(*oauth2.Token) { callCount++ },
			last:     "same_token",
		}

		source.Token()
		source.Token()

		if callCount != 0 {
			t.Errorf("expected no callback, got %d", callCount)
		}
	})

	t.Run("handles nil callback gracefully", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}}}

		token, err := source.Token()
		if err != nil || token.AccessToken != "test_token" {
			t.Errorf("expected token despite nil callback, got %v (%v)", token, err)
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source: &mockTokenSource{err: errors.New("token source error")},
			callback: func(*oauth2.Token) {
				t.Error("callback should not be called on error")
			},
		}

		token, err := source.Token()
		if err == nil || !strings.Contains(err.Error(), "token source error") {
			t.Errorf("expected source error, got %v", err)
		}
		if token != nil {
			t.Error("expected nil token on error")
		}
	})
}

// newTokenServer issues access tokens "fresh-1", "fresh-2"... and never returns a refresh token.
func newTokenServer(t *testing.T, status int) (*oauth2.Config, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"fresh-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(server.Close)

	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: server.URL, AuthStyle: oauth2.AuthStyleInParams},
	}, &count
}

func TestOAuthSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Credential without token", func(t *testing.T) {
		config, _ := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, nil)

		if _, err := session.Credential(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Credential reuses a valid token", func(t *testing.T) {
		config, count := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, &oauth2.Token{
			AccessToken:  "valid",
			RefreshToken: "r",
			Expiry:       time.Now().Add(time.Hour),
		})

		cred, err := session.Credential(ctx)
		if err != nil || cred != "valid" {
			t.Errorf("expected valid, got %q (%v)", cred, err)
		}
		if count.Load() != 0 {
			t.Errorf("expected no token requests, got %d", count.Load())
		}
	})

	t.Run("Refresh forces a new token and keeps the refresh token", func(t *testing.T) {
		config, count := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, &oauth2.Token{
			AccessToken:  "valid",
			RefreshToken: "r",
			Expiry:       time.Now().Add(time.Hour),
		})

		var persisted []*oauth2.Token
		session.SetTokenRefreshCallback(func(tok *oauth2.Token) { persisted = append(persisted, tok) })

		if err := session.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count.Load() != 1 {
			t.Errorf("expected one token request, got %d", count.Load())
		}

		token := session.Token()
		if token.AccessToken != "fresh-1" || token.RefreshToken != "r" {
			t.Errorf("unexpected token %+v", token)
		}
		if len(persisted) != 1 || persisted[0].AccessToken != "fresh-1" {
			t.Errorf("expected callback with fresh token, got %+v", persisted)
		}

		cred, _ := session.Credential(ctx)
		if cred != "fresh-1" {
			t.Errorf("expected credential fresh-1, got %s", cred)
		}
	})

	t.Run("expired token refreshes on Credential", func(t *testing.T) {
		config, _ := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, &oauth2.Token{
			AccessToken:  "old",
			RefreshToken: "r",
			Expiry:       time.Now().Add(-time.Hour),
		})

		var persisted int
		session.SetTokenRefreshCallback(func(*oauth2.Token) { persisted++ })

		cred, err := session.Credential(ctx)
		if err != nil || cred != "fresh-1" {
			t.Fatalf("expected fresh-1, got %q (%v)", cred, err)
		}
		if persisted != 1 {
			t.Errorf("expected callback once, got %d", persisted)
		}
		if session.Token().RefreshToken != "r" {
			t.Error("expected refresh token to be kept")
		}
	})

	t.Run("Refresh without refresh token", func(t *testing.T) {
		config, _ := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, &oauth2.Token{AccessToken: "a"})

		if err := session.Refresh(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("Refresh rejected by the token endpoint", func(t *testing.T) {
		config, _ := newTokenServer(t, http.StatusBadRequest)
		session := NewOAuthSession(config, &oauth2.Token{AccessToken: "a", RefreshToken: "r"})

		if err := session.Refresh(ctx); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
		if session.Token().AccessToken != "a" {
			t.Error("failed refresh should keep the previous token")
		}
	})

	t.Run("UserID", func(t *testing.T) {
		config, _ := newTokenServer(t, http.StatusOK)
		session := NewOAuthSession(config, nil)
		session.SetUserID("u9")
		if session.UserID() != "u9" {
			t.Errorf("expected u9, got %s", session.UserID())
		}
	})
}
