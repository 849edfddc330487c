package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestOAuthHandler(t *testing.T) {
	tokens := newTokenServer(t)

	t.Run("routes follow the redirect uri", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL, "http://127.0.0.1:3000/auth/done"), "s")
		if got := h.Routes(); len(got) != 1 || got[0] != "/auth/done" {
			t.Errorf("Routes() = %v", got)
		}
		h = NewOAuthHandler(oauthConfig(tokens.URL, ""), "s")
		if got := h.Routes(); got[0] != "/callback" {
			t.Errorf("Routes() = %v", got)
		}
	})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantErr    bool
	}{
		{"success", "state=s&code=good-code", http.StatusOK, false},
		{"bad state", "state=x&code=good-code", http.StatusBadRequest, true},
		{"denied", "state=s&error=access_denied", http.StatusBadRequest, true},
		{"exchange fails", "state=s&code=bad-code", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(oauthConfig(tokens.URL, "http://127.0.0.1:3000/callback"), "s")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			result := <-h.Result()
			if tt.wantErr {
				if !errors.Is(result.Error(), shared.ErrAuthFailed) {
					t.Errorf("error = %v, want ErrAuthFailed", result.Error())
				}
				return
			}
			if result.Error() != nil || result.Token.AccessToken != "access" {
				t.Errorf("result = %+v", result)
			}
			if !strings.Contains(rec.Body.String(), "Authorization Successful") {
				t.Error("missing success page")
			}
		})
	}

	t.Run("second callback is rejected", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL, ""), "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://127.0.0.1:3000/callback", "127.0.0.1:3000", false},
		{"http://localhost/callback", "localhost:80", false},
		{"/callback", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := CallbackAddr(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("CallbackAddr(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestListenForCallback(t *testing.T) {
	tokens := newTokenServer(t)
	logger := log.New(io.Discard)

	t.Run("returns the exchanged token", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL, "http://127.0.0.1:0/callback"), "s")

		token, err := ListenForCallback(context.Background(), "127.0.0.1:0", h, 5*time.Second, logger, func(addr string) {
			go func() {
				resp, err := http.Get(fmt.Sprintf("http://%s/callback?state=s&code=good-code", addr))
				if err == nil {
					resp.Body.Close()
				}
			}()
		})
		if err != nil {
			t.Fatalf("ListenForCallback() error = %v", err)
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("token = %+v", token)
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := NewOAuthHandler(oauthConfig(tokens.URL, ""), "s")
		_, err := ListenForCallback(context.Background(), "127.0.0.1:0", h, 50*time.Millisecond, logger, nil)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("error = %v, want ErrTimeout", err)
		}
	})

	t.Run("stops with the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h := NewOAuthHandler(oauthConfig(tokens.URL, ""), "s")
		if _, err := ListenForCallback(ctx, "127.0.0.1:0", h, time.Minute, logger, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

type fixedRoutes struct {
	http.HandlerFunc
	routes []string
}

func (f fixedRoutes) Routes() []string { return f.routes }

func TestCallbackMux(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	handler := fixedRoutes{
		HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/panic" {
				panic("boom")
			}
			w.WriteHeader(http.StatusTeapot)
		},
		routes: []string{"/ok", "/panic"},
	}
	router := NewCallbackMux(handler, Recoverer(logger), RequestLogger(logger))

	t.Run("unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("method filter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ok", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("logs requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "status=418") {
			t.Errorf("log = %s", buf.String())
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if !strings.Contains(buf.String(), "handler panic") {
			t.Errorf("log = %s", buf.String())
		}
	})
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Errorf("order = %s", got)
	}
}
