package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/pureplaylist/internal/server"
	"github.com/desertthunder/pureplaylist/internal/services"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization,
// and stores the exchanged token in the configured token store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService()
	if err != nil {
		return err
	}
	tokens, err := r.TokenStore()
	if err != nil {
		return err
	}

	var token *oauth2.Token
	if code := cmd.String("code"); code != "" {
		token, err = exchangeCode(ctx, svc, code)
	} else {
		token, err = r.doOAuth(ctx, svc, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	}
	if err != nil {
		return err
	}

	if err := tokens.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return err
	}
	r.service = svc

	r.writePlainln("✓ Authorization successful")
	if user, err := svc.CurrentUser(ctx); err == nil {
		r.writePlain("✓ Signed in as %s (%s)\n", user.DisplayName, user.ID)
	} else {
		r.logger.Warn("could not fetch profile", "error", err)
	}
	r.writePlain("\nYou can now use: ppl playlists list\n")
	return nil
}

// exchangeCode trades a code copied from the redirect URL for a token, skipping the callback server.
func exchangeCode(ctx context.Context, svc *services.SpotifyService, code string) (*oauth2.Token, error) {
	if err := svc.Authenticate(ctx, map[string]string{"auth_code": code}); err != nil {
		return nil, err
	}
	session, ok := svc.Session().(*services.OAuthSession)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected session type", shared.ErrAuthFailed)
	}
	return session.Token(), nil
}

// AuthStatus reports whether a token is stored and who it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tokens, err := r.TokenStore()
	if err != nil {
		return err
	}
	token, err := tokens.Load()
	if err != nil {
		return err
	}
	if token == nil {
		return r.writePlain("✗ Not authenticated. Run 'ppl auth login'.\n")
	}

	switch {
	case token.Expiry.IsZero():
		r.writePlain("Token: no expiry recorded\n")
	case token.Expiry.Before(time.Now()):
		r.writePlain("Token: expired %s (will refresh on next request)\n", token.Expiry.Local().Format(time.RFC1123))
	default:
		r.writePlain("Token: valid until %s\n", token.Expiry.Local().Format(time.RFC1123))
	}

	svc, err := r.Service(ctx)
	if err != nil {
		return err
	}
	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	r.writePlain("✓ Authenticated as %s (%s)\n", user.DisplayName, user.ID)
	if user.Product != "" {
		r.writePlain("  Plan: %s\n", user.Product)
	}
	return nil
}

// AuthLogout removes the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	tokens, err := r.TokenStore()
	if err != nil {
		return err
	}
	if err := tokens.Clear(); err != nil {
		return err
	}
	r.service = nil
	return r.writePlain("✓ Signed out\n")
}

// callbackAddr is the address the redirect URI points at, or the [server] section when the URI has no host.
func (r *Runner) callbackAddr(oauthConfig *oauth2.Config) (string, error) {
	addr, err := server.CallbackAddr(oauthConfig.RedirectURL)
	if err == nil {
		return addr, nil
	}

	config, cfgErr := r.Config()
	if cfgErr != nil || config.Server.Host == "" || config.Server.Port == 0 {
		return "", err
	}
	return net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port)), nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, timeout time.Duration, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := oauthSrv.GetOAuthConfig()
	addr, err := r.callbackAddr(oauthConfig)
	if err != nil {
		return nil, err
	}

	authURL := oauthSrv.GetAuthURL(state)
	handler := server.NewOAuthHandler(oauthConfig, state)

	ready := func(string) {
		if !openBrowser {
			r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
		} else {
			r.writePlain("→ Opening browser for Spotify authorization...\n")
			if err := shared.OpenBrowser(authURL); err != nil {
				r.logger.Warnf("failed to open browser automatically %v", err)
				r.writePlainln("⚠ Could not open browser automatically.")
				r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
			}
		}
		r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	}

	token, err := server.ListenForCallback(ctx, addr, handler, timeout, r.logger, ready)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}
