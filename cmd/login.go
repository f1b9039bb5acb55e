package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/wrapped/internal/server"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Login performs the OAuth2 authorization flow from the terminal and stores the profile.
//
// A local server answers the configured redirect URI, so the URI must point at this machine.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	profiles, _, err := r.repositories(ctx)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, svc)
	if err != nil {
		return err
	}

	user, err := svc.Client(ctx, token, nil).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch Spotify user: %w", err)
	}

	profile, err := profiles.Upsert(ctx, user, token)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	r.writePlainln("✓ Logged in as %s", profile.SpotifyUsername())
	r.writePlain("Profile id: %s\n\n", profile.ID())
	return r.writePlain("You can now use: wrapped wraps create --timeframe \"1 month\"\n")
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, svc *services.SpotifyService) (*oauth2.Token, error) {
	redirect, err := url.Parse(svc.RedirectURL())
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, svc.RedirectURL())
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(svc, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", redirect.Host)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := svc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.authTimeout)

	timeout := time.NewTimer(r.authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
