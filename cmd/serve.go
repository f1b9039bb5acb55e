package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/wrapped/internal/server"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/desertthunder/wrapped/internal/telemetry"
	"github.com/desertthunder/wrapped/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web application until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.cfg()
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, r.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			r.logger.Warn("failed to flush traces", "error", err)
		}
	}()

	db, err := r.database(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	spotify, err := r.spotifyService()
	if err != nil {
		return err
	}

	mailer, err := r.mailer()
	if err != nil {
		return err
	}
	objects, err := r.objectStore(ctx)
	if err != nil {
		return err
	}

	if r.describer == nil {
		r.describer = services.NewOpenAIDescriber(cfg.Credentials.OpenAI)
	}

	app, err := web.NewApp(web.AppOpts{
		Config:    cfg,
		Logger:    r.logger,
		DB:        db,
		Spotify:   spotify,
		Describer: r.describer,
		Mailer:    mailer,
		Objects:   objects,
	})
	if err != nil {
		return err
	}

	return server.Run(ctx, server.New(cfg.Server, app.Handler()), r.logger)
}

// mailer returns nil when SMTP is not configured, which disables the contact form.
func (r *Runner) mailer() (services.Mailer, error) {
	m, err := services.NewSMTPMailer(r.cfg().Mail)
	if errors.Is(err, shared.ErrServiceDisabled) {
		r.logger.Warn("contact form disabled", "reason", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to configure mail: %w", err)
	}
	return m, nil
}

// objectStore returns nil when no bucket is configured, which disables picture uploads.
func (r *Runner) objectStore(ctx context.Context) (services.ObjectStore, error) {
	s, err := services.NewMinioStore(ctx, r.cfg().Storage)
	if errors.Is(err, shared.ErrServiceDisabled) {
		r.logger.Warn("profile picture uploads disabled", "reason", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to configure storage: %w", err)
	}
	return s, nil
}
