package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/desertthunder/wrapped/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing and creating wraps.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}
	profile, err := r.resolveProfile(ctx, profiles, cmd.String("profile"))
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logFile, err := os.OpenFile(cmd.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	level := r.logger.GetLevel()
	r.logger = shared.NewLogger(logFile)
	r.logger.SetLevel(level)

	opts := ui.ModelOpts{Wraps: wraps, ProfileID: profile.ID()}
	if create, err := r.creator(profiles, wraps, profile); err != nil {
		r.logger.Warn("wrap creation disabled", "error", err)
	} else {
		opts.Create = create
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
