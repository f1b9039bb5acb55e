package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// ProfilesList prints the stored profiles.
func (r *Runner) ProfilesList(ctx context.Context, cmd *cli.Command) error {
	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}

	all, err := profiles.List(ctx, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type row struct {
			ID              string `json:"id"`
			SpotifyUserID   string `json:"spotify_user_id"`
			SpotifyUsername string `json:"spotify_username"`
			Wraps           int    `json:"wraps"`
		}
		rows := make([]row, 0, len(all))
		for _, p := range all {
			n, err := wraps.List(ctx, map[string]any{"profile_id": p.ID()})
			if err != nil {
				return err
			}
			rows = append(rows, row{p.ID(), p.SpotifyUserID(), p.SpotifyUsername(), len(n)})
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if len(all) == 0 {
		return r.writePlain("No profiles stored. Run 'wrapped login' first.\n")
	}

	r.writePlainHeader("Profiles")
	for _, p := range all {
		r.writePlain("%s  %s (%s)\n", p.ID(), p.SpotifyUsername(), p.SpotifyUserID())
	}
	return nil
}
