// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/wrapped/internal/formatter"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/urfave/cli/v3"
)

// newApp builds the root command around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "wrapped",
		Usage:   "Spotify listening recaps in the browser and the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("WRAPPED_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func profileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Profile id or Spotify user id (default: the only stored profile)",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// serveCommand runs the web application.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml from the bundled example",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the file (default: the --config path)",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// loginCommand runs the OAuth flow from the terminal.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Authorize with Spotify and store the profile",
		Action: r.Login,
	}
}

// profilesCommand handles stored profiles.
func profilesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "Stored profile operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored profiles",
				Flags:  jsonFlags(),
				Action: r.ProfilesList,
			},
		},
	}
}

// wrapsCommand handles wrap operations.
func wrapsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "wraps",
		Usage: "Wrap operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a profile's wraps, newest first",
				Flags: append([]cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:  "length",
						Usage: "Only wraps for this timeframe",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of wraps to return",
					},
				}, jsonFlags()...),
				Action: r.WrapsList,
			},
			{
				Name:  "create",
				Usage: "Create a wrap from the profile's Spotify history",
				Flags: append([]cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:    "timeframe",
						Aliases: []string{"t"},
						Usage:   "One of: " + joinTimeframes(),
						Value:   models.TimeframeMonth,
					},
				}, jsonFlags()...),
				Action: r.WrapsCreate,
			},
			{
				Name:  "show",
				Usage: "Print the slides of a wrap",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.IntFlag{
						Name:  "page",
						Usage: "Only print this slide (0-based)",
						Value: -1,
					},
					&cli.StringFlag{
						Name:  "lang",
						Usage: "Description language (en, az, ru)",
						Value: string(models.English),
					},
				},
				Action: r.WrapsShow,
			},
			{
				Name:  "export",
				Usage: "Export one wrap, or every wrap of a profile with --all",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, csv, md, txt)",
						Value:   string(formatter.FormatJSON),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file or directory (default: stdout, or a new directory with --all)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every wrap of the profile",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent exports with --all",
						Value: 5,
					},
				},
				Action: r.WrapsExport,
			},
			{
				Name:  "delete",
				Usage: "Delete a wrap",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.WrapsDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing wraps.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for browsing wraps",
		Flags: []cli.Flag{
			profileFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "wrapped-tui.log",
			},
		},
		Action: r.TUI,
	}
}
