// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/pureplaylist/internal/formatter"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/urfave/cli/v3"
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// viewFlags select the derived view shared by tracks list and tracks save.
func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Playlist ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort field: number, title, album, date, bpm or duration",
			Value: models.SortByNumber.String(),
		},
		&cli.StringFlag{
			Name:  "order",
			Usage: "Sort order: asc or desc",
			Value: models.Ascending.String(),
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Comma separated title keywords to match",
		},
		&cli.StringFlag{
			Name:  "album",
			Usage: "Comma separated album keywords to match",
		},
		&cli.StringFlag{
			Name:  "artist",
			Usage: "Comma separated artist keywords to match",
		},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration after migrating",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config file",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify using OAuth2 in the browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: authTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
					&cli.StringFlag{
						Name:  "code",
						Usage: "Exchange an authorization code copied from the redirect URL",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the authenticated user and token expiry",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove stored tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistsCommand lists playlists and manages favorites
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists, favorites first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "search",
						Usage: "Only show playlists whose name contains this text",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort: default, name-asc, name-desc, size-asc or size-desc",
						Value: models.PlaylistSortDefault.String(),
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:      "favorite",
				Aliases:   []string{"fav"},
				Usage:     "Toggle a playlist as favorite",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.PlaylistsFavorite,
			},
		},
	}
}

// tracksCommand lists, exports and rewrites playlist tracks
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Track operations on a single playlist",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print or export the filtered and sorted tracks of a playlist",
				Flags: append(viewFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to this path instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "features",
						Usage: "Load audio features (tempo, energy, danceability)",
					},
				),
				Action: r.TracksList,
			},
			{
				Name:  "save",
				Usage: "Write the filtered and sorted order back, optionally removing tracks",
				Flags: append(viewFlags(),
					&cli.StringSliceFlag{
						Name:  "remove",
						Usage: "Track URI to remove (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "remove-filtered",
						Usage: "Remove every track matching the filter",
					},
					&cli.StringFlag{
						Name:  "new",
						Usage: "Save as a new playlist with this name instead of updating",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the new playlist public",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Show what would be written without saving",
					},
				),
				Action: r.TracksSave,
			},
		},
	}
}

// historyCommand shows the local commit log
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent playlist commits",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Only show commits for this playlist",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.HistoryList,
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist editing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive playlist editor",
		Action:  r.TUI,
	}
}
