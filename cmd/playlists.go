package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists every playlist of the current user, favorites first.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	sortBy, err := models.ParsePlaylistSort(cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	editor, err := r.Editor(ctx, nil)
	if err != nil {
		return err
	}

	r.logger.Info("listing playlists", "sort", sortBy, "search", cmd.String("search"))
	if err := editor.LoadPlaylists(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if err := editor.WaitPlaylists(ctx); err != nil {
		return err
	}
	if state := editor.PlaylistsState(); state.HasError {
		r.logger.Warn("playlist list is incomplete", "loaded", state.Loaded, "total", state.Total, "error", state.Err)
	}

	editor.SetPlaylistSearch(cmd.String("search"))
	editor.SetPlaylistSort(sortBy)
	playlists := editor.Playlists()

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for _, p := range playlists {
		star := ""
		if p.IsFavorite {
			star = "★ "
		}
		r.writePlain("%d. %s%s\n", p.Position, star, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.OwnerName != "" {
			r.writePlain("   Owner: %s\n", p.OwnerName)
		}
		r.writePlain("   Visibility: %s\n\n", shared.VisibilityString(p.Public))
	}
	return nil
}

// PlaylistsFavorite toggles the favorite mark of a playlist.
func (r *Runner) PlaylistsFavorite(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	editor, err := r.Editor(ctx, nil)
	if err != nil {
		return err
	}
	on, err := editor.ToggleFavorite(ctx, id)
	if err != nil {
		return err
	}

	if on {
		return r.writePlain("★ %s added to favorites\n", id)
	}
	return r.writePlain("☆ %s removed from favorites\n", id)
}
