package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/pureplaylist/internal/formatter"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/desertthunder/pureplaylist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// viewSpec reads the filter and sort flags.
func viewSpec(cmd *cli.Command) (models.FilterCriteria, models.SortSpec, error) {
	field, err := models.ParseSortField(cmd.String("sort"))
	if err != nil {
		return models.FilterCriteria{}, models.SortSpec{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	order, err := models.ParseSortOrder(cmd.String("order"))
	if err != nil {
		return models.FilterCriteria{}, models.SortSpec{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	filter := models.FilterCriteria{
		TitleKeywords: models.ParseKeywords(cmd.String("title")),
		Albums:        models.ParseKeywords(cmd.String("album")),
		Artists:       models.ParseKeywords(cmd.String("artist")),
	}
	return filter, models.SortSpec{Field: field, Order: order}, nil
}

// openView loads every track of the --id playlist and applies the view flags.
//
// Audio features are loaded when withFeatures is set or the sort needs tempo.
func (r *Runner) openView(ctx context.Context, cmd *cli.Command, progress chan<- tasks.ProgressUpdate, withFeatures bool) (*tasks.Editor, error) {
	filter, sort, err := viewSpec(cmd)
	if err != nil {
		return nil, err
	}

	editor, err := r.Editor(ctx, progress)
	if err != nil {
		return nil, err
	}

	id := cmd.String("id")
	r.logger.Info("loading playlist", "id", id)
	if _, err := editor.OpenPlaylist(ctx, id); err != nil {
		return nil, err
	}
	if err := editor.WaitTracks(ctx); err != nil {
		return nil, err
	}
	if state := editor.TracksState(); state.HasError {
		r.logger.Warn("track list is incomplete", "loaded", state.Loaded, "total", state.Total, "error", state.Err)
	}

	editor.SetFilter(filter)
	editor.SetSort(sort)

	if withFeatures || sort.Field == models.SortByBPM {
		if err := editor.EnrichAll(ctx); err != nil {
			r.logger.Warn("audio features unavailable", "error", err)
		}
	}
	return editor, nil
}

// TracksList prints or exports the derived track list of a playlist.
func (r *Runner) TracksList(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	withFeatures := cmd.Bool("features")

	editor, err := r.openView(ctx, cmd, nil, withFeatures)
	if err != nil {
		return err
	}

	export := &formatter.TrackExport{
		Playlist: *editor.Current(),
		Tracks:   editor.Tracks(),
		Features: withFeatures,
		Filter:   editor.Filter(),
		Sort:     editor.Sort(),
	}

	if output := cmd.String("output"); output != "" {
		files, err := formatter.WriteExport(export, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("playlist exported", "format", format, "tracks", len(export.Tracks))
		for _, f := range files {
			r.writePlain("✓ Wrote %s\n", f)
		}
		return nil
	}

	data, err := formatter.Export(export, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// TracksSave writes the derived order back, or into a new playlist with --new.
func (r *Runner) TracksSave(ctx context.Context, cmd *cli.Command) error {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	defer close(done)
	go r.logProgress(progress, done)

	editor, err := r.openView(ctx, cmd, progress, false)
	if err != nil {
		return err
	}

	if uris := cmd.StringSlice("remove"); len(uris) > 0 {
		editor.Delete(uris...)
	}
	if cmd.Bool("remove-filtered") {
		if editor.Filter().IsEmpty() {
			return fmt.Errorf("%w: --remove-filtered needs --title, --album or --artist", shared.ErrInvalidFlag)
		}
		removed := editor.DeleteFiltered()
		r.logger.Info("removing filtered tracks", "count", len(removed))
	}

	mode, name := models.UpdateExisting, cmd.String("new")
	if name != "" {
		mode = models.CreateNew
		editor.SetPublic(cmd.Bool("public"))
	}

	current := editor.Current()
	rows := editor.Tracks()
	deleted := len(editor.Pending())

	if cmd.Bool("dry-run") {
		r.writePlainHeader("Dry run: " + current.Name)
		r.writePlain("Mode: %s\n", mode)
		if mode == models.CreateNew {
			r.writePlain("New playlist: %s (%s)\n", name, shared.VisibilityString(cmd.Bool("public")))
		}
		r.writePlain("Order: %s\n", editor.Sort())
		if f := editor.Filter(); !f.IsEmpty() {
			r.writePlain("Filter: %s\n", f)
		}
		r.writePlain("Tracks to write: %d\n", len(rows))
		r.writePlain("Tracks to remove: %d\n", deleted)
		return nil
	}

	result, err := editor.Commit(ctx, mode, name)
	if err != nil {
		var ce *tasks.CommitError
		if errors.As(err, &ce) && ce.Created {
			r.writePlain("⚠ New playlist %s was created but only %d tracks were written\n", ce.PlaylistID, ce.ItemsApplied)
		}
		return err
	}

	r.writePlainln("✓ Saved %s", current.Name)
	if result.Created {
		r.writePlain("  New playlist: %s (%s)\n", name, result.PlaylistID)
	}
	if result.DeleteOnly {
		r.writePlain("  Removed: %d tracks\n", result.ItemsApplied)
	} else {
		r.writePlain("  Tracks written: %d\n", result.ItemsApplied)
		r.writePlain("  Removed: %d tracks\n", deleted)
	}
	if result.SkippedLocal > 0 {
		r.writePlain("  ⚠ Local files skipped: %d\n", result.SkippedLocal)
	}
	r.writePlain("  Requests: %d\n", result.Chunks)
	return nil
}

// logProgress logs updates until done is closed. Paging updates are debug level.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate, done <-chan struct{}) {
	for {
		select {
		case u := <-progress:
			switch u.Phase {
			case tasks.FetchPlaylists, tasks.FetchTracks, tasks.FetchFeatures:
				r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			default:
				r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			}
		case <-done:
			return
		}
	}
}
