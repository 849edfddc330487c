package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recent commits from the local log, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	history, err := r.History(ctx)
	if err != nil {
		return err
	}

	records, err := history.List(ctx, cmd.String("id"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		return r.writePlain("No commits recorded\n")
	}

	t := table.New().Headers("When", "Playlist", "Mode", "Status", "Items", "Chunks", "Error")
	for _, rec := range records {
		items := strconv.Itoa(rec.ItemsApplied) + "/" + strconv.Itoa(rec.TotalItems)
		chunks := strconv.Itoa(rec.ChunksApplied) + "/" + strconv.Itoa(rec.TotalChunks)
		t.Row(rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.PlaylistName, rec.Mode, rec.Status, items, chunks, rec.Error)
	}
	return r.writePlain("%s\n%s\n", t.Render(), formatCount(len(records), "commit"))
}

// formatCount renders n with a unit, e.g. "1 commit" or "3 commits".
func formatCount(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
