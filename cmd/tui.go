package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/desertthunder/pureplaylist/internal/tasks"
	"github.com/desertthunder/pureplaylist/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist editor.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.Config()
	if err != nil {
		return err
	}

	logPath := config.Logging.File
	if logPath == "" {
		logPath = "./tmp/pureplaylist-tui.log"
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	progress := make(chan tasks.ProgressUpdate, 64)
	editor, err := r.Editor(ctx, progress)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, editor, progress, fileLogger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
