package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/ui"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Logs would corrupt the screen, so they go to a rotated file instead.
	logConfig := r.config.Log
	if logConfig.File == "" {
		logConfig.File = cmd.String("log-file")
	}
	fileLogger, err := shared.NewLoggerFromConfig(logConfig)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	notes := make(ui.ChannelSink, 16)
	r.notifier = notify.Fanout(notify.NewLogSink(fileLogger), notes)

	if err := r.open(ctx); err != nil {
		return err
	}

	// A login or logout from another terminal reaches the running UI.
	if err := r.sessionFile.Watch(ctx, r.sessions, r.logger); err != nil {
		r.logger.Warn("session file will not be watched", "error", err)
	}

	model := ui.NewModel(ctx, ui.Deps{
		Engine:    r.engine,
		Catalog:   r.catalog,
		Watchlist: r.watchlist,
		Reviews:   r.reviews,
		Network:   r.network,
		Notes:     notes,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive movie browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file used while the UI owns the terminal (when log.file is unset)",
				Value: "./tmp/marquee-tui.log",
			},
		},
		Action: r.TUI,
	}
}
