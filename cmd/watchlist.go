package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/shared"
)

// requireWatchlist opens the runner and loads the signed-in user's watchlist.
func (r *Runner) requireWatchlist(ctx context.Context) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if r.watchlist.Identity().IsZero() {
		return fmt.Errorf("%w: run 'marquee auth login' first", shared.ErrNotAuthenticated)
	}
	if !r.watchlist.Load(ctx) {
		return watchlistError(r, "failed to load watchlist")
	}
	return nil
}

// watchlistError turns the synchronizer's last error into a command error. The
// user has already been notified through the log.
func watchlistError(r *Runner, fallback string) error {
	if st := r.watchlist.Snapshot(); st.Error != nil {
		if st.Error.Err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, st.Error.Message, st.Error.Err)
		}
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, st.Error.Message)
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidArgument, fallback)
}

// WatchlistList prints the movies in the watchlist, in catalog order.
func (r *Runner) WatchlistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireWatchlist(ctx); err != nil {
		return err
	}
	if err := r.catalog.FetchAll(ctx); err != nil {
		return err
	}

	movies, missing := r.engine.WatchlistMovies()
	for _, id := range missing {
		r.logger.Warn("watchlist entry not in catalog", "movie", id)
	}

	list := &formatter.MovieList{
		ID:          "watchlist",
		Name:        "My Watchlist",
		Description: fmt.Sprintf("Watchlist of %s", r.watchlist.Identity()),
		Movies:      movies,
	}
	return r.writeList(list, cmd)
}

// WatchlistAdd adds each movie id given on the command line.
func (r *Runner) WatchlistAdd(ctx context.Context, cmd *cli.Command) error {
	return r.mutateWatchlist(ctx, cmd, "added", r.watchlistAdd)
}

// WatchlistRemove removes each movie id given on the command line. Removing a
// movie that is not listed succeeds.
func (r *Runner) WatchlistRemove(ctx context.Context, cmd *cli.Command) error {
	return r.mutateWatchlist(ctx, cmd, "removed", r.watchlistRemove)
}

func (r *Runner) watchlistAdd(ctx context.Context, id string) bool    { return r.watchlist.Add(ctx, id) }
func (r *Runner) watchlistRemove(ctx context.Context, id string) bool { return r.watchlist.Remove(ctx, id) }

func (r *Runner) mutateWatchlist(ctx context.Context, cmd *cli.Command, verb string, apply func(context.Context, string) bool) error {
	ids := cmd.StringArgs("ids")
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one movie id", shared.ErrMissingArgument)
	}
	if err := r.requireWatchlist(ctx); err != nil {
		return err
	}

	var (
		failed      []string
		storeFailed bool
	)
	for _, id := range ids {
		// Each id is judged on its own outcome, not on an error left by an earlier one.
		r.watchlist.ResetError()
		r.watchlistNotes.Reset()
		if apply(ctx, id) {
			r.writePlain("✓ %s %s\n", verb, id)
			continue
		}

		reason := "not " + verb
		if n, ok := r.watchlistNotes.Last(); ok {
			reason = n.Description
		}
		if r.watchlist.Snapshot().Error != nil {
			storeFailed = true
		}
		r.writePlain("✗ %s: %s\n", id, reason)
		failed = append(failed, id)
	}
	if len(failed) == 0 {
		return nil
	}

	kind := shared.ErrInvalidArgument
	if storeFailed {
		kind = shared.ErrAPIRequest
	}
	return fmt.Errorf("%w: %d of %d movies not %s: %s", kind, len(failed), len(ids), verb, strings.Join(failed, ", "))
}

// watchlistCommand handles watchlist membership
func watchlistCommand(r *Runner) *cli.Command {
	ids := func() []cli.Argument {
		return []cli.Argument{&cli.StringArgs{Name: "ids", Min: 1, Max: -1}}
	}

	return &cli.Command{
		Name:    "watchlist",
		Aliases: []string{"wl"},
		Usage:   "Manage your watchlist",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the movies in your watchlist",
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
					},
				),
				Action: r.WatchlistList,
			},
			{
				Name:      "add",
				Usage:     "Add movies to your watchlist",
				Arguments: ids(),
				Action:    r.WatchlistAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove movies from your watchlist",
				Arguments: ids(),
				Action:    r.WatchlistRemove,
			},
		},
	}
}
