package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
)

// MoviesList prints the catalog, or one of its home page rows.
func (r *Runner) MoviesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.catalog.FetchAll(ctx); err != nil {
		return err
	}

	list := &formatter.MovieList{ID: "catalog", Name: "Catalog", Movies: r.catalog.Movies()}
	switch {
	case cmd.Bool("featured"):
		list = &formatter.MovieList{ID: "featured", Name: "Featured", Movies: r.catalog.Featured()}
	case cmd.Bool("trending"):
		list = &formatter.MovieList{ID: "trending", Name: "Trending", Movies: r.catalog.Trending()}
	}
	if limit := int(cmd.Int("limit")); limit > 0 && limit < len(list.Movies) {
		list.Movies = list.Movies[:limit]
	}

	return r.writeList(list, cmd)
}

// writeList renders a movie list to stdout in the format named by --format.
func (r *Runner) writeList(list *formatter.MovieList, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	format := cmd.String("format")
	if format == "" {
		return r.writeTable(list.Name, list.Movies)
	}
	format, err := formatter.ParseFormat(format)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case formatter.FormatCSV:
		data, err = formatter.ExportToCSV(list)
	case formatter.FormatMarkdown:
		data, err = formatter.ExportToMarkdown(list)
	case formatter.FormatText:
		data, err = formatter.ExportToText(list)
	default:
		data, err = formatter.ExportToJSON(list)
	}
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

func (r *Runner) writeTable(title string, movies []models.DisplayMovie) error {
	r.writePlainHeader(fmt.Sprintf("%s (%d)", title, len(movies)))
	for _, m := range movies {
		if err := r.writePlain("%-38s ★ %.1f  %-40s %d  %s\n", m.ID, m.Rating, m.Title, m.Year, m.Genre); err != nil {
			return err
		}
	}
	return nil
}

// MoviesShow prints one movie with its reviews.
func (r *Runner) MoviesShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if shared.IsBlank(id) {
		return fmt.Errorf("%w: movie id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.catalog.FetchAll(ctx); err != nil {
		return err
	}

	movie, ok := r.catalog.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrMovieNotFound, id)
	}
	reviews, err := r.reviews.ListForMovie(ctx, id)
	if err != nil {
		return err
	}
	detail := &formatter.MovieDetail{Movie: movie, Reviews: reviews}

	if cmd.Bool("json") {
		return r.writeJSON(detail, cmd.Bool("pretty"))
	}

	data, err := formatter.DetailToText(detail)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return err
	}

	if r.watchlist.Load(ctx) && r.watchlist.IsMember(id) {
		return r.writePlain("\n✓ In your watchlist\n")
	}
	return nil
}

// MoviesExport writes movies with their reviews to a directory, one worker per movie.
func (r *Runner) MoviesExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.catalog.FetchAll(ctx); err != nil {
		return err
	}

	ids := cmd.StringSlice("id")
	if cmd.Bool("watchlist") {
		if r.watchlist.Identity().IsZero() {
			return fmt.Errorf("%w: sign in to export your watchlist", shared.ErrNotAuthenticated)
		}
		if !r.watchlist.Load(ctx) {
			return fmt.Errorf("%w: failed to load watchlist", shared.ErrServiceUnavailable)
		}
		ids = append(ids, r.watchlist.Items()...)
	}
	if len(ids) == 0 {
		for _, m := range r.catalog.Movies() {
			ids = append(ids, m.ID)
		}
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
		Posters:    cmd.Bool("posters"),
	})
	close(progress)
	<-done
	if result == nil {
		return err
	}

	m := result.Manifest
	r.writePlain("✓ Exported %d of %d movies to %s\n", m.Successful, m.Total, m.OutputDirectory)
	if m.Failed > 0 {
		var failed []string
		for _, e := range m.Entries {
			if !e.Success {
				failed = append(failed, fmt.Sprintf("%s (%s)", e.Name, e.Error))
			}
		}
		r.writePlain("✗ Failed: %s\n", strings.Join(failed, ", "))
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return err
}

func outputFlags() []cli.Flag {
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

// moviesCommand handles catalog operations
func moviesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "movies",
		Aliases: []string{"m"},
		Usage:   "Browse the movie catalog",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List movies by rating",
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of movies to print",
					},
					&cli.BoolFlag{
						Name:  "featured",
						Usage: "Only the featured row",
					},
					&cli.BoolFlag{
						Name:  "trending",
						Usage: "Only the trending row",
					},
				),
				Action: r.MoviesList,
			},
			{
				Name:  "show",
				Usage: "Show a movie and its reviews",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.MoviesShow,
			},
			{
				Name:  "export",
				Usage: "Export movies and their reviews to files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: marquee_export_{timestamp})",
					},
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Movie id to export; repeatable (default: whole catalog)",
					},
					&cli.BoolFlag{
						Name:  "watchlist",
						Usage: "Export the movies in your watchlist",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent exports",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Review requests per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "posters",
						Usage: "Download posters for markdown exports",
					},
				},
				Action: r.MoviesExport,
			},
		},
	}
}
