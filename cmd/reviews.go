package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// ReviewsAdd submits a review for a movie.
func (r *Runner) ReviewsAdd(ctx context.Context, cmd *cli.Command) error {
	movieID := cmd.StringArg("movie")
	if shared.IsBlank(movieID) {
		return fmt.Errorf("%w: movie id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	body := cmd.String("body")
	if body == "" {
		body = strings.Join(cmd.StringArgs("text"), " ")
	}

	review, err := r.reviews.Submit(ctx, movieID, int(cmd.Int("rating")), body)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Review %s posted\n", review.ID)
}

// ReviewsList prints the reviews of a movie, newest first.
func (r *Runner) ReviewsList(ctx context.Context, cmd *cli.Command) error {
	movieID := cmd.StringArg("movie")
	if shared.IsBlank(movieID) {
		return fmt.Errorf("%w: movie id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	reviews, err := r.reviews.ListForMovie(ctx, movieID)
	if err != nil {
		return err
	}
	return r.writeReviews(fmt.Sprintf("Reviews of %s", movieID), reviews, cmd)
}

// ReviewsMine prints the signed-in user's reviews.
func (r *Runner) ReviewsMine(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	reviews, err := r.reviews.ListForUser(ctx)
	if err != nil {
		return err
	}
	return r.writeReviews("My Reviews", reviews, cmd)
}

func (r *Runner) writeReviews(title string, reviews []models.Review, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(reviews, cmd.Bool("pretty"))
	}
	if cmd.Bool("csv") {
		data, err := formatter.ReviewsToCSV(reviews)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d)", title, len(reviews)))
	for _, rv := range reviews {
		r.writePlain("%s  %s  %s  %s\n", rv.ID, strings.Repeat("★", rv.Rating), rv.Username, rv.CreatedAt.Format("2006-01-02"))
		r.writePlain("    %s\n", rv.Body)
		if rv.Helpful > 0 {
			r.writePlain("    %d found this helpful\n", rv.Helpful)
		}
	}
	return nil
}

// ReviewsHelpful records a helpful vote on a review.
func (r *Runner) ReviewsHelpful(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("review")
	if shared.IsBlank(id) {
		return fmt.Errorf("%w: review id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.reviews.MarkHelpful(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Marked %s as helpful\n", id)
}

// ReviewsDelete removes one of the signed-in user's reviews.
func (r *Runner) ReviewsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("review")
	if shared.IsBlank(id) {
		return fmt.Errorf("%w: review id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.reviews.Remove(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted review %s\n", id)
}

// reviewsCommand handles reviews
func reviewsCommand(r *Runner) *cli.Command {
	listFlags := func() []cli.Flag {
		return append(outputFlags(), &cli.BoolFlag{
			Name:  "csv",
			Usage: "Output CSV",
		})
	}

	return &cli.Command{
		Name:    "reviews",
		Aliases: []string{"rv"},
		Usage:   "Read and write movie reviews",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Review a movie",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "movie"},
					&cli.StringArgs{Name: "text", Min: 0, Max: -1},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "rating",
						Aliases: []string{"r"},
						Usage:   "Stars, 1 to 5",
						Value:   models.MaxRating,
					},
					&cli.StringFlag{
						Name:    "body",
						Aliases: []string{"b"},
						Usage:   "Review text (default: remaining arguments)",
					},
				},
				Action: r.ReviewsAdd,
			},
			{
				Name:  "list",
				Usage: "List the reviews of a movie",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "movie"},
				},
				Flags:  listFlags(),
				Action: r.ReviewsList,
			},
			{
				Name:   "mine",
				Usage:  "List your reviews",
				Flags:  listFlags(),
				Action: r.ReviewsMine,
			},
			{
				Name:  "helpful",
				Usage: "Mark a review as helpful",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "review"},
				},
				Action: r.ReviewsHelpful,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete one of your reviews",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "review"},
				},
				Action: r.ReviewsDelete,
			},
		},
	}
}
