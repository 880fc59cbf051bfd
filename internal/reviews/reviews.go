// Package reviews records star ratings and write-ups for movies, plus "helpful" votes.
package reviews

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
)

// voteWorkers bounds concurrent helpful-count lookups.
const voteWorkers = 4

// Sessions supplies the signed-in user.
type Sessions interface {
	Session() (session.Session, bool)
}

// Options configures a [Service]. Store and Sessions are required.
type Options struct {
	Store    store.Store
	Sessions Sessions
	Notifier notify.Sink
	Logger   *log.Logger
}

// Service reads and writes reviews through a [store.Store].
type Service struct {
	store    store.Store
	sessions Sessions
	notifier notify.Sink
	logger   *log.Logger
}

// New creates a [Service].
func New(opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Service{
		store:    opts.Store,
		sessions: opts.Sessions,
		notifier: opts.Notifier,
		logger:   shared.WithLogger(opts.Logger, "component", "reviews"),
	}
}

func (s *Service) current() (session.Session, error) {
	sess, ok := s.sessions.Session()
	if !ok {
		return session.Session{}, shared.ErrNotAuthenticated
	}
	return sess, nil
}

// Username derives a display name from an email address.
func Username(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return "Anonymous"
	}
	return name
}

// Submit stores a new review by the signed-in user.
func (s *Service) Submit(ctx context.Context, movieID string, rating int, body string) (models.Review, error) {
	sess, err := s.current()
	if err != nil {
		s.notifier.Notify(notify.Notification{Title: "Sign in required", Description: "Please sign in to write a review", Severity: notify.SeverityError})
		return models.Review{}, err
	}

	review := models.Review{
		ID:        shared.GenerateID(),
		MovieID:   movieID,
		UserID:    sess.UserID,
		Username:  Username(sess.Email),
		Rating:    rating,
		Body:      strings.TrimSpace(body),
		CreatedAt: time.Now().UTC(),
	}
	if err := review.Validate(); err != nil {
		if review.Body == "" {
			s.notifier.Notify(notify.Notification{Title: "Review Required", Description: "Please write a review before submitting.", Severity: notify.SeverityError})
		} else {
			s.notifier.Notify(notify.Notification{Title: "Invalid review", Description: err.Error(), Severity: notify.SeverityError})
		}
		return models.Review{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	err = s.store.Insert(ctx, store.Reviews, store.Row{
		"id":         review.ID,
		"movie_id":   review.MovieID,
		"user_id":    string(review.UserID),
		"username":   review.Username,
		"rating":     review.Rating,
		"body":       review.Body,
		"created_at": review.CreatedAt,
	})
	if err != nil {
		s.logger.Error("failed to submit review", "movie", movieID, "error", err)
		if store.KindOf(err) == store.KindForeignKeyViolation {
			s.notifier.Notify(notify.Notification{Title: "Error", Description: "Movie not found", Severity: notify.SeverityError})
			return models.Review{}, fmt.Errorf("%w: %s", shared.ErrMovieNotFound, movieID)
		}
		s.notifier.Notify(notify.Notification{Title: "Error", Description: "Failed to submit review. Please try again.", Severity: notify.SeverityError})
		return models.Review{}, err
	}

	s.notifier.Notify(notify.Notification{Title: "Review Submitted", Description: "Thank you for your review!", Severity: notify.SeveritySuccess})
	return review, nil
}

// ListForMovie returns a movie's reviews, newest first, with helpful counts.
func (s *Service) ListForMovie(ctx context.Context, movieID string) ([]models.Review, error) {
	return s.list(ctx, store.Where("movie_id", movieID))
}

// ListForUser returns the signed-in user's reviews, newest first.
func (s *Service) ListForUser(ctx context.Context) ([]models.Review, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, store.Where("user_id", string(sess.UserID)))
}

func (s *Service) list(ctx context.Context, q store.Query) ([]models.Review, error) {
	rows, err := s.store.Select(ctx, store.Reviews, q.OrderBy("created_at", true))
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	out := make([]models.Review, len(rows))
	for i, row := range rows {
		out[i] = reviewFromRow(row)
	}
	if err := s.countVotes(ctx, out); err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b models.Review) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// countVotes fills Helpful for each review, a few lookups at a time.
func (s *Service) countVotes(ctx context.Context, reviews []models.Review) error {
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(voteWorkers)
	for i := range reviews {
		p.Go(func(ctx context.Context) error {
			votes, err := s.store.Select(ctx, store.ReviewVotes, store.Where("review_id", reviews[i].ID))
			if err != nil {
				return fmt.Errorf("failed to count votes for %s: %w", reviews[i].ID, err)
			}
			reviews[i].Helpful = len(votes)
			return nil
		})
	}
	return p.Wait()
}

// MarkHelpful records the signed-in user's vote on a review. Each user votes once.
func (s *Service) MarkHelpful(ctx context.Context, reviewID string) error {
	sess, err := s.current()
	if err != nil {
		s.notifier.Notify(notify.Notification{Title: "Sign in required", Description: "Please sign in to rate reviews", Severity: notify.SeverityError})
		return err
	}

	err = s.store.Insert(ctx, store.ReviewVotes, store.Row{"review_id": reviewID, "user_id": string(sess.UserID)})
	if err == nil {
		s.notifier.Notify(notify.Notification{Title: "Thanks for your feedback", Description: "Review marked as helpful", Severity: notify.SeveritySuccess})
		return nil
	}
	switch store.KindOf(err) {
	case store.KindUniqueViolation:
		s.notifier.Notify(notify.Notification{Title: "Already voted", Description: "You already marked this review as helpful", Severity: notify.SeverityInfo})
		return shared.ErrAlreadyVoted
	case store.KindForeignKeyViolation:
		s.notifier.Notify(notify.Notification{Title: "Error", Description: "Review not found", Severity: notify.SeverityError})
		return fmt.Errorf("%w: %s", shared.ErrReviewNotFound, reviewID)
	}

	s.logger.Error("failed to record vote", "review", reviewID, "error", err)
	s.notifier.Notify(notify.Notification{Title: "Error", Description: "Failed to record your vote", Severity: notify.SeverityError})
	return err
}

// Remove deletes one of the signed-in user's own reviews.
func (s *Service) Remove(ctx context.Context, reviewID string) error {
	sess, err := s.current()
	if err != nil {
		return err
	}

	owned := store.Where("id", reviewID).And("user_id", string(sess.UserID))
	rows, err := s.store.Select(ctx, store.Reviews, owned.WithLimit(1))
	if err != nil {
		return fmt.Errorf("failed to look up review: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrReviewNotFound, reviewID)
	}

	if err := s.store.Delete(ctx, store.ReviewVotes, store.Where("review_id", reviewID)); err != nil {
		return fmt.Errorf("failed to remove votes: %w", err)
	}
	if err := s.store.Delete(ctx, store.Reviews, owned); err != nil {
		s.notifier.Notify(notify.Notification{Title: "Error", Description: "Failed to delete review", Severity: notify.SeverityError})
		return fmt.Errorf("failed to remove review: %w", err)
	}

	s.notifier.Notify(notify.Notification{Title: "Review deleted", Description: "Your review has been removed", Severity: notify.SeveritySuccess})
	return nil
}

func reviewFromRow(row store.Row) models.Review {
	return models.Review{
		ID:        row.String("id"),
		MovieID:   row.String("movie_id"),
		UserID:    models.Identity(row.String("user_id")),
		Username:  row.String("username"),
		Rating:    row.Int("rating"),
		Body:      row.String("body"),
		CreatedAt: row.Time("created_at"),
	}
}
