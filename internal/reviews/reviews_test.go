package reviews

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
	tu "github.com/desertthunder/marquee/internal/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService(t *testing.T, signedIn bool) (*Service, *tu.FakeStore, *notify.Recorder, *session.Provider) {
	t.Helper()
	fs := tu.NewFakeStore()
	fs.EnforceForeignKeys = true
	fs.Seed(store.Movies, store.Row{"id": "1", "title": "The Shawshank Redemption"}, store.Row{"id": "2", "title": "The Godfather"})

	p := session.NewProvider()
	if signedIn {
		p.SignIn(session.Session{UserID: "user-a", Email: "ada@example.com", AccessToken: "tok"})
	}
	notes := &notify.Recorder{}
	return New(Options{Store: fs, Sessions: p, Notifier: notes}), fs, notes, p
}

func seedReview(fs *tu.FakeStore, id, movie, user string, at time.Time) {
	fs.Seed(store.Reviews, store.Row{
		"id": id, "movie_id": movie, "user_id": user, "username": user,
		"rating": 4, "body": "Good", "created_at": at,
	})
}

func TestUsername(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"ada@example.com", "ada"},
		{"plain", "plain"},
		{"", "Anonymous"},
		{"@example.com", "Anonymous"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Username(tt.email), tt.email)
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores review", func(t *testing.T) {
		svc, fs, notes, _ := newService(t, true)
		r, err := svc.Submit(ctx, "1", 5, "  Hope is a good thing.  ")
		require.NoError(t, err)

		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "ada", r.Username)
		assert.Equal(t, "Hope is a good thing.", r.Body)
		assert.Equal(t, models.Identity("user-a"), r.UserID)

		rows := fs.Rows(store.Reviews)
		require.Len(t, rows, 1)
		assert.Equal(t, r.ID, rows[0].String("id"))

		n, _ := notes.Last()
		assert.Equal(t, "Review Submitted", n.Title)
		assert.Equal(t, "Thank you for your review!", n.Description)
	})

	t.Run("requires session", func(t *testing.T) {
		svc, fs, notes, _ := newService(t, false)
		_, err := svc.Submit(ctx, "1", 5, "text")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.Zero(t, fs.CallCount(tu.OpInsert))
		assert.Equal(t, 1, notes.Len())
	})

	t.Run("blank body", func(t *testing.T) {
		svc, fs, notes, _ := newService(t, true)
		_, err := svc.Submit(ctx, "1", 3, "   ")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Zero(t, fs.CallCount(tu.OpInsert))

		n, _ := notes.Last()
		assert.Equal(t, "Review Required", n.Title)
		assert.Equal(t, "Please write a review before submitting.", n.Description)
	})

	t.Run("rating out of range", func(t *testing.T) {
		svc, _, _, _ := newService(t, true)
		for _, rating := range []int{0, 6, -1} {
			_, err := svc.Submit(ctx, "1", rating, "fine")
			assert.ErrorIs(t, err, shared.ErrInvalidInput, "rating %d", rating)
		}
	})

	t.Run("unknown movie", func(t *testing.T) {
		svc, _, _, _ := newService(t, true)
		_, err := svc.Submit(ctx, "404", 4, "fine")
		assert.ErrorIs(t, err, shared.ErrMovieNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, fs, notes, _ := newService(t, true)
		fs.FailNext(tu.OpInsert, errors.New("boom"))
		_, err := svc.Submit(ctx, "1", 4, "fine")
		require.Error(t, err)

		n, _ := notes.Last()
		assert.Equal(t, "Failed to submit review. Please try again.", n.Description)
	})
}

func TestListForMovie(t *testing.T) {
	ctx := context.Background()
	svc, fs, _, _ := newService(t, true)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedReview(fs, "r1", "1", "user-b", base)
	seedReview(fs, "r2", "1", "user-c", base.Add(time.Hour))
	seedReview(fs, "r3", "2", "user-b", base.Add(2*time.Hour))
	fs.Seed(store.ReviewVotes,
		store.Row{"review_id": "r1", "user_id": "user-a"},
		store.Row{"review_id": "r1", "user_id": "user-c"},
		store.Row{"review_id": "r2", "user_id": "user-a"},
	)

	got, err := svc.ListForMovie(ctx, "1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID, "newest first")
	assert.Equal(t, 1, got[0].Helpful)
	assert.Equal(t, "r1", got[1].ID)
	assert.Equal(t, 2, got[1].Helpful)

	empty, err := svc.ListForMovie(ctx, "2-missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	t.Run("vote lookup failure", func(t *testing.T) {
		fs.FailNext(tu.OpSelect, nil, errors.New("vote lookup failed"))
		_, err := svc.ListForMovie(ctx, "1")
		assert.Error(t, err)
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	svc, fs, _, p := newService(t, true)
	seedReview(fs, "r1", "1", "user-a", time.Now())
	seedReview(fs, "r2", "2", "user-b", time.Now())

	got, err := svc.ListForUser(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	p.SignOut()
	_, err = svc.ListForUser(ctx)
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestMarkHelpful(t *testing.T) {
	ctx := context.Background()
	svc, fs, notes, _ := newService(t, true)
	seedReview(fs, "r1", "1", "user-b", time.Now())

	require.NoError(t, svc.MarkHelpful(ctx, "r1"))
	assert.Len(t, fs.Rows(store.ReviewVotes), 1)

	err := svc.MarkHelpful(ctx, "r1")
	assert.ErrorIs(t, err, shared.ErrAlreadyVoted)
	assert.Len(t, fs.Rows(store.ReviewVotes), 1)
	n, _ := notes.Last()
	assert.Equal(t, "Already voted", n.Title)

	err = svc.MarkHelpful(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrReviewNotFound)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc, fs, _, _ := newService(t, true)
	seedReview(fs, "mine", "1", "user-a", time.Now())
	seedReview(fs, "theirs", "1", "user-b", time.Now())
	fs.Seed(store.ReviewVotes, store.Row{"review_id": "mine", "user_id": "user-b"})

	require.NoError(t, svc.Remove(ctx, "mine"))
	assert.Len(t, fs.Rows(store.Reviews), 1)
	assert.Empty(t, fs.Rows(store.ReviewVotes))

	err := svc.Remove(ctx, "theirs")
	assert.ErrorIs(t, err, shared.ErrReviewNotFound)
	assert.Len(t, fs.Rows(store.Reviews), 1, "other users' reviews are untouched")
}
