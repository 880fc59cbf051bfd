// Package catalog caches the movie catalog in display-ready form.
package catalog

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/marquee/internal/metrics"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
)

// Slice sizes for the home page rows.
const (
	FeaturedCount = 4
	TrendingCount = 4
)

const posterFallback = "https://picsum.photos/400/600?random=%s"

// Failure descriptions.
const (
	DescLoadFailed = "Failed to load movies from database"
	DescOffline    = "You're offline. Using cached data if available."
)

// Options configures a [Cache]. Store is required.
type Options struct {
	Store    store.Store
	Network  *shared.NetworkStatus
	Notifier notify.Sink
	Logger   *log.Logger
}

// State is a point-in-time copy of the cache.
type State struct {
	Movies    []models.DisplayMovie
	Loading   bool
	Error     string
	FetchedAt time.Time
}

// Cache holds the full catalog ordered by rating. Loads are a single round-trip
// with no retry; a failed load keeps whatever was cached before.
type Cache struct {
	store    store.Store
	network  *shared.NetworkStatus
	notifier notify.Sink
	logger   *log.Logger
	group    singleflight.Group

	mu        sync.RWMutex
	movies    []models.Movie
	loading   bool
	errMsg    string
	fetchedAt time.Time
}

// New creates an empty [Cache].
func New(opts Options) *Cache {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Cache{
		store:    opts.Store,
		network:  opts.Network,
		notifier: opts.Notifier,
		logger:   shared.WithLogger(opts.Logger, "component", "catalog"),
	}
}

// FetchAll loads every movie, highest rated first. Concurrent calls share one request.
func (c *Cache) FetchAll(ctx context.Context) error {
	_, err, joined := c.group.Do("movies", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	if joined {
		c.logger.Debug("joined in-flight catalog fetch")
	}
	return err
}

// Refetch is [Cache.FetchAll] under the name the UI uses for its retry button.
func (c *Cache) Refetch(ctx context.Context) error {
	return c.FetchAll(ctx)
}

func (c *Cache) fetch(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	rows, err := c.store.Select(ctx, store.Movies, store.Query{}.OrderBy("average_rating", true))
	if err != nil {
		c.mu.Lock()
		c.loading = false
		c.errMsg = DescLoadFailed
		c.mu.Unlock()

		metrics.RecordCatalogFetch(metrics.OutcomeFailure)
		c.logger.Error("failed to load movies", "error", err)
		if c.network.Online() {
			c.notifier.Notify(notify.Notification{Title: "Error", Description: DescLoadFailed, Severity: notify.SeverityError})
		} else {
			c.notifier.Notify(notify.Notification{Title: "Offline", Description: DescOffline, Severity: notify.SeverityError})
		}
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}

	movies := make([]models.Movie, 0, len(rows))
	for _, row := range rows {
		movies = append(movies, MovieFromRow(row))
	}

	c.mu.Lock()
	c.movies = movies
	c.loading = false
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	metrics.RecordCatalogFetch(metrics.OutcomeSuccess)
	c.logger.Debug("catalog loaded", "movies", len(movies))
	return nil
}

// Movies returns the whole catalog in display form.
func (c *Cache) Movies() []models.DisplayMovie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return formatAll(c.movies)
}

// Featured returns the top rated movies.
func (c *Cache) Featured() []models.DisplayMovie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return formatAll(window(c.movies, 0, FeaturedCount))
}

// Trending returns the movies ranked right after the featured ones.
func (c *Cache) Trending() []models.DisplayMovie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return formatAll(window(c.movies, FeaturedCount, FeaturedCount+TrendingCount))
}

// Get looks a movie up by id.
func (c *Cache) Get(id string) (models.DisplayMovie, bool) {
	m, ok := c.Lookup(id)
	if !ok {
		return models.DisplayMovie{}, false
	}
	return Format(m), true
}

// Lookup returns the stored record for id.
func (c *Cache) Lookup(id string) (models.Movie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.movies {
		if m.ID == id {
			return m, true
		}
	}
	return models.Movie{}, false
}

// Snapshot returns a copy of the cache state.
func (c *Cache) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		Movies:    formatAll(c.movies),
		Loading:   c.loading,
		Error:     c.errMsg,
		FetchedAt: c.fetchedAt,
	}
}

func window(movies []models.Movie, from, to int) []models.Movie {
	from = min(from, len(movies))
	to = min(to, len(movies))
	return movies[from:to]
}

func formatAll(movies []models.Movie) []models.DisplayMovie {
	out := make([]models.DisplayMovie, len(movies))
	for i, m := range movies {
		out[i] = Format(m)
	}
	return out
}

// Format converts a [models.Movie] to its display form.
func Format(m models.Movie) models.DisplayMovie {
	poster := m.PosterURL
	if poster == "" {
		poster = fmt.Sprintf(posterFallback, m.ID)
	}
	return models.DisplayMovie{
		ID:          m.ID,
		Title:       m.Title,
		Year:        m.ReleaseYear,
		Genre:       m.Genre,
		Rating:      m.AverageRating,
		Poster:      poster,
		Duration:    shared.FormatRuntime(m.Duration),
		Director:    m.Director,
		Description: m.Synopsis,
	}
}

// MovieFromRow decodes a movies row.
func MovieFromRow(row store.Row) models.Movie {
	return models.Movie{
		ID:            row.String("id"),
		Title:         row.String("title"),
		ReleaseYear:   row.Int("release_year"),
		Genre:         row.String("genre"),
		AverageRating: row.Float("average_rating"),
		PosterURL:     row.String("poster_url"),
		Duration:      row.Int("duration"),
		Director:      row.String("director"),
		Synopsis:      row.String("synopsis"),
	}
}
