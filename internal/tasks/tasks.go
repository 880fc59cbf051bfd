package tasks

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// Catalog is the part of the catalog cache the engine reads.
type Catalog interface {
	FetchAll(ctx context.Context) error
	Movies() []models.DisplayMovie
	Get(id string) (models.DisplayMovie, bool)
}

// Watchlist is the part of the watchlist synchronizer the engine reads.
type Watchlist interface {
	Identity() models.Identity
	Load(ctx context.Context) bool
	Items() []string
}

// Reviews lists the reviews of a movie.
type Reviews interface {
	ListForMovie(ctx context.Context, movieID string) ([]models.Review, error)
}

// Engine runs warm-up and export operations.
type Engine struct {
	catalog   Catalog
	watchlist Watchlist
	reviews   Reviews
}

// NewEngine creates an [Engine]. Any dependency may be nil; operations needing it fail.
func NewEngine(c Catalog, w Watchlist, r Reviews) *Engine {
	return &Engine{catalog: c, watchlist: w, reviews: r}
}

// WarmupResult reports what a warm-up loaded.
type WarmupResult struct {
	Movies          int
	WatchlistLoaded bool
	Watchlist       []models.DisplayMovie
	// Missing holds watchlist ids with no catalog entry.
	Missing []string
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Warmup fetches the catalog and, when someone is signed in, their watchlist at the same time.
//
// Only a catalog failure is returned as an error. The synchronizer has already
// reported its own failure through notifications.
func (e *Engine) Warmup(ctx context.Context, progress chan<- ProgressUpdate) (*WarmupResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	result := &WarmupResult{}
	withWatchlist := e.watchlist != nil && !e.watchlist.Identity().IsZero()

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		e.sendProgress(progress, loadingCatalogUpdate())
		if err := e.catalog.FetchAll(ctx); err != nil {
			return err
		}
		e.sendProgress(progress, catalogLoadedUpdate(len(e.catalog.Movies())))
		return nil
	})
	if withWatchlist {
		p.Go(func(ctx context.Context) error {
			e.sendProgress(progress, loadingWatchlistUpdate())
			result.WatchlistLoaded = e.watchlist.Load(ctx)
			e.sendProgress(progress, watchlistLoadedUpdate(len(e.watchlist.Items()), result.WatchlistLoaded))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("warm-up failed: %w", err)
	}

	result.Movies = len(e.catalog.Movies())
	if withWatchlist {
		result.Watchlist, result.Missing = e.WatchlistMovies()
	}
	return result, nil
}

// WatchlistMovies resolves the current watchlist against the catalog, in catalog order.
func (e *Engine) WatchlistMovies() (movies []models.DisplayMovie, missing []string) {
	if e.watchlist == nil || e.catalog == nil {
		return nil, nil
	}

	listed := make(map[string]bool)
	for _, id := range e.watchlist.Items() {
		listed[id] = true
	}

	movies = []models.DisplayMovie{}
	for _, m := range e.catalog.Movies() {
		if listed[m.ID] {
			movies = append(movies, m)
			delete(listed, m.ID)
		}
	}
	for _, id := range e.watchlist.Items() {
		if listed[id] {
			missing = append(missing, id)
		}
	}
	return movies, missing
}
