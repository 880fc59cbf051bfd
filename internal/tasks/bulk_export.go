package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// BulkExportOpts contains configuration for bulk movie exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: marquee_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, at most 10)
	RateLimit  float64 // Review requests per second (default: 5)
	Posters    bool    // Download posters for markdown exports
}

// BulkExportResult summarizes a [Engine.BulkExport] run.
type BulkExportResult struct {
	Manifest     formatter.Manifest
	ManifestPath string
}

// BulkExport writes each movie with its reviews to OutputDir, a few at a time, and
// finishes with a manifest. A failing movie is recorded and the rest continue.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.catalog == nil || e.reviews == nil {
		return nil, fmt.Errorf("%w: catalog and reviews are required", shared.ErrServiceUnavailable)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("marquee_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	entries := make([]formatter.ManifestEntry, len(ids))

	var mu sync.Mutex
	completed := 0
	report := func(entry formatter.ManifestEntry) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if entry.Success {
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), entry.Name, len(entry.Files)))
		} else {
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), entry.Name, entry.Error))
		}
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(opts.NumWorkers)
	for i, id := range ids {
		p.Go(func(ctx context.Context) error {
			entries[i] = e.exportMovie(ctx, limiter, id, i+1, len(ids), prog, opts)
			report(entries[i])
			return nil
		})
	}
	_ = p.Wait()

	manifest := formatter.Manifest{
		Total:           len(ids),
		Entries:         entries,
		OutputDirectory: opts.OutputDir,
	}
	for _, entry := range entries {
		if entry.Success {
			manifest.Successful++
		} else {
			manifest.Failed++
		}
	}

	result := &BulkExportResult{Manifest: manifest}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportMovie fetches one movie's reviews and writes it in the requested format.
func (e *Engine) exportMovie(ctx context.Context, limiter *rate.Limiter, id string, step, total int, prog chan<- ProgressUpdate, opts BulkExportOpts) formatter.ManifestEntry {
	entry := formatter.ManifestEntry{ID: id, Name: fmt.Sprintf("Unknown (%s)", id)}

	movie, ok := e.catalog.Get(id)
	if !ok {
		entry.Error = fmt.Errorf("%w: %s", shared.ErrMovieNotFound, id)
		return entry
	}
	entry.Name = movie.Title

	if err := limiter.Wait(ctx); err != nil {
		entry.Error = err
		return entry
	}
	e.sendProgress(prog, loadingReviewsUpdate(step, total, movie.Title))

	reviews, err := e.reviews.ListForMovie(ctx, id)
	if err != nil {
		entry.Error = fmt.Errorf("failed to fetch reviews: %w", err)
		return entry
	}

	detail := &formatter.MovieDetail{Movie: movie, Reviews: reviews}
	files, err := writeDetail(detail, opts)
	if err != nil {
		entry.Error = err
		return entry
	}
	entry.Files = files
	entry.Success = true
	return entry
}

func writeDetail(detail *formatter.MovieDetail, opts BulkExportOpts) ([]string, error) {
	id := detail.Movie.ID
	base := filepath.Join(opts.OutputDir, id)

	switch opts.Format {
	case formatter.FormatCSV:
		list := &formatter.MovieList{ID: id, Name: detail.Movie.Title, Movies: []models.DisplayMovie{detail.Movie}}
		res, err := formatter.WriteCSVExport(list, base)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		reviewsFile, err := formatter.WriteReviewsCSV(detail.Reviews, base+"_reviews.csv")
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.MoviesFile, res.MetadataFile, reviewsFile}, nil

	case formatter.FormatMarkdown:
		res, err := formatter.WriteMarkdownExport(detail, base, opts.Posters)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil

	case formatter.FormatText:
		path, err := formatter.WriteDetailText(detail, base+".txt")
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil

	default:
		path, err := formatter.WriteJSONExport(detail, base+".json")
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
}
