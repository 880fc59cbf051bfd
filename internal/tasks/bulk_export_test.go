package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	th "github.com/desertthunder/marquee/internal/testing"
)

func newExportEngine() (*Engine, *mockReviews) {
	reviews := &mockReviews{
		byMovie: map[string][]models.Review{
			"1": {{ID: "r1", Username: "ada", Rating: 5, Body: "Timeless.", Helpful: 2}},
		},
		errs: map[string]error{},
	}
	return NewEngine(&mockCatalog{movies: movies()}, nil, reviews), reviews
}

func TestBulkExport_AllFormats(t *testing.T) {
	tests := []struct {
		format string
		files  []string
	}{
		{formatter.FormatJSON, []string{"1.json"}},
		{formatter.FormatCSV, []string{"1_movies.csv", "1_metadata.json", "1_reviews.csv"}},
		{formatter.FormatMarkdown, []string{filepath.Join("1", "README.md")}},
		{formatter.FormatText, []string{"1.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, _ := newExportEngine()
			dir := t.TempDir()

			result, err := e.BulkExport(context.Background(), nil, []string{"1"}, BulkExportOpts{
				Format:    tt.format,
				OutputDir: dir,
				RateLimit: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Manifest.Successful)

			for _, f := range tt.files {
				th.AssertFileExists(t, filepath.Join(dir, f))
			}
			th.AssertFileExists(t, result.ManifestPath)
		})
	}
}

func TestBulkExport_PartialFailures(t *testing.T) {
	e, reviews := newExportEngine()
	reviews.errs["6"] = errors.New("network timeout")
	dir := t.TempDir()

	progress := make(chan ProgressUpdate, 50)
	result, err := e.BulkExport(context.Background(), progress, []string{"1", "6", "404"}, BulkExportOpts{
		OutputDir: dir,
		RateLimit: 1000,
	})
	require.NoError(t, err)

	m := result.Manifest
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Successful)
	assert.Equal(t, 2, m.Failed)

	assert.True(t, m.Entries[0].Success)
	assert.ErrorContains(t, m.Entries[1].Error, "network timeout")
	assert.Equal(t, "The Godfather", m.Entries[1].Name)
	assert.ErrorIs(t, m.Entries[2].Error, shared.ErrMovieNotFound)
	assert.Equal(t, "Unknown (404)", m.Entries[2].Name)

	content := th.MustReadFile(t, result.ManifestPath)
	assert.Contains(t, content, `"failed_exports": 2`)

	var done int
	for _, u := range drain(progress) {
		if u.Phase == ExportMovie {
			done++
			assert.Equal(t, 3, u.Total)
		}
	}
	assert.Equal(t, 3, done)
}

func TestBulkExport_Defaults(t *testing.T) {
	e, _ := newExportEngine()
	tempDir := t.TempDir()
	originalDir := th.MustGetwd(t)
	th.MustChdir(t, tempDir)
	defer th.MustChdir(t, originalDir)

	result, err := e.BulkExport(context.Background(), nil, []string{"1"}, BulkExportOpts{NumWorkers: 50, RateLimit: 1000})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Manifest.OutputDirectory, "marquee_export_"))
	th.AssertDirExists(t, result.Manifest.OutputDirectory)
}

func TestBulkExport_InvalidFormat(t *testing.T) {
	e, _ := newExportEngine()
	_, err := e.BulkExport(context.Background(), nil, []string{"1"}, BulkExportOpts{Format: "xml", OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestBulkExport_InvalidOutputDirectory(t *testing.T) {
	e, _ := newExportEngine()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := e.BulkExport(context.Background(), nil, []string{"1"}, BulkExportOpts{OutputDir: filepath.Join(file, "sub")})
	assert.Error(t, err)
}

func TestBulkExport_ContextCancellation(t *testing.T) {
	e, _ := newExportEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.BulkExport(ctx, nil, []string{"1", "6"}, BulkExportOpts{OutputDir: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.ManifestPath)
	assert.Equal(t, 0, result.Manifest.Successful)
}

func TestBulkExport_RateLimiting(t *testing.T) {
	e, _ := newExportEngine()

	start := time.Now()
	_, err := e.BulkExport(context.Background(), nil, []string{"1", "6", "3"}, BulkExportOpts{
		OutputDir: t.TempDir(),
		RateLimit: 20,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond, "three requests at 20/s with burst 1")
}

func TestBulkExport_RequiresReviews(t *testing.T) {
	e := NewEngine(&mockCatalog{movies: movies()}, nil, nil)
	_, err := e.BulkExport(context.Background(), nil, []string{"1"}, BulkExportOpts{OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}
