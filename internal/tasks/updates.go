package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadCatalog Phase = iota
	LoadWatchlist
	LoadReviews
	ExportMovie
)

func (p Phase) String() string {
	switch p {
	case LoadCatalog:
		return "load_catalog"
	case LoadWatchlist:
		return "load_watchlist"
	case LoadReviews:
		return "load_reviews"
	case ExportMovie:
		return "export_movie"
	default:
		return ""
	}
}

func loadingCatalogUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: LoadCatalog, Step: 0, Total: 1, Message: "Loading movies..."}
}

func catalogLoadedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{Phase: LoadCatalog, Step: 1, Total: 1, Message: fmt.Sprintf("Loaded %d movies", count)}
}

func loadingWatchlistUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: LoadWatchlist, Step: 0, Total: 1, Message: "Loading watchlist..."}
}

func watchlistLoadedUpdate(count int, ok bool) ProgressUpdate {
	if !ok {
		return ProgressUpdate{Phase: LoadWatchlist, Step: 1, Total: 1, Message: "Failed to load watchlist"}
	}
	return ProgressUpdate{Phase: LoadWatchlist, Step: 1, Total: 1, Message: fmt.Sprintf("Loaded %d watchlist entries", count)}
}

func loadingReviewsUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadReviews,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Loading reviews: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportMovie,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportMovie,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}
