package watchlist

import "github.com/desertthunder/marquee/internal/notify"

const errorTitle = "Error"

var (
	msgSignInRequired = notify.Notification{
		Title:       "Sign in required",
		Description: "Please sign in to add movies to your watchlist",
		Severity:    notify.SeverityError,
	}
	msgInvalidMovie = notify.Notification{
		Title:       "Invalid movie",
		Description: "Cannot add invalid movie to watchlist",
		Severity:    notify.SeverityError,
	}
	msgAlreadyListed = notify.Notification{
		Title:       "Already in watchlist",
		Description: "This movie is already in your watchlist",
		Severity:    notify.SeverityError,
	}
	msgInProgress = notify.Notification{
		Title:       "Update in progress",
		Description: "Please wait for the previous change to this movie to finish",
		Severity:    notify.SeverityWarning,
	}
	msgAdded = notify.Notification{
		Title:       "Added to watchlist",
		Description: "Movie added to your watchlist successfully",
		Severity:    notify.SeveritySuccess,
	}
	msgRemoved = notify.Notification{
		Title:       "Removed from watchlist",
		Description: "Movie removed from your watchlist",
		Severity:    notify.SeveritySuccess,
	}
)

// Failure descriptions.
const (
	DescFetchFailed   = "Failed to load watchlist"
	DescDuplicate     = "This movie is already in your watchlist"
	DescMovieNotFound = "Movie not found"
	DescOffline       = "You're offline. Please check your connection and try again."
	DescAddFailed     = "Failed to add movie to watchlist"
	DescRemoveFailed  = "Failed to remove movie from watchlist"
)

func failure(description string) notify.Notification {
	return notify.Notification{Title: errorTitle, Description: description, Severity: notify.SeverityError}
}
