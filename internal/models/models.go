// package models defines the data model for the movie catalog and watchlist client
package models

import (
	"fmt"
	"strings"
	"time"
)

// Identity is an opaque reference to an authenticated user. The empty value means no session.
type Identity string

// IsZero reports whether no user is signed in.
func (i Identity) IsZero() bool { return i == "" }

// Movie is a catalog record as stored by the backend.
type Movie struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	ReleaseYear   int     `json:"release_year"`
	Genre         string  `json:"genre"`
	AverageRating float64 `json:"average_rating"`
	PosterURL     string  `json:"poster_url,omitempty"`
	Duration      int     `json:"duration"` // Runtime in minutes
	Director      string  `json:"director,omitempty"`
	Synopsis      string  `json:"synopsis,omitempty"`
}

// DisplayMovie is a [Movie] formatted for presentation.
type DisplayMovie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Year        int     `json:"year"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	Poster      string  `json:"poster"`
	Duration    string  `json:"duration"`
	Director    string  `json:"director,omitempty"`
	Description string  `json:"description,omitempty"`
}

// WatchlistEntry links a user to a movie. (UserID, MovieID) is unique in the store.
type WatchlistEntry struct {
	UserID    Identity  `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Review ratings are whole stars in this range.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating and write-up of a movie.
type Review struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movie_id"`
	UserID    Identity  `json:"user_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Helpful   int       `json:"helpful"`
}

// Validate checks the review fields a user controls.
func (r *Review) Validate() error {
	if strings.TrimSpace(r.MovieID) == "" {
		return fmt.Errorf("movie id is required")
	}
	if r.UserID.IsZero() {
		return fmt.Errorf("user id is required")
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, r.Rating)
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("review text is required")
	}
	return nil
}

// ReviewVote records that a user found a review helpful. (ReviewID, UserID) is unique.
type ReviewVote struct {
	ReviewID string   `json:"review_id"`
	UserID   Identity `json:"user_id"`
}
