// Package models defines domain entities for the marquee movie client.
//
// The package contains two categories of types:
//
// 1. Catalog data: records fetched from the backend and their display form
//   - [Movie] : Catalog row with rating, runtime in minutes and optional poster
//   - [DisplayMovie] : Presentation form with formatted runtime and poster fallback
//
// 2. User data: records owned by an authenticated [Identity]
//   - [WatchlistEntry] : Membership of a movie in a user's watchlist
//   - [Review] : Star rating and text, validated with [Review.Validate]
//   - [ReviewVote] : One "helpful" vote per user per review
//
// Identity is deliberately opaque; consumers compare it and nothing more.
package models
