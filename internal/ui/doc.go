// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a browse-and-curate workflow over the catalog:
//  1. [LoadingView] : Warm-up progress while the catalog and watchlist load
//  2. [MovieListView] : Browse every movie, or only the watchlist (tab)
//  3. [DetailView] : Movie details with its reviews
//  4. [ComposeView] : Write a review
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Warm-up progress, notifications and watchlist state changes each arrive over a channel, so background work never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, w, r, h, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
