package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/marquee/internal/models"
)

var (
	_ list.Item = movieItem{}
	_ list.Item = reviewItem{}
)

// movieItem wraps [models.DisplayMovie] to implement [list.Item].
type movieItem struct {
	movie  models.DisplayMovie
	listed bool
}

func (i movieItem) FilterValue() string { return i.movie.Title }
func (i movieItem) Title() string {
	title := fmt.Sprintf("%s (%d)", i.movie.Title, i.movie.Year)
	if i.listed {
		title = "✓ " + title
	}
	return title
}
func (i movieItem) Description() string {
	return fmt.Sprintf("★ %.1f • %s • %s", i.movie.Rating, i.movie.Genre, i.movie.Duration)
}

// reviewItem wraps [models.Review] to implement [list.Item].
type reviewItem struct {
	review models.Review
}

func (i reviewItem) FilterValue() string { return i.review.Body }
func (i reviewItem) Title() string {
	return fmt.Sprintf("%s %s", i.review.Username, strings.Repeat("★", i.review.Rating))
}
func (i reviewItem) Description() string {
	desc := i.review.Body
	if i.review.Helpful > 0 {
		desc = fmt.Sprintf("%s • %d helpful", desc, i.review.Helpful)
	}
	return desc
}
