package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/tasks"
	"github.com/desertthunder/marquee/internal/watchlist"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg     = Msg{}
	_ notify.Sink = ChannelSink(nil)
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgWarmupComplete
	MsgReviewsFetched
	MsgNotification
	MsgWatchlistChanged
	MsgActionDone
)

type warmupResult struct {
	result *tasks.WarmupResult
	err    error
}

type reviewsResult struct {
	movieID string
	reviews []models.Review
	err     error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// warmupCompleteMsg is the constructor for [MsgWarmupComplete]
func warmupCompleteMsg(result *tasks.WarmupResult, err error) Msg {
	return Msg{kind: MsgWarmupComplete, data: warmupResult{result, err}}
}

// reviewsFetchedMsg is the constructor for [MsgReviewsFetched]
func reviewsFetchedMsg(movieID string, reviews []models.Review, err error) Msg {
	return Msg{kind: MsgReviewsFetched, data: reviewsResult{movieID, reviews, err}}
}

// notificationMsg is the constructor for [MsgNotification]
func notificationMsg(n notify.Notification) Msg {
	return Msg{kind: MsgNotification, data: n}
}

// watchlistChangedMsg is the constructor for [MsgWatchlistChanged]
func watchlistChangedMsg(st watchlist.State) Msg {
	return Msg{kind: MsgWatchlistChanged, data: st}
}

// actionDoneMsg is the constructor for [MsgActionDone]. The payload names the movie whose reviews need reloading, if any.
func actionDoneMsg(reloadMovie string) Msg {
	return Msg{kind: MsgActionDone, data: reloadMovie}
}

// ChannelSink delivers notifications to the TUI. Sends never block; a full channel drops the notification.
type ChannelSink chan notify.Notification

func (c ChannelSink) Notify(n notify.Notification) {
	select {
	case c <- n:
	default:
	}
}
