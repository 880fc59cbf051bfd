package notify

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Run("records in order", func(t *testing.T) {
		var r Recorder
		_, ok := r.Last()
		assert.False(t, ok)

		r.Notify(Notification{Title: "first"})
		r.Notify(Notification{Title: "second", Severity: SeverityError})

		require.Equal(t, 2, r.Len())
		last, ok := r.Last()
		require.True(t, ok)
		assert.Equal(t, "second", last.Title)
		assert.Equal(t, "first", r.All()[0].Title)

		r.Reset()
		assert.Zero(t, r.Len())
	})

	t.Run("concurrent use", func(t *testing.T) {
		var r Recorder
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Notify(Notification{Title: "x"})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, r.Len())
	})
}

func TestFanout(t *testing.T) {
	var a, b Recorder
	sink := Fanout(&a, nil, &b)
	sink.Notify(Notification{Title: "Added to watchlist", Severity: SeveritySuccess})

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	sink := NewLogSink(logger)

	sink.Notify(Notification{Title: "Error", Description: "Failed to add movie to watchlist", Severity: SeverityError})
	sink.Notify(Notification{Title: "Removed from watchlist", Description: "Movie removed from your watchlist", Severity: SeveritySuccess})

	out := buf.String()
	assert.True(t, strings.Contains(out, "ERRO"), out)
	assert.Contains(t, out, "Failed to add movie to watchlist")
	assert.Contains(t, out, "Removed from watchlist")
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "success", SeveritySuccess.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
}
