package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
	tu "github.com/desertthunder/marquee/internal/testing"
)

type testEnv struct {
	config *shared.Config
	store  *tu.FakeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	config := shared.DefaultConfig()
	config.Session.Path = filepath.Join(t.TempDir(), "session.json")
	config.Watchlist.RetryBaseDelayMS = 1

	fs := tu.NewFakeStore()
	fs.EnforceForeignKeys = true
	fs.Seed(store.Movies,
		store.Row{"id": "m1", "title": "Heat", "release_year": int64(1995), "genre": "Crime", "average_rating": 4.6, "duration": int64(170)},
		store.Row{"id": "m2", "title": "Alien", "release_year": int64(1979), "genre": "Horror", "average_rating": 4.8, "duration": int64(117)},
	)
	return &testEnv{config: config, store: fs}
}

// run executes one CLI invocation with a fresh runner, as a separate process would.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{
		Config: e.config,
		Logger: log.New(io.Discard),
		Output: out,
		Store:  e.store,
	})
	err := newApp(r).Run(context.Background(), append([]string{"marquee"}, args...))
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("marquee %s: unexpected error: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			fs := tu.NewFakeStore()
			auth := newLocalAuth()

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Store:  fs,
				Auth:   auth,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.ownLogger {
				t.Error("expected an injected logger to be kept")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.store != fs {
				t.Error("expected store to be set")
			}
			if runner.auth != auth {
				t.Error("expected auth to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil || !runner.ownLogger {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.notifier == nil {
				t.Error("expected a notifier")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}

		want := []string{"setup", "auth", "movies", "watchlist", "reviews", "tui"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("expected commands %v, got %v", want, names)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "{\"key\":\"value\"}\n" {
				t.Errorf("unexpected output %q", got)
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err == nil {
				t.Error("expected error on write failure")
			}
		})

		t.Run("returns error when the newline cannot be written", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})

			err := runner.writeJSON("x", false)
			if err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlainHeader("Title")
		runner.writePlainln("n=%d", 3)

		got := output.String()
		if !strings.Contains(got, "Title\n") || !strings.HasSuffix(got, "\nn=3\n") {
			t.Errorf("unexpected output %q", got)
		}
	})
}

func TestLocalAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("same email maps to the same user", func(t *testing.T) {
		a := newLocalAuth()
		s1, err := a.SignIn(ctx, "Ada@Example.com ", "pw")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s2, _ := newLocalAuth().SignUp(ctx, "ada@example.com", "other")

		if s1.UserID != s2.UserID {
			t.Errorf("expected stable identity, got %s and %s", s1.UserID, s2.UserID)
		}
		if !s1.Valid() || s1.Email != "ada@example.com" {
			t.Errorf("unexpected session %+v", s1)
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		_, err := newLocalAuth().SignIn(ctx, " ", "pw")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("has no refresh", func(t *testing.T) {
		_, err := newLocalAuth().Refresh(ctx, "x")
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "auth", "status")
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("expected signed-out status, got %q", out)
	}

	out = env.mustRun(t, "auth", "login", "--email", "ada@example.com", "--password", "pw")
	if !strings.Contains(out, "Signed in as ada@example.com") {
		t.Errorf("unexpected login output %q", out)
	}
	tu.AssertFileExists(t, env.config.Session.Path)

	out = env.mustRun(t, "auth", "status")
	if !strings.Contains(out, "ada@example.com") || !strings.Contains(out, "valid for") {
		t.Errorf("unexpected status output %q", out)
	}

	out = env.mustRun(t, "auth", "token", "--claims")
	var claims map[string]any
	if err := json.Unmarshal([]byte(out), &claims); err != nil {
		t.Fatalf("expected JSON claims, got %q: %v", out, err)
	}
	if claims["Email"] != "ada@example.com" {
		t.Errorf("unexpected claims %v", claims)
	}

	env.mustRun(t, "auth", "logout")
	if _, err := os.Stat(env.config.Session.Path); !os.IsNotExist(err) {
		t.Error("expected session file to be removed")
	}

	if _, err := env.run(t, "auth", "token"); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestMoviesCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list", func(t *testing.T) {
		out := env.mustRun(t, "movies", "list", "--json", "--pretty=false")
		var list struct {
			Movies []struct {
				ID       string `json:"id"`
				Duration string `json:"duration"`
			} `json:"movies"`
		}
		if err := json.Unmarshal([]byte(out), &list); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(list.Movies) != 2 || list.Movies[0].ID != "m2" {
			t.Errorf("expected movies by rating, got %+v", list.Movies)
		}
		if list.Movies[1].Duration != "2h 50m" {
			t.Errorf("unexpected duration %q", list.Movies[1].Duration)
		}
	})

	t.Run("list as csv", func(t *testing.T) {
		out := env.mustRun(t, "movies", "list", "--format", "csv", "--limit", "1")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 2 || !strings.HasPrefix(lines[1], "m2,Alien") {
			t.Errorf("unexpected csv %q", out)
		}
	})

	t.Run("list rejects unknown format", func(t *testing.T) {
		if _, err := env.run(t, "movies", "list", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("show", func(t *testing.T) {
		out := env.mustRun(t, "movies", "show", "m1")
		if !strings.Contains(out, "Heat") {
			t.Errorf("expected movie detail, got %q", out)
		}

		if _, err := env.run(t, "movies", "show", "nope"); !errors.Is(err, shared.ErrMovieNotFound) {
			t.Errorf("expected ErrMovieNotFound, got %v", err)
		}
	})

	t.Run("export", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		out := env.mustRun(t, "movies", "export", "--format", "json", "--output", dir, "--rate", "100")
		if !strings.Contains(out, "Exported 2 of 2 movies") {
			t.Errorf("unexpected export output %q", out)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		tu.AssertFileExists(t, filepath.Join(dir, "m1.json"))
	})
}

func TestWatchlistCommands(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "watchlist", "list"); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	env.mustRun(t, "auth", "login", "-e", "ada@example.com", "-p", "pw")

	out := env.mustRun(t, "watchlist", "add", "m1", "m2")
	if !strings.Contains(out, "added m1") || !strings.Contains(out, "added m2") {
		t.Errorf("unexpected add output %q", out)
	}
	if n := len(env.store.Rows(store.WatchlistEntries)); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	if _, err := env.run(t, "watchlist", "add", "m1"); err == nil {
		t.Error("expected a duplicate add to fail")
	}
	if _, err := env.run(t, "watchlist", "add", "missing"); err == nil {
		t.Error("expected an unknown movie to fail")
	}

	out = env.mustRun(t, "watchlist", "list", "--format", "txt")
	if !strings.Contains(out, "Heat") || !strings.Contains(out, "Alien") {
		t.Errorf("unexpected list output %q", out)
	}

	env.mustRun(t, "watchlist", "remove", "m1")
	env.mustRun(t, "watchlist", "rm", "m1")
	if n := len(env.store.Rows(store.WatchlistEntries)); n != 1 {
		t.Errorf("expected 1 entry after remove, got %d", n)
	}

	t.Run("reports each failed id with its own reason", func(t *testing.T) {
		env.store.FailNext(tu.OpInsert, errors.New("connection reset"))

		out, err := env.run(t, "watchlist", "add", "m1", "m2")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(out, "✗ m1: Failed to add movie to watchlist") {
			t.Errorf("missing store failure for m1 in %q", out)
		}
		if !strings.Contains(out, "✗ m2: This movie is already in your watchlist") {
			t.Errorf("missing duplicate reason for m2 in %q", out)
		}
	})

	t.Run("rejections alone are argument errors", func(t *testing.T) {
		out, err := env.run(t, "watchlist", "add", "m2", "missing")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if !strings.Contains(out, "✗ missing: Movie not found") {
			t.Errorf("missing not-found reason in %q", out)
		}
	})
}

func TestReviewsCommands(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "reviews", "add", "m1", "Great"); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	env.mustRun(t, "auth", "login", "-e", "ada@example.com", "-p", "pw")

	if _, err := env.run(t, "reviews", "add", "m1", "--rating", "9", "Great"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	env.mustRun(t, "reviews", "add", "m1", "--rating", "4", "Tense", "and", "long")
	rows := env.store.Rows(store.Reviews)
	if len(rows) != 1 {
		t.Fatalf("expected 1 review, got %d", len(rows))
	}
	id := rows[0].String("id")
	if rows[0].String("body") != "Tense and long" || rows[0].String("username") != "ada" {
		t.Errorf("unexpected review row %v", rows[0])
	}

	out := env.mustRun(t, "reviews", "list", "m1")
	if !strings.Contains(out, "Tense and long") || !strings.Contains(out, "★★★★") {
		t.Errorf("unexpected list output %q", out)
	}

	env.mustRun(t, "reviews", "helpful", id)
	if _, err := env.run(t, "reviews", "helpful", id); !errors.Is(err, shared.ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}

	out = env.mustRun(t, "reviews", "mine", "--json")
	if !strings.Contains(out, `"helpful": 1`) {
		t.Errorf("expected helpful count in %q", out)
	}

	env.mustRun(t, "reviews", "delete", id)
	if _, err := env.run(t, "reviews", "delete", id); !errors.Is(err, shared.ErrReviewNotFound) {
		t.Errorf("expected ErrReviewNotFound, got %v", err)
	}
}
