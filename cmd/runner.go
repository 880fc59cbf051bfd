package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/catalog"
	"github.com/desertthunder/marquee/internal/metrics"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/repositories"
	"github.com/desertthunder/marquee/internal/reviews"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
	"github.com/desertthunder/marquee/internal/tasks"
	"github.com/desertthunder/marquee/internal/watchlist"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies are built on first use, so commands that only touch the config or
// the session file never open a database.
type Runner struct {
	config       *shared.Config
	logger       *log.Logger
	ownLogger    bool
	output       io.Writer
	notifier     notify.Sink
	network      *shared.NetworkStatus
	store        store.Store
	auth         Authenticator
	sessions     *session.Provider
	sessionFile  *session.FileStore
	catalog      *catalog.Cache
	watchlist    *watchlist.Synchronizer
	reviews      *reviews.Service
	engine       *tasks.Engine
	closers      []func() error
	sessionReady bool
	ready        bool

	// watchlistNotes keeps what the synchronizer reported, for per-movie CLI output.
	watchlistNotes *notify.Recorder
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store and Auth replace the backend selected by the config file.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	Store  store.Store
	Auth   Authenticator
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		store:   opts.Store,
		auth:    opts.Auth,
		network: shared.NewNetworkStatus(),
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
		r.ownLogger = true
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	r.notifier = notify.NewLogSink(r.logger)
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, watchlistCommand, reviewsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config. A missing default file means defaults.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	if r.ownLogger {
		logger, err := shared.NewLoggerFromConfig(r.config.Log)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(logger)
	}
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// After releases everything the command opened and optionally prints the metrics.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	err := r.Close()
	if cmd.Bool("metrics") {
		err = errors.Join(err, metrics.Dump(os.Stderr))
	}
	return err
}

// SetLogger replaces the logger used by the runner and every component it builds later.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.notifier = notify.NewLogSink(logger)
}

// Close stops background work and closes connections in reverse order of opening.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// connect builds the store and authenticator for the configured backend.
func (r *Runner) connect(ctx context.Context) error {
	if r.store != nil {
		if r.auth == nil {
			r.auth = newLocalAuth()
		}
		return nil
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	switch r.config.Backend.Mode {
	case shared.BackendREST:
		client, err := services.NewClient(services.ClientOptions{
			BaseURL:           r.config.Backend.URL,
			AnonKey:           r.config.Backend.AnonKey,
			Tokens:            r.sessions,
			Network:           r.network,
			RequestsPerSecond: r.config.Backend.RequestsPerSecond,
			Timeout:           r.config.Backend.Timeout(),
			Logger:            r.logger,
		})
		if err != nil {
			return err
		}
		r.store = services.NewRESTStore(client)
		if r.auth == nil {
			r.auth = services.NewAuthService(client)
		}
		return nil

	default:
		db, dialect, err := r.openDatabase()
		if err != nil {
			return err
		}
		r.closers = append(r.closers, db.Close)

		if err := repositories.RunMigrations(ctx, db, dialect); err != nil {
			return err
		}
		r.store = repositories.NewSQLStore(db, dialect, r.logger)
		if r.auth == nil {
			r.auth = newLocalAuth()
		}
		return nil
	}
}

// openSession restores the saved session, refreshing its token when it is close to expiry.
func (r *Runner) openSession(ctx context.Context) error {
	if r.sessionReady {
		return nil
	}
	r.sessions = session.NewProvider()
	r.sessionFile = session.NewFileStore(shared.ExpandPath(r.config.Session.Path))

	if err := r.connect(ctx); err != nil {
		return err
	}
	if err := r.sessionFile.Restore(r.sessions); err != nil {
		r.logger.Warn("ignoring unreadable session file", "path", r.sessionFile.Path(), "error", err)
	}
	r.sessionReady = true

	s, ok := r.sessions.Session()
	if !ok || s.RefreshToken == "" {
		return nil
	}
	if !session.NeedsRefresh(s.AccessToken) && !session.IsExpired(s.AccessToken) {
		return nil
	}

	refreshed, err := r.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		r.logger.Warn("session refresh failed; sign in again", "error", err)
		return nil
	}
	r.sessions.SignIn(refreshed)
	if err := r.sessionFile.Save(refreshed); err != nil {
		r.logger.Warn("failed to save refreshed session", "error", err)
	}
	r.logger.Debug("session refreshed", "user", refreshed.UserID)
	return nil
}

// open builds the catalog, watchlist and reviews components on top of the session.
func (r *Runner) open(ctx context.Context) error {
	if r.ready {
		return nil
	}
	if err := r.openSession(ctx); err != nil {
		return err
	}

	r.catalog = catalog.New(catalog.Options{
		Store:    r.store,
		Network:  r.network,
		Notifier: r.notifier,
		Logger:   r.logger,
	})
	r.watchlistNotes = &notify.Recorder{}
	r.watchlist = watchlist.New(watchlist.Options{
		Store:          r.store,
		Network:        r.network,
		Notifier:       notify.Fanout(r.notifier, r.watchlistNotes),
		Logger:         r.logger,
		RetryAttempts:  uint(max(r.config.Watchlist.RetryAttempts, 0)),
		RetryBaseDelay: r.config.Watchlist.RetryBaseDelay(),
	})
	unbind := r.watchlist.Bind(r.sessions)
	r.closers = append(r.closers, func() error {
		unbind()
		r.watchlist.Close()
		return nil
	})
	r.reviews = reviews.New(reviews.Options{
		Store:    r.store,
		Sessions: r.sessions,
		Notifier: r.notifier,
		Logger:   r.logger,
	})
	r.engine = tasks.NewEngine(r.catalog, r.watchlist, r.reviews)
	r.ready = true
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
