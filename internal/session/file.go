package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"

	"github.com/desertthunder/marquee/internal/shared"
)

// FileStore persists a [Session] as JSON on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a [FileStore] at path, expanding a leading "~".
func NewFileStore(path string) *FileStore {
	return &FileStore{path: shared.ExpandPath(path)}
}

// Path returns the session file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the saved session. A missing file yields [shared.ErrNotAuthenticated].
func (f *FileStore) Load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, shared.ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("%w: session file: %v", shared.ErrInvalidConfig, err)
	}
	if !s.Valid() {
		return Session{}, shared.ErrNotAuthenticated
	}
	return s, nil
}

// Save writes the session atomically with owner-only permissions.
func (f *FileStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := renameio.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Restore loads the saved session into p, if any.
func (f *FileStore) Restore(p *Provider) error {
	s, err := f.Load()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	p.SignIn(s)
	return nil
}

// watchDebounce coalesces the burst of events a single atomic write produces.
var watchDebounce = 100 * time.Millisecond

// Watch mirrors the session file into p until ctx is done, so a login or logout
// from another process reaches this one. The parent directory is watched because
// atomic writes replace the file.
func (f *FileStore) Watch(ctx context.Context, p *Provider, logger *log.Logger) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch session directory: %w", err)
	}

	go f.watchLoop(ctx, watcher, p, logger)
	return nil
}

func (f *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, p *Provider, logger *log.Logger) {
	defer watcher.Close()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	name := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("session watcher error", "error", err)
		case <-timer.C:
			f.reload(p, logger)
		}
	}
}

func (f *FileStore) reload(p *Provider, logger *log.Logger) {
	s, err := f.Load()
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		logger.Debug("session file cleared", "path", f.path)
		p.SignOut()
	case err != nil:
		logger.Warn("failed to reload session", "error", err)
	default:
		logger.Debug("session file changed", "user", s.UserID)
		p.SignIn(s)
	}
}
