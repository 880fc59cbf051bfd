// Package watchlist keeps the signed-in user's watchlist membership in sync with the remote store.
//
// A [Synchronizer] owns the set of movie ids confirmed by the store for the current
// identity. It fetches that set when a session appears (retrying transient failures),
// applies add and remove requests only after the store accepts them, and reports
// every terminal outcome to a [notify.Sink]. Results that arrive after the identity
// changed are dropped.
package watchlist

import (
	"context"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/metrics"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/store"
)

// Phase is the synchronizer's position in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseReady
	PhaseMutating
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseReady:
		return "ready"
	case PhaseMutating:
		return "mutating"
	default:
		return "idle"
	}
}

// Operation labels.
const (
	OpFetch  = "fetch"
	OpAdd    = "add"
	OpRemove = "remove"
)

// ErrorDescriptor describes the last failed remote operation.
type ErrorDescriptor struct {
	Op      string
	MovieID string
	Kind    store.ErrorKind
	Message string
	Err     error
}

// State is a point-in-time copy of the synchronizer.
type State struct {
	Identity models.Identity
	Items    []string
	Pending  []string
	Loading  bool
	Error    *ErrorDescriptor
	Phase    Phase
}

// IdentitySource supplies the current identity and reports changes.
type IdentitySource interface {
	Current() (models.Identity, bool)
	Subscribe(fn func(models.Identity)) (unsubscribe func())
}

// Defaults for [Options].
const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = time.Second
)

// Options configures a [Synchronizer]. Store is required.
type Options struct {
	Store    store.Store
	Network  *shared.NetworkStatus
	Notifier notify.Sink
	Logger   *log.Logger

	// RetryAttempts is the total number of fetch attempts, the first included.
	RetryAttempts uint
	// RetryBaseDelay is multiplied by the attempt number before each retry.
	RetryBaseDelay time.Duration
}

// Synchronizer is the watchlist membership cache for one identity at a time.
//
// All state transitions happen under mu; store calls never do. Each identity
// gets a generation number and a gate: mutations hold the gate shared, fetches
// hold it exclusively, so a fetch never interleaves with a write of the same user.
type Synchronizer struct {
	store     store.Store
	network   *shared.NetworkStatus
	notifier  notify.Sink
	logger    *log.Logger
	attempts  uint
	baseDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	identity    models.Identity
	generation  uint64
	fetchSeq    uint64
	gate        *sync.RWMutex
	items       map[string]struct{}
	pending     map[string]struct{}
	fetching    bool
	mutating    int
	lastErr     *ErrorDescriptor
	cancelFetch context.CancelFunc
	current     *fetchRun

	publishMu sync.Mutex
	subMu     sync.Mutex
	subs      map[int]func(State)
	nextSub   int
}

// New creates an idle [Synchronizer].
func New(opts Options) *Synchronizer {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		store:     opts.Store,
		network:   opts.Network,
		notifier:  opts.Notifier,
		logger:    shared.WithLogger(opts.Logger, "component", "watchlist"),
		attempts:  opts.RetryAttempts,
		baseDelay: opts.RetryBaseDelay,
		ctx:       ctx,
		cancel:    cancel,
		gate:      &sync.RWMutex{},
		items:     make(map[string]struct{}),
		pending:   make(map[string]struct{}),
		subs:      make(map[int]func(State)),
	}
}

// SetIdentity switches the synchronizer to id. Any state for the previous identity
// is discarded and its outstanding fetch is canceled. A non-empty id starts a
// background fetch; the empty identity means signed out.
func (s *Synchronizer) SetIdentity(id models.Identity) {
	s.mu.Lock()
	if s.closed || id == s.identity {
		s.mu.Unlock()
		return
	}

	prev := s.identity
	s.resetLocked(id)

	var run *fetchRun
	if !id.IsZero() {
		run = s.beginFetchLocked(s.ctx)
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.logger.Debug("identity changed", "from", prev, "to", id)
	metrics.SetWatchlistItems(0)
	s.publish()

	if run != nil {
		go func() {
			defer s.wg.Done()
			s.runFetch(run)
		}()
	}
}

func (s *Synchronizer) resetLocked(id models.Identity) {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.identity = id
	s.generation++
	s.gate = &sync.RWMutex{}
	s.items = make(map[string]struct{})
	s.pending = make(map[string]struct{})
	s.fetching = false
	s.current = nil
	s.mutating = 0
	s.lastErr = nil
}

// Bind follows src: the current identity is applied now and every later change as it happens.
func (s *Synchronizer) Bind(src IdentitySource) (unbind func()) {
	unsubscribe := src.Subscribe(s.SetIdentity)
	id, _ := src.Current()
	s.SetIdentity(id)
	return unsubscribe
}

type fetchRun struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     models.Identity
	gen    uint64
	seq    uint64
	gate   *sync.RWMutex

	// done is closed when the run finishes; applied is set before that.
	done    chan struct{}
	applied bool
}

func (s *Synchronizer) beginFetchLocked(parent context.Context) *fetchRun {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	s.fetchSeq++
	s.fetching = true
	s.cancelFetch = cancel

	s.current = &fetchRun{
		ctx:    ctx,
		cancel: func() { stop(); cancel() },
		id:     s.identity,
		gen:    s.generation,
		seq:    s.fetchSeq,
		gate:   s.gate,
		done:   make(chan struct{}),
	}
	return s.current
}

// Fetch reloads the membership for the current identity and reports whether the
// result was applied. It supersedes any fetch already in flight.
func (s *Synchronizer) Fetch(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.identity.IsZero() {
		s.mu.Unlock()
		return false
	}
	run := s.beginFetchLocked(ctx)
	s.mu.Unlock()

	s.publish()
	return s.runFetch(run)
}

// Load makes sure the membership for the current identity has been read. It
// joins a fetch already in flight, such as the one started by [Synchronizer.SetIdentity],
// and only starts a new one when nothing is loading.
func (s *Synchronizer) Load(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.identity.IsZero() {
		s.mu.Unlock()
		return false
	}
	run := s.current
	if !s.fetching || run == nil {
		s.mu.Unlock()
		return s.Fetch(ctx)
	}
	s.mu.Unlock()

	select {
	case <-run.done:
		return run.applied
	case <-ctx.Done():
		return false
	}
}

func (s *Synchronizer) runFetch(run *fetchRun) (applied bool) {
	defer func() {
		run.applied = applied
		run.cancel()
		close(run.done)
	}()

	run.gate.Lock()
	rows, err := s.selectWithRetry(run.ctx, run.id)
	run.gate.Unlock()

	s.mu.Lock()
	if run.gen != s.generation || run.seq != s.fetchSeq {
		s.mu.Unlock()
		metrics.RecordFetch(metrics.OutcomeSuperseded)
		s.logger.Debug("discarding superseded fetch", "user", run.id)
		return false
	}

	s.fetching = false
	s.cancelFetch = nil
	s.current = nil
	if store.KindOf(err) == store.KindCanceled {
		s.mu.Unlock()
		s.logger.Debug("watchlist fetch canceled", "user", run.id)
		s.publish()
		return false
	}
	if err != nil {
		s.lastErr = &ErrorDescriptor{Op: OpFetch, Kind: store.KindOf(err), Message: DescFetchFailed, Err: err}
		s.mu.Unlock()

		metrics.RecordFetch(metrics.OutcomeFailure)
		s.logger.Error("failed to load watchlist", "user", run.id, "error", err)
		s.publish()
		s.notifier.Notify(failure(DescFetchFailed))
		return false
	}

	items := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if movieID := row.String("movie_id"); movieID != "" {
			items[movieID] = struct{}{}
		}
	}
	s.items = items
	s.lastErr = nil
	n := len(items)
	s.mu.Unlock()

	metrics.SetWatchlistItems(n)
	s.logger.Debug("watchlist loaded", "user", run.id, "items", n)
	s.publish()
	return true
}

// selectWithRetry makes up to s.attempts attempts, waiting attempt × baseDelay
// between them. Only retryable failures are retried.
func (s *Synchronizer) selectWithRetry(ctx context.Context, id models.Identity) ([]store.Row, error) {
	var attempt uint
	return retry.DoWithData(
		func() ([]store.Row, error) {
			attempt++
			rows, err := s.store.Select(ctx, store.WatchlistEntries, store.Where("user_id", string(id)))
			if err == nil {
				metrics.RecordFetch(metrics.OutcomeSuccess)
				return rows, nil
			}
			if attempt < s.attempts && s.retryable(err) {
				metrics.RecordFetch(metrics.OutcomeRetry)
				s.logger.Warn("watchlist fetch failed, retrying", "user", id, "attempt", attempt, "error", err)
			}
			return nil, err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(s.retryable),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration {
			return time.Duration(attempt) * s.baseDelay
		}),
	)
}

// retryable reports whether a fetch failure is transient: the store asked for a
// re-read, or the client is offline right now.
func (s *Synchronizer) retryable(err error) bool {
	switch store.KindOf(err) {
	case store.KindCanceled:
		return false
	case store.KindStaleRead:
		return true
	default:
		return !s.network.Online()
	}
}

// IsMember reports whether movieID is in the confirmed membership set.
func (s *Synchronizer) IsMember(movieID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[movieID]
	return ok
}

// mutation is the context captured when an add or remove is accepted locally.
type mutation struct {
	op      string
	id      models.Identity
	gen     uint64
	gate    *sync.RWMutex
	movieID string
}

// Add inserts movieID into the current user's watchlist. The local set changes
// only after the store confirms the write.
func (s *Synchronizer) Add(ctx context.Context, movieID string) bool {
	s.mu.Lock()
	var reject *notify.Notification
	switch {
	case s.identity.IsZero():
		reject = &msgSignInRequired
	case shared.IsBlank(movieID):
		reject = &msgInvalidMovie
	case s.hasLocked(movieID):
		reject = &msgAlreadyListed
	case s.isPendingLocked(movieID):
		reject = &msgInProgress
	}
	if reject != nil {
		s.mu.Unlock()
		metrics.RecordMutation(OpAdd, metrics.OutcomeRejected)
		s.notifier.Notify(*reject)
		return false
	}
	m := s.beginMutationLocked(OpAdd, movieID)
	s.mu.Unlock()
	s.publish()

	m.gate.RLock()
	err := s.store.Insert(ctx, store.WatchlistEntries, store.Row{"user_id": string(m.id), "movie_id": movieID})
	m.gate.RUnlock()

	if err == nil {
		if !s.finishMutation(m, func() { s.items[movieID] = struct{}{}; s.lastErr = nil }) {
			return true
		}
		metrics.RecordMutation(OpAdd, metrics.OutcomeSuccess)
		s.logger.Info("added to watchlist", "user", m.id, "movie", movieID)
		s.notifier.Notify(msgAdded)
		return true
	}

	kind := store.KindOf(err)
	var (
		desc     string
		outcome  string
		business bool
	)
	switch {
	case kind == store.KindUniqueViolation:
		desc, outcome, business = DescDuplicate, metrics.OutcomeDuplicate, true
	case kind == store.KindForeignKeyViolation:
		desc, outcome, business = DescMovieNotFound, metrics.OutcomeNotFound, true
	case !s.network.Online():
		desc, outcome = DescOffline, metrics.OutcomeOffline
	default:
		desc, outcome = DescAddFailed, metrics.OutcomeFailure
	}

	applied := s.finishMutation(m, func() {
		if !business {
			s.lastErr = &ErrorDescriptor{Op: OpAdd, MovieID: movieID, Kind: kind, Message: desc, Err: err}
		}
	})
	if !applied {
		return false
	}

	metrics.RecordMutation(OpAdd, outcome)
	if business {
		s.logger.Info("add rejected by store", "user", m.id, "movie", movieID, "kind", kind)
	} else {
		s.logger.Error("failed to add to watchlist", "user", m.id, "movie", movieID, "error", err)
	}
	s.notifier.Notify(failure(desc))
	return false
}

// Remove deletes movieID from the current user's watchlist. Removing a movie that
// is not listed succeeds. Without a session it does nothing and returns false.
func (s *Synchronizer) Remove(ctx context.Context, movieID string) bool {
	s.mu.Lock()
	if s.identity.IsZero() {
		s.mu.Unlock()
		metrics.RecordMutation(OpRemove, metrics.OutcomeRejected)
		return false
	}
	if s.isPendingLocked(movieID) {
		s.mu.Unlock()
		metrics.RecordMutation(OpRemove, metrics.OutcomeRejected)
		s.notifier.Notify(msgInProgress)
		return false
	}
	m := s.beginMutationLocked(OpRemove, movieID)
	s.mu.Unlock()
	s.publish()

	m.gate.RLock()
	err := s.store.Delete(ctx, store.WatchlistEntries, store.Where("user_id", string(m.id)).And("movie_id", movieID))
	m.gate.RUnlock()

	if err == nil {
		if !s.finishMutation(m, func() { delete(s.items, movieID); s.lastErr = nil }) {
			return true
		}
		metrics.RecordMutation(OpRemove, metrics.OutcomeSuccess)
		s.logger.Info("removed from watchlist", "user", m.id, "movie", movieID)
		s.notifier.Notify(msgRemoved)
		return true
	}

	desc, outcome := DescRemoveFailed, metrics.OutcomeFailure
	if !s.network.Online() {
		desc, outcome = DescOffline, metrics.OutcomeOffline
	}

	applied := s.finishMutation(m, func() {
		s.lastErr = &ErrorDescriptor{Op: OpRemove, MovieID: movieID, Kind: store.KindOf(err), Message: desc, Err: err}
	})
	if !applied {
		return false
	}

	metrics.RecordMutation(OpRemove, outcome)
	s.logger.Error("failed to remove from watchlist", "user", m.id, "movie", movieID, "error", err)
	s.notifier.Notify(failure(desc))
	return false
}

func (s *Synchronizer) hasLocked(movieID string) bool {
	_, ok := s.items[movieID]
	return ok
}

func (s *Synchronizer) isPendingLocked(movieID string) bool {
	_, ok := s.pending[movieID]
	return ok
}

func (s *Synchronizer) beginMutationLocked(op, movieID string) mutation {
	s.pending[movieID] = struct{}{}
	s.mutating++
	return mutation{op: op, id: s.identity, gen: s.generation, gate: s.gate, movieID: movieID}
}

// finishMutation clears the pending marker and runs apply under the lock, unless
// the identity changed while the request was out. It reports whether apply ran.
func (s *Synchronizer) finishMutation(m mutation, apply func()) bool {
	s.mu.Lock()
	if m.gen != s.generation {
		s.mu.Unlock()
		metrics.RecordMutation(m.op, metrics.OutcomeSuperseded)
		s.logger.Debug("discarding superseded mutation", "user", m.id, "movie", m.movieID)
		return false
	}
	delete(s.pending, m.movieID)
	s.mutating--
	apply()
	n := len(s.items)
	s.mu.Unlock()

	metrics.SetWatchlistItems(n)
	s.publish()
	return true
}

// Identity returns the identity the synchronizer currently serves.
func (s *Synchronizer) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Items returns the confirmed membership, sorted.
func (s *Synchronizer) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.items))
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() State {
	st := State{
		Identity: s.identity,
		Items:    slices.Sorted(maps.Keys(s.items)),
		Pending:  slices.Sorted(maps.Keys(s.pending)),
		Loading:  s.fetching || s.mutating > 0,
		Phase:    s.phaseLocked(),
	}
	if s.lastErr != nil {
		e := *s.lastErr
		st.Error = &e
	}
	return st
}

func (s *Synchronizer) phaseLocked() Phase {
	switch {
	case s.identity.IsZero():
		return PhaseIdle
	case s.fetching:
		return PhaseFetching
	case s.mutating > 0:
		return PhaseMutating
	default:
		return PhaseReady
	}
}

// ResetError clears the last error.
func (s *Synchronizer) ResetError() {
	s.mu.Lock()
	changed := s.lastErr != nil
	s.lastErr = nil
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// Subscribe registers fn to receive a [State] after every transition. Calls are
// serialized; fn must not call back into methods that change state.
func (s *Synchronizer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Synchronizer) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	ids := slices.Sorted(maps.Keys(s.subs))
	fns := make([]func(State), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.subMu.Unlock()

	st := s.Snapshot()
	for _, fn := range fns {
		fn(st)
	}
}

// Wait blocks until every background fetch has finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Close cancels background fetches and waits for them. The synchronizer ignores
// identity changes afterwards.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
