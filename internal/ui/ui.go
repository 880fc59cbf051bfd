package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/notify"
	"github.com/desertthunder/marquee/internal/tasks"
	"github.com/desertthunder/marquee/internal/watchlist"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	MovieListView
	DetailView
	ComposeView
)

// Catalog is what the TUI reads from the catalog cache.
type Catalog interface {
	Movies() []models.DisplayMovie
	Get(id string) (models.DisplayMovie, bool)
	Refetch(ctx context.Context) error
}

// Watchlist is what the TUI needs from the watchlist synchronizer.
type Watchlist interface {
	Identity() models.Identity
	IsMember(movieID string) bool
	Add(ctx context.Context, movieID string) bool
	Remove(ctx context.Context, movieID string) bool
	Subscribe(fn func(watchlist.State)) (unsubscribe func())
}

// Reviews is what the TUI needs from the reviews service.
type Reviews interface {
	ListForMovie(ctx context.Context, movieID string) ([]models.Review, error)
	Submit(ctx context.Context, movieID string, rating int, body string) (models.Review, error)
	MarkHelpful(ctx context.Context, reviewID string) error
}

// Network reports whether the backend was reachable on the last request.
type Network interface {
	Online() bool
}

// Deps wires the TUI to the rest of the application. Notes should be the
// channel behind the [ChannelSink] given to every component.
type Deps struct {
	Engine    *tasks.Engine
	Catalog   Catalog
	Watchlist Watchlist
	Reviews   Reviews
	Network   Network
	Notes     <-chan notify.Notification
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	view ViewState

	width  int
	height int

	movieList     list.Model
	watchlistOnly bool
	selected      models.DisplayMovie
	reviewList    list.Model

	compose textinput.Model
	rating  int

	progressChan chan tasks.ProgressUpdate
	warmupDone   *warmupResult
	progress     tasks.ProgressUpdate
	warmup       *tasks.WarmupResult

	states      chan watchlist.State
	unsubscribe func()
	note        *notify.Notification
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	m := &Model{
		ctx:    ctx,
		deps:   deps,
		view:   LoadingView,
		rating: models.MaxRating,
		states: make(chan watchlist.State, 1),
		help:   help.New(),
		keys:   newKeyMap(),
	}

	m.movieList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.movieList.Title = "Movies"
	m.reviewList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.reviewList.Title = "Reviews"
	m.reviewList.SetFilteringEnabled(false)

	m.compose = textinput.New()
	m.compose.Placeholder = "Share your thoughts about this movie..."
	m.compose.CharLimit = 1000

	if deps.Watchlist != nil {
		m.unsubscribe = deps.Watchlist.Subscribe(m.offerState)
	}
	return m
}

// offerState keeps only the newest state in the buffer, replacing one the UI
// has not read yet.
func (m *Model) offerState(st watchlist.State) {
	for {
		select {
		case m.states <- st:
			return
		default:
		}
		select {
		case <-m.states:
		default:
		}
	}
}

// Close releases the watchlist subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init starts the warm-up and begins listening for notifications and watchlist changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startWarmup(), m.waitForNote(), m.waitForState())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.movieList.SetSize(msg.Width-4, msg.Height-8)
		m.reviewList.SetSize(msg.Width-4, max(msg.Height-16, 4))
		m.compose.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case MovieListView:
			return m.handleMovieListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ComposeView:
			return m.handleComposeKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgWarmupComplete:
		res := msg.data.(warmupResult)
		m.warmup = res.result
		m.progressChan, m.warmupDone = nil, nil
		if res.err != nil {
			m.err = res.err
		}
		m.view = MovieListView
		return m, m.refreshMovies()

	case MsgReviewsFetched:
		res := msg.data.(reviewsResult)
		if res.movieID != m.selected.ID {
			return m, nil
		}
		if res.err != nil {
			m.note = &notify.Notification{Title: "Error", Description: res.err.Error(), Severity: notify.SeverityError}
			return m, nil
		}
		items := make([]list.Item, len(res.reviews))
		for i, r := range res.reviews {
			items[i] = reviewItem{review: r}
		}
		return m, m.reviewList.SetItems(items)

	case MsgNotification:
		n := msg.data.(notify.Notification)
		m.note = &n
		return m, m.waitForNote()

	case MsgWatchlistChanged:
		return m, tea.Batch(m.refreshMovies(), m.waitForState())

	case MsgActionDone:
		if movieID, _ := msg.data.(string); movieID != "" && movieID == m.selected.ID {
			return m, m.fetchReviews(movieID)
		}
		return m, m.refreshMovies()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case LoadingView:
		body = m.renderLoading()
	case MovieListView:
		body = m.renderMovieList()
	case DetailView:
		body = m.renderDetail()
	case ComposeView:
		body = m.renderCompose()
	}
	return m.renderOffline() + body + m.renderNote()
}

func (m *Model) handleMovieListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.movieList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.movieList, cmd = m.movieList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		m.watchlistOnly = !m.watchlistOnly
		return m, m.refreshMovies()
	case key.Matches(msg, m.keys.refresh):
		return m, m.refetchCatalog()
	case key.Matches(msg, m.keys.watchlist):
		if it, ok := m.movieList.SelectedItem().(movieItem); ok {
			return m, m.toggleWatchlist(it.movie.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if it, ok := m.movieList.SelectedItem().(movieItem); ok {
			m.selected = it.movie
			m.view = DetailView
			m.reviewList.SetItems(nil)
			return m, m.fetchReviews(it.movie.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.movieList, cmd = m.movieList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = MovieListView
		return m, nil
	case key.Matches(msg, m.keys.watchlist):
		return m, m.toggleWatchlist(m.selected.ID)
	case key.Matches(msg, m.keys.review):
		m.view = ComposeView
		m.rating = models.MaxRating
		m.compose.SetValue("")
		return m, m.compose.Focus()
	case key.Matches(msg, m.keys.helpful):
		if it, ok := m.reviewList.SelectedItem().(reviewItem); ok {
			return m, m.markHelpful(it.review.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.reviewList, cmd = m.reviewList.Update(msg)
	return m, cmd
}

func (m *Model) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.compose.Blur()
		m.view = DetailView
		return m, nil
	case "enter":
		m.compose.Blur()
		m.view = DetailView
		return m, m.submitReview(m.selected.ID, m.rating, m.compose.Value())
	case "right", "+":
		m.rating = min(m.rating+1, models.MaxRating)
		return m, nil
	case "left", "-":
		m.rating = max(m.rating-1, models.MinRating)
		return m, nil
	}

	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case MovieListView:
		m.movieList, cmd = m.movieList.Update(msg)
	case DetailView:
		m.reviewList, cmd = m.reviewList.Update(msg)
	case ComposeView:
		m.compose, cmd = m.compose.Update(msg)
	}
	return m, cmd
}

// refreshMovies rebuilds the movie list from the catalog and the current watchlist.
func (m *Model) refreshMovies() tea.Cmd {
	if m.deps.Catalog == nil {
		return nil
	}

	var items []list.Item
	for _, mv := range m.deps.Catalog.Movies() {
		listed := m.deps.Watchlist != nil && m.deps.Watchlist.IsMember(mv.ID)
		if m.watchlistOnly && !listed {
			continue
		}
		items = append(items, movieItem{movie: mv, listed: listed})
	}

	if m.watchlistOnly {
		m.movieList.Title = "My Watchlist"
	} else {
		m.movieList.Title = "Movies"
	}
	return m.movieList.SetItems(items)
}

func (m *Model) startWarmup() tea.Cmd {
	if m.deps.Engine == nil {
		return func() tea.Msg { return warmupCompleteMsg(nil, nil) }
	}

	ch := make(chan tasks.ProgressUpdate, 16)
	m.progressChan = ch
	m.warmupDone = &warmupResult{}

	go func(out *warmupResult) {
		out.result, out.err = m.deps.Engine.Warmup(m.ctx, ch)
		close(ch)
	}(m.warmupDone)

	return m.waitForProgress()
}

// waitForProgress reads one update. A closed channel means the warm-up has
// returned and its result is ready.
func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.warmupDone
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return warmupCompleteMsg(done.result, done.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) waitForNote() tea.Cmd {
	if m.deps.Notes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-m.deps.Notes:
			return notificationMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForState() tea.Cmd {
	if m.deps.Watchlist == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case st := <-m.states:
			return watchlistChangedMsg(st)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) fetchReviews(movieID string) tea.Cmd {
	if m.deps.Reviews == nil {
		return nil
	}
	return func() tea.Msg {
		reviews, err := m.deps.Reviews.ListForMovie(m.ctx, movieID)
		return reviewsFetchedMsg(movieID, reviews, err)
	}
}

func (m *Model) refetchCatalog() tea.Cmd {
	if m.deps.Catalog == nil {
		return nil
	}
	return func() tea.Msg {
		_ = m.deps.Catalog.Refetch(m.ctx)
		return actionDoneMsg("")
	}
}

// toggleWatchlist adds or removes a movie. Outcomes are reported through notifications.
func (m *Model) toggleWatchlist(movieID string) tea.Cmd {
	if m.deps.Watchlist == nil {
		return nil
	}
	w := m.deps.Watchlist
	return func() tea.Msg {
		if w.IsMember(movieID) {
			w.Remove(m.ctx, movieID)
		} else {
			w.Add(m.ctx, movieID)
		}
		return actionDoneMsg("")
	}
}

func (m *Model) submitReview(movieID string, rating int, body string) tea.Cmd {
	if m.deps.Reviews == nil {
		return nil
	}
	return func() tea.Msg {
		_, _ = m.deps.Reviews.Submit(m.ctx, movieID, rating, body)
		return actionDoneMsg(movieID)
	}
}

func (m *Model) markHelpful(reviewID string) tea.Cmd {
	if m.deps.Reviews == nil {
		return nil
	}
	movieID := m.selected.ID
	return func() tea.Msg {
		_ = m.deps.Reviews.MarkHelpful(m.ctx, reviewID)
		return actionDoneMsg(movieID)
	}
}

func (m *Model) renderLoading() string {
	title := styles.title.Render("marquee")
	msg := m.progress.Message
	if msg == "" {
		msg = "Starting..."
	}
	return fmt.Sprintf("%s\n\n%s\n", title, msg)
}

func (m *Model) renderMovieList() string {
	var banner string
	if m.err != nil {
		banner = styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}
	if m.deps.Watchlist != nil && m.deps.Watchlist.Identity().IsZero() {
		banner += styles.help.Render("Not signed in. Run `marquee auth login` to use your watchlist.") + "\n"
	}
	if m.watchlistOnly && m.warmup != nil && len(m.warmup.Missing) > 0 {
		banner += styles.warn.Render(fmt.Sprintf("%d watchlist entries are no longer in the catalog", len(m.warmup.Missing))) + "\n"
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.tab, m.keys.watchlist, m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", banner, m.movieList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	mv := m.selected
	title := styles.title.Render(fmt.Sprintf("%s (%d)", mv.Title, mv.Year))

	var b strings.Builder
	fmt.Fprintf(&b, "★ %.1f • %s • %s\n", mv.Rating, mv.Genre, mv.Duration)
	if mv.Director != "" {
		fmt.Fprintf(&b, "Directed by %s\n", mv.Director)
	}
	if mv.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", mv.Description)
	}
	if m.deps.Watchlist != nil && m.deps.Watchlist.IsMember(mv.ID) {
		b.WriteString("\n" + styles.ok.Render("✓ In your watchlist") + "\n")
	}

	helpKeys := []key.Binding{m.keys.watchlist, m.keys.review, m.keys.helpful, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, b.String(), m.reviewList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderCompose() string {
	title := styles.title.Render(fmt.Sprintf("Review %s", m.selected.Title))
	stars := strings.Repeat("★", m.rating) + strings.Repeat("☆", models.MaxRating-m.rating)

	submit := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit"))
	helpKeys := []key.Binding{m.keys.rateDown, m.keys.rateUp, submit, m.keys.back}
	return fmt.Sprintf("%s\nRating: %s\n\n%s\n\n%s", title, stars, m.compose.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderOffline() string {
	if m.deps.Network == nil || m.deps.Network.Online() {
		return ""
	}
	return styles.warn.Render("You're offline. Changes will fail until the connection is back.") + "\n"
}

func (m *Model) renderNote() string {
	if m.note == nil {
		return ""
	}
	line := m.note.Title
	if m.note.Description != "" {
		line += ": " + m.note.Description
	}
	return "\n" + styles.For(m.note.Severity).Render(line)
}
