// Package session holds the signed-in user and tells interested parties when it changes.
package session

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// Session is an authenticated user plus the tokens the backend issued.
type Session struct {
	UserID       models.Identity `json:"user_id"`
	Email        string          `json:"email,omitempty"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at,omitzero"`
}

// Valid reports whether both an identity and an access token are present.
func (s Session) Valid() bool {
	return !s.UserID.IsZero() && s.AccessToken != ""
}

// Provider owns the current [Session]. Subscribers hear about identity changes only;
// a token refresh for the same user is silent.
type Provider struct {
	mu      sync.RWMutex
	current Session
	subs    map[int]func(models.Identity)
	nextSub int
}

// NewProvider returns a provider with no session.
func NewProvider() *Provider {
	return &Provider{subs: make(map[int]func(models.Identity))}
}

// Current returns the signed-in identity and whether there is one.
func (p *Provider) Current() (models.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.UserID, !p.current.UserID.IsZero()
}

// Session returns a copy of the current session.
func (p *Provider) Session() (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current.Valid()
}

// IsAuthenticated reports whether a user and an access token are both present.
func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Valid()
}

// AccessToken returns the current bearer token or "".
func (p *Provider) AccessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.AccessToken
}

// Token implements [oauth2.TokenSource].
func (p *Provider) Token() (*oauth2.Token, error) {
	s, ok := p.Session()
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, TokenType: "Bearer", Expiry: s.ExpiresAt}, nil
}

// SignIn replaces the session.
func (p *Provider) SignIn(s Session) {
	p.set(s)
}

// SignOut clears the session.
func (p *Provider) SignOut() {
	p.set(Session{})
}

func (p *Provider) set(s Session) {
	p.mu.Lock()
	changed := p.current.UserID != s.UserID
	p.current = s
	var fns []func(models.Identity)
	if changed {
		fns = p.subscribersLocked()
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(s.UserID)
	}
}

// Subscribe registers fn for identity changes. The empty identity means sign-out.
// Callbacks run synchronously on the goroutine that changed the session.
func (p *Provider) Subscribe(fn func(models.Identity)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) subscribersLocked() []func(models.Identity) {
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(models.Identity), len(ids))
	for i, id := range ids {
		fns[i] = p.subs[id]
	}
	return fns
}
