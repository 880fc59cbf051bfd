package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}

func TestProvider(t *testing.T) {
	t.Run("starts signed out", func(t *testing.T) {
		p := NewProvider()
		_, ok := p.Current()
		assert.False(t, ok)
		assert.False(t, p.IsAuthenticated())
		assert.Empty(t, p.AccessToken())

		_, err := p.Token()
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("sign in and out notify subscribers", func(t *testing.T) {
		p := NewProvider()
		var got []models.Identity
		unsubscribe := p.Subscribe(func(id models.Identity) { got = append(got, id) })

		p.SignIn(Session{UserID: "u1", AccessToken: "a"})
		p.SignIn(Session{UserID: "u1", AccessToken: "b"})
		p.SignIn(Session{UserID: "u2", AccessToken: "c"})
		p.SignOut()

		assert.Equal(t, []models.Identity{"u1", "u2", ""}, got)

		unsubscribe()
		unsubscribe()
		p.SignIn(Session{UserID: "u3", AccessToken: "d"})
		assert.Len(t, got, 3)
	})

	t.Run("token refresh is silent but visible", func(t *testing.T) {
		p := NewProvider()
		calls := 0
		p.Subscribe(func(models.Identity) { calls++ })

		p.SignIn(Session{UserID: "u1", AccessToken: "old"})
		p.SignIn(Session{UserID: "u1", AccessToken: "new"})

		assert.Equal(t, 1, calls)
		assert.Equal(t, "new", p.AccessToken())

		tok, err := p.Token()
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
		assert.Equal(t, "Bearer", tok.TokenType)
	})

	t.Run("identity without token is not authenticated", func(t *testing.T) {
		p := NewProvider()
		p.SignIn(Session{UserID: "u1"})

		id, ok := p.Current()
		assert.True(t, ok)
		assert.Equal(t, models.Identity("u1"), id)
		assert.False(t, p.IsAuthenticated())
	})

	t.Run("subscribers may read the provider", func(t *testing.T) {
		p := NewProvider()
		var seen models.Identity
		p.Subscribe(func(models.Identity) { seen, _ = p.Current() })

		p.SignIn(Session{UserID: "u1", AccessToken: "a"})
		assert.Equal(t, models.Identity("u1"), seen)
	})

	t.Run("concurrent access", func(t *testing.T) {
		p := NewProvider()
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					p.SignIn(Session{UserID: "u1", AccessToken: "a"})
				} else {
					p.SignOut()
				}
			}()
			go func() {
				defer wg.Done()
				p.Current()
				p.IsAuthenticated()
			}()
		}
		wg.Wait()
	})
}

func TestJWT(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token := func(t *testing.T, exp time.Time) string {
		return signToken(t, Claims{
			Email: "ada@example.com",
			Role:  "authenticated",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u1",
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		})
	}

	t.Run("decode ignores signature and expiry", func(t *testing.T) {
		freezeTime(t, now)
		claims, err := DecodeToken(token(t, now.Add(-time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "ada@example.com", claims.Email)
	})

	t.Run("decode rejects garbage", func(t *testing.T) {
		_, err := DecodeToken("not-a-token")
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	})

	t.Run("expiry", func(t *testing.T) {
		freezeTime(t, now)

		assert.False(t, IsExpired(token(t, now.Add(time.Hour))))
		assert.True(t, IsExpired(token(t, now.Add(-time.Second))))
		assert.True(t, IsExpired("garbage"))

		assert.Equal(t, time.Hour, TimeUntilExpiry(token(t, now.Add(time.Hour))))
		assert.Negative(t, TimeUntilExpiry(token(t, now.Add(-time.Minute))))
		assert.Equal(t, -time.Millisecond, TimeUntilExpiry("garbage"))
	})

	t.Run("needs refresh within five minutes", func(t *testing.T) {
		freezeTime(t, now)

		assert.True(t, NeedsRefresh(token(t, now.Add(4*time.Minute))))
		assert.False(t, NeedsRefresh(token(t, now.Add(10*time.Minute))))
		assert.False(t, NeedsRefresh(token(t, now.Add(-time.Minute))))
	})

	t.Run("extract user info", func(t *testing.T) {
		info, err := ExtractUserInfo(token(t, now.Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, UserInfo{
			UserID:    "u1",
			Email:     "ada@example.com",
			Role:      "authenticated",
			IssuedAt:  now.Add(-time.Hour),
			ExpiresAt: now.Add(time.Hour),
		}, UserInfo{
			UserID:    info.UserID,
			Email:     info.Email,
			Role:      info.Role,
			IssuedAt:  info.IssuedAt.UTC(),
			ExpiresAt: info.ExpiresAt.UTC(),
		})
	})

	t.Run("valid format", func(t *testing.T) {
		assert.True(t, IsValidFormat(token(t, now)))
		assert.False(t, IsValidFormat(""))
		assert.False(t, IsValidFormat("a.b"))
		assert.False(t, IsValidFormat("a..c"))
		assert.False(t, IsValidFormat("a.b$.c"))
	})
}

func TestFileStore(t *testing.T) {
	t.Run("save load clear", func(t *testing.T) {
		fs := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
		want := Session{UserID: "u1", Email: "ada@example.com", AccessToken: "tok", RefreshToken: "ref"}

		require.NoError(t, fs.Save(want))

		info, err := os.Stat(fs.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		got, err := fs.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		require.NoError(t, fs.Clear())
		require.NoError(t, fs.Clear())

		_, err = fs.Load()
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := NewFileStore(path).Load()
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("restore into provider", func(t *testing.T) {
		fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		p := NewProvider()

		require.NoError(t, fs.Restore(p))
		assert.False(t, p.IsAuthenticated())

		require.NoError(t, fs.Save(Session{UserID: "u1", AccessToken: "tok"}))
		require.NoError(t, fs.Restore(p))
		assert.True(t, p.IsAuthenticated())
	})
}

func TestWatch(t *testing.T) {
	prev := watchDebounce
	watchDebounce = 10 * time.Millisecond
	t.Cleanup(func() { watchDebounce = prev })

	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	p := NewProvider()

	changes := make(chan models.Identity, 4)
	p.Subscribe(func(id models.Identity) { changes <- id })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fs.Watch(ctx, p, log.New(os.Stderr)))

	wait := func() models.Identity {
		select {
		case id := <-changes:
			return id
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for session change")
			return ""
		}
	}

	require.NoError(t, fs.Save(Session{UserID: "u1", AccessToken: "tok"}))
	assert.Equal(t, models.Identity("u1"), wait())

	require.NoError(t, fs.Clear())
	assert.Equal(t, models.Identity(""), wait())
}

func TestSessionValid(t *testing.T) {
	assert.True(t, Session{UserID: "u1", AccessToken: "t"}.Valid())
	assert.False(t, Session{UserID: "u1"}.Valid())
	assert.False(t, Session{AccessToken: "t"}.Valid())
}
