package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
)

// Authenticator issues and revokes sessions.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (session.Session, error)
	SignIn(ctx context.Context, email, password string) (session.Session, error)
	Refresh(ctx context.Context, refreshToken string) (session.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

const localTokenTTL = 30 * 24 * time.Hour

// localAuth stands in for the auth server when the backend is a local database.
// Each email maps to a fixed identity and tokens are signed with a process key
// nobody verifies.
type localAuth struct {
	key []byte
	now func() time.Time
}

func newLocalAuth() *localAuth {
	return &localAuth{key: []byte(uuid.NewString()), now: time.Now}
}

func (a *localAuth) SignUp(ctx context.Context, email, password string) (session.Session, error) {
	return a.SignIn(ctx, email, password)
}

func (a *localAuth) SignIn(_ context.Context, email, password string) (session.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return session.Session{}, fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument)
	}

	id := models.Identity(uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String())
	now := a.now()
	claims := session.Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(localTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return session.Session{
		UserID:      id,
		Email:       email,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (a *localAuth) Refresh(context.Context, string) (session.Session, error) {
	return session.Session{}, shared.ErrNoRefreshToken
}

func (a *localAuth) SignOut(context.Context, string) error { return nil }

// AuthSignUp registers an account and saves the session when one is issued.
func (r *Runner) AuthSignUp(ctx context.Context, cmd *cli.Command) error {
	if err := r.openSession(ctx); err != nil {
		return err
	}

	s, err := r.auth.SignUp(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	if !s.Valid() {
		return r.writePlain("✓ Account created. Check %s to confirm it, then run 'marquee auth login'.\n", cmd.String("email"))
	}
	return r.saveSession(s, "✓ Account created")
}

// AuthLogin signs in with email and password and saves the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.openSession(ctx); err != nil {
		return err
	}

	s, err := r.auth.SignIn(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	return r.saveSession(s, "✓ Signed in")
}

func (r *Runner) saveSession(s session.Session, headline string) error {
	if err := r.sessionFile.Save(s); err != nil {
		return err
	}
	r.sessions.SignIn(s)
	r.logger.Info("session saved", "path", r.sessionFile.Path())
	return r.writePlain("%s as %s\n", headline, s.Email)
}

// AuthLogout revokes the session on the server and removes the session file.
// A failed revoke is logged; the local session is cleared either way.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.openSession(ctx); err != nil {
		return err
	}

	s, ok := r.sessions.Session()
	if !ok {
		return r.writePlain("Not signed in\n")
	}
	if err := r.auth.SignOut(ctx, s.AccessToken); err != nil {
		r.logger.Warn("server sign-out failed", "error", err)
	}
	if err := r.sessionFile.Clear(); err != nil {
		return err
	}
	r.sessions.SignOut()
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports the saved session and its token lifetime.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.openSession(ctx); err != nil {
		return err
	}

	s, ok := r.sessions.Session()
	if !ok {
		return r.writePlain("Authentication: ✗ Not signed in\n")
	}

	r.writePlainHeader("Session")
	r.writePlain("User:  %s\n", s.UserID)
	r.writePlain("Email: %s\n", s.Email)
	r.writePlain("Backend: %s\n", r.config.Backend.Mode)

	if !session.IsValidFormat(s.AccessToken) {
		return r.writePlain("Token: opaque\n")
	}
	switch remaining := session.TimeUntilExpiry(s.AccessToken); {
	case remaining <= 0:
		r.writePlain("Token: ✗ expired\n")
	case session.NeedsRefresh(s.AccessToken):
		r.writePlain("Token: expires in %s (refresh due)\n", remaining.Round(time.Second))
	default:
		r.writePlain("Token: ✓ valid for %s\n", remaining.Round(time.Second))
	}
	return nil
}

// AuthToken prints the access token, or its decoded claims with --claims.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if err := r.openSession(ctx); err != nil {
		return err
	}

	token := r.sessions.AccessToken()
	if token == "" {
		return shared.ErrNotAuthenticated
	}
	if !cmd.Bool("claims") {
		return r.writePlain("%s\n", token)
	}

	info, err := session.ExtractUserInfo(token)
	if err != nil {
		return err
	}
	return r.writeJSON(info, true)
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	credentials := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Account password",
				Sources:  cli.EnvVars("MARQUEE_PASSWORD"),
				Required: true,
			},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "signup",
				Usage:  "Create an account",
				Flags:  credentials(),
				Action: r.AuthSignUp,
			},
			{
				Name:   "login",
				Usage:  "Sign in and save the session",
				Flags:  credentials(),
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and remove the saved session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the saved session",
				Action: r.AuthStatus,
			},
			{
				Name:  "token",
				Usage: "Print the access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "claims",
						Usage: "Print the decoded token claims instead",
					},
				},
				Action: r.AuthToken,
			},
		},
	}
}
