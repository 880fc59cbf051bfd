// GoTrue client for email/password accounts
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
)

const authPrefix = "/auth/v1"

// AuthService signs users up, in and out.
type AuthService struct {
	client *Client
}

// NewAuthService creates an [AuthService] on top of c.
func NewAuthService(c *Client) *AuthService {
	return &AuthService{client: c}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenResponse covers both the token grant and the signup response. Signup
// returns a bare user when email confirmation is pending.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         authUser `json:"user"`

	ID    string `json:"id"`
	Email string `json:"email"`
}

type authError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e authError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignUp creates an account. When the backend requires email confirmation the
// returned session carries the user but no token, so it is not [session.Session.Valid].
func (a *AuthService) SignUp(ctx context.Context, email, password string) (session.Session, error) {
	if err := checkCredentials(email, password); err != nil {
		return session.Session{}, err
	}
	return a.post(ctx, "/signup", nil, credentials{Email: email, Password: password})
}

// SignIn exchanges an email and password for a session.
func (a *AuthService) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	if err := checkCredentials(email, password); err != nil {
		return session.Session{}, err
	}
	return a.post(ctx, "/token", url.Values{"grant_type": {"password"}}, credentials{Email: email, Password: password})
}

// Refresh trades a refresh token for a new session.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (session.Session, error) {
	if refreshToken == "" {
		return session.Session{}, shared.ErrNoRefreshToken
	}
	body := map[string]string{"refresh_token": refreshToken}
	s, err := a.post(ctx, "/token", url.Values{"grant_type": {"refresh_token"}}, body)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return s, nil
}

// SignOut revokes the session's tokens on the server.
func (a *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return shared.ErrNotAuthenticated
	}
	resp, err := a.client.WithToken(accessToken).Do(ctx, http.MethodPost, authPrefix+"/logout", nil, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if !resp.OK() {
		return failure(resp)
	}
	return nil
}

func (a *AuthService) post(ctx context.Context, path string, query url.Values, body any) (session.Session, error) {
	resp, err := a.client.Do(ctx, http.MethodPost, authPrefix+path, query, body, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if !resp.OK() {
		return session.Session{}, failure(resp)
	}

	var tr tokenResponse
	if err := resp.Decode(&tr); err != nil {
		return session.Session{}, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return tr.session(), nil
}

func (tr tokenResponse) session() session.Session {
	user := tr.User
	if user.ID == "" {
		user = authUser{ID: tr.ID, Email: tr.Email}
	}

	s := session.Session{
		UserID:       models.Identity(user.ID),
		Email:        user.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}
	return s
}

func failure(resp *APIResponse) error {
	var body authError
	if err := resp.Decode(&body); err == nil && body.text() != "" {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, body.text())
	}
	return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
}

func checkCredentials(email, password string) error {
	if shared.IsBlank(email) || password == "" {
		return fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument)
	}
	return nil
}
