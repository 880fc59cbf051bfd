package session

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/marquee/internal/shared"
)

// refreshWindow is how close to expiry a token is considered due for refresh.
const refreshWindow = 5 * time.Minute

var timeNow = time.Now

// Claims are the fields the backend puts in its access tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserInfo is the display subset of [Claims].
type UserInfo struct {
	UserID    string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DecodeToken parses a JWT without verifying its signature. The result is for display
// and scheduling only; the backend is the one that trusts or rejects the token.
func DecodeToken(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	return claims, nil
}

// IsExpired reports whether the token is past its expiry. Undecodable tokens count as expired.
func IsExpired(token string) bool {
	claims, err := DecodeToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Before(timeNow())
}

// TimeUntilExpiry returns how long the token stays valid. It is negative once expired,
// and -1ms for a token that cannot be decoded.
func TimeUntilExpiry(token string) time.Duration {
	claims, err := DecodeToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return -time.Millisecond
	}
	return claims.ExpiresAt.Sub(timeNow().Truncate(time.Second))
}

// NeedsRefresh reports whether a still-valid token expires within five minutes.
func NeedsRefresh(token string) bool {
	d := TimeUntilExpiry(token)
	return d > 0 && d < refreshWindow
}

// ExtractUserInfo returns the user fields carried by the token.
func ExtractUserInfo(token string) (UserInfo, error) {
	claims, err := DecodeToken(token)
	if err != nil {
		return UserInfo{}, err
	}

	info := UserInfo{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// IsValidFormat reports whether token has three base64url segments.
func IsValidFormat(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		if _, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part, "=")); err != nil {
			return false
		}
	}
	return true
}
