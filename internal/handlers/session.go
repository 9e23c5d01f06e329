// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/auth"
)

// extractCookieToken extracts a named cookie value from the "Cookie"
// header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// EnsureSession resolves the caller's user ID from the auth_token
// cookie, minting an ephemeral guest identity when the cookie is
// missing or stale. Guests exist only for the lifetime of their token;
// durable accounts come from the external identity service.
func EnsureSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if userID, err := auth.Authenticate(token); err == nil {
			return userID, nil
		}
	}
	return issueGuest(w)
}

func issueGuest(w http.ResponseWriter) (uuid.UUID, error) {
	guestID := uuid.New()
	token, err := auth.CreateToken(guestID)
	if err != nil {
		return uuid.Nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return guestID, nil
}
