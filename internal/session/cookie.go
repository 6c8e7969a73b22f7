package session

import (
	"net/http"
	"time"
)

// CookieConfig describes the session cookie shared across the console's subdomains
type CookieConfig struct {
	Name   string
	Domain string // e.g. "example.com" to share with app.example.com; empty for host-only
	Secure bool
}

// DefaultCookieConfig returns the cookie settings for local development
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Name: "console_session"}
}

// Set writes the session id cookie, expiring with the session's token
func (c CookieConfig) Set(w http.ResponseWriter, sessionID string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    sessionID,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true, // JavaScript cannot access
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1, // Delete cookie
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session id carried by r
func (c CookieConfig) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
