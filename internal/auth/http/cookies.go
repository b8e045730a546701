package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

const refreshCookieName = "refreshToken"

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	// Secure should be true whenever the service is reached over HTTPS.
	Secure bool
}

func (c CookieConfig) setRefresh(w http.ResponseWriter, tok domain.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    tok.Value,
		Path:     "/",
		MaxAge:   int(tok.TTL(time.Now()).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieConfig) clearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
