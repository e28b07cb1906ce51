package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	// RefreshCookieName это cookie с refresh токеном
	RefreshCookieName = "Refresh-Token"
	// AuthorizationHeader несет access токен в запросах и, после ротации, в ответах
	AuthorizationHeader = "Authorization"

	bearerPrefix = "Bearer "
)

// WriteClientState отдает пару клиенту: refresh токен в httpOnly cookie,
// access токен в заголовке Bearer.
func (m *Manager) WriteClientState(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(AuthorizationHeader, bearerPrefix+pair.AccessToken)
}

// ClearClientState просрочивает refresh cookie и очищает заголовок access
func (m *Manager) ClearClientState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(AuthorizationHeader, "")
}

// AccessTokenFromRequest извлекает bearer токен из заголовка Authorization
func AccessTokenFromRequest(r *http.Request) string {
	header := r.Header.Get(AuthorizationHeader)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// RefreshTokenFromRequest возвращает значение refresh cookie или ""
func RefreshTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
