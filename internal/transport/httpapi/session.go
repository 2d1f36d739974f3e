package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/service/storefront"
)

type sessionKey struct{}

// sessionMiddleware выдаёт недостающие cookie и кладёт сессию в контекст запроса.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileID := s.ensureCookie(w, r, ProfileCookie, int(profileCookieMaxAge.Seconds()))
		sessionID := s.ensureCookie(w, r, SessionCookie, 0)

		session, err := s.sessions.Acquire(r.Context(), profileID, sessionID)
		if err != nil {
			s.logger.WithError(err).Error("failed to acquire storefront session")
			writeError(w, http.StatusInternalServerError, "session unavailable", false)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// ensureCookie возвращает id из cookie или выпускает новый.
// Значение становится ключом реестра и хранилища, поэтому принимается только канонический UUID.
func (s *Server) ensureCookie(w http.ResponseWriter, r *http.Request, name string, maxAge int) string {
	if c, err := r.Cookie(name); err == nil {
		v := strings.TrimSpace(c.Value)
		if validCookieID(v) {
			return v
		}
		if v != "" {
			s.logger.WithField("cookie", name).Debug("reissuing malformed cookie")
		}
	}
	value := s.newID()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return value
}

func validCookieID(v string) bool {
	id, err := uuid.Parse(v)
	return err == nil && id.String() == v
}

func sessionFrom(ctx context.Context) *storefront.Session {
	session, _ := ctx.Value(sessionKey{}).(*storefront.Session)
	return session
}
