package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/metric"
	"github.com/Skotchmaster/eardogger/internal/repo"
)

type Resolver struct {
	Repo   *repo.Repo
	Secure bool
}

// Resolve figures out who the request is from, if anyone, and stashes the
// identity in the echo context. It never rejects a request on its own; the
// Require* middlewares do that. A bad cookie or a stale token just leaves the
// request anonymous, but a database failure is a real error.
func (r *Resolver) Resolve(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			session, user, err := r.Repo.AuthenticateSession(ctx, cookie.Value)
			if err != nil {
				metric.AuthLookups.WithLabelValues("session", "error").Inc()
				return echo.NewHTTPError(http.StatusInternalServerError, "couldn't check your login")
			}
			if session != nil {
				metric.AuthLookups.WithLabelValues("session", "hit").Inc()
				setIdentity(c, &Identity{User: *user, Session: session})
				// The store bumped the sliding window; re-ship the cookie so
				// the browser's copy slides along with it.
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    session.ID,
					Path:     "/",
					Expires:  time.Now().Add(repo.SessionLifetime),
					HttpOnly: true,
					Secure:   r.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			} else {
				metric.AuthLookups.WithLabelValues("session", "miss").Inc()
			}
		}

		if cleartext, ok := bearerToken(c.Request()); ok {
			token, user, err := r.Repo.AuthenticateToken(ctx, cleartext)
			if err != nil {
				metric.AuthLookups.WithLabelValues("token", "error").Inc()
				return echo.NewHTTPError(http.StatusInternalServerError, "couldn't check your token")
			}
			if token != nil {
				// A valid token takes over from any session identity. A bad
				// one doesn't knock the session out.
				metric.AuthLookups.WithLabelValues("token", "hit").Inc()
				setIdentity(c, &Identity{User: *user, Token: token})
			} else {
				metric.AuthLookups.WithLabelValues("token", "miss").Inc()
			}
		}

		return next(c)
	}
}

func bearerToken(req *http.Request) (string, bool) {
	header := req.Header.Get(echo.HeaderAuthorization)
	cleartext, found := strings.CutPrefix(header, "Bearer ")
	cleartext = strings.TrimSpace(cleartext)
	if !found || cleartext == "" {
		return "", false
	}
	return cleartext, true
}
