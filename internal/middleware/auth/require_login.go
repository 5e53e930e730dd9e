package auth

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/models"
)

// RequireAuth admits anyone with a working session or token.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if FromContext(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized,
				"Either you aren't logged in, you forgot to pass a token, or your token is no longer valid.")
		}
		return next(c)
	}
}

// RequireSession admits only browser sessions. Tokens don't count here even
// when valid, since these routes hand out things like CSRF state.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := FromContext(c)
		if id == nil || id.Session == nil {
			return echo.NewHTTPError(http.StatusUnauthorized,
				"You aren't logged in, so you can't do this. If you were logged in earlier, your session might have expired.")
		}
		return next(c)
	}
}

// AllowedScopes gates a route on token permissions. Session users always
// pass; token users need one of the listed scopes.
func AllowedScopes(scopes ...models.TokenScope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := FromContext(c)
			if id == nil {
				return echo.NewHTTPError(http.StatusUnauthorized,
					"Either you aren't logged in, you forgot to pass a token, or your token is no longer valid.")
			}
			if id.Token != nil && !slices.Contains(scopes, id.Token.TokenScope()) {
				return echo.NewHTTPError(http.StatusForbidden,
					"The provided authentication token doesn't have the right permissions to perform this action.")
			}
			return next(c)
		}
	}
}
