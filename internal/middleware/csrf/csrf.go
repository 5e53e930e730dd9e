package csrf

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/middleware/auth"
)

const (
	// LoginGuardCookieName holds the signed token that proves a login or
	// signup form was served by us before it was posted back.
	LoginGuardCookieName = "eardogger.loginguard"

	// FormField is the hidden input every protected form carries.
	FormField = "csrf_token"

	loginGuardLifetime = 30 * time.Minute
)

// Guard issues and checks the pre-login CSRF cookie. Logged-in forms are
// covered by the session's own token instead, see VerifySession.
type Guard struct {
	Secret []byte
	Secure bool
}

// Issue signs a fresh guard token, sets it as a cookie, and returns the same
// value for embedding in the form.
func (g *Guard) Issue(c echo.Context) (string, error) {
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"exp": time.Now().Add(loginGuardLifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.Secret)
	if err != nil {
		return "", err
	}

	c.SetCookie(&http.Cookie{
		Name:     LoginGuardCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(loginGuardLifetime.Seconds()),
	})
	return signed, nil
}

// Check validates the posted form value against the guard cookie and consumes
// the cookie either way, so a token can't be replayed.
func (g *Guard) Check(c echo.Context) error {
	cookie, err := c.Cookie(LoginGuardCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusForbidden, "That form was stale or didn't come from us. Go back and try again.")
	}
	c.SetCookie(&http.Cookie{
		Name:     LoginGuardCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return g.Secret, nil
	})
	if err != nil || !token.Valid {
		return echo.NewHTTPError(http.StatusForbidden, "That form was stale or didn't come from us. Go back and try again.")
	}

	posted := c.FormValue(FormField)
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(posted)) != 1 {
		return echo.NewHTTPError(http.StatusForbidden, "That form was stale or didn't come from us. Go back and try again.")
	}
	return nil
}

// VerifySession protects logged-in browser POSTs with the session's CSRF
// token. It assumes RequireSession already ran.
func VerifySession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := auth.FromContext(c)
		if id == nil || id.Session == nil {
			return echo.NewHTTPError(http.StatusUnauthorized,
				"You aren't logged in, so you can't do this. If you were logged in earlier, your session might have expired.")
		}
		posted := c.FormValue(FormField)
		if subtle.ConstantTimeCompare([]byte(id.Session.CSRFToken), []byte(posted)) != 1 {
			return echo.NewHTTPError(http.StatusForbidden, "Invalid or missing CSRF token. Reload the page and try again.")
		}
		return next(c)
	}
}
