package httpserver

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/middleware/auth"
	"github.com/Skotchmaster/eardogger/internal/middleware/csrf"
	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/repo"
	"github.com/Skotchmaster/eardogger/internal/urlmatch"
)

// WebHandler serves the browser-facing routes. There's no HTML rendering in
// here; pages that would be templates answer with JSON instead, and form
// posts answer with redirects the way a server-rendered site would.
type WebHandler struct {
	Repo      *repo.Repo
	Guard     *csrf.Guard
	OwnOrigin string
	Secure    bool
}

func (h *WebHandler) Register(e *echo.Echo) {
	e.GET("/login", h.LoginPage)
	e.POST("/login", h.Login)
	e.POST("/signup", h.Signup)
	e.POST("/logout", h.Logout, auth.RequireSession, csrf.VerifySession)
	e.POST("/changepassword", h.ChangePassword, auth.RequireSession, csrf.VerifySession)
	e.GET("/tokens", h.ListTokens, auth.RequireSession)
	e.POST("/tokens", h.CreateToken, auth.RequireSession, csrf.VerifySession)
	e.DELETE("/tokens/:id", h.DeleteToken, auth.RequireSession)
	e.GET("/resume/*", h.Resume, auth.RequireSession)
	e.GET("/mark/*", h.Mark, auth.RequireSession)
}

func (h *WebHandler) LoginPage(c echo.Context) error {
	if auth.SessionFromContext(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	guard, err := h.Guard.Issue(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"csrf_token": guard})
}

func (h *WebHandler) Login(c echo.Context) error {
	if err := h.Guard.Check(c); err != nil {
		return err
	}

	user, err := h.Repo.AuthenticateUser(c.Request().Context(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return mapError(err)
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password.")
	}

	session, err := h.Repo.CreateSession(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(session.ID, session.Expires))

	return c.Redirect(http.StatusSeeOther, h.safeReturnTo(c.FormValue("return_to")))
}

func (h *WebHandler) Signup(c echo.Context) error {
	if auth.SessionFromContext(c) != nil {
		return echo.NewHTTPError(http.StatusForbidden, "You already have an account and you're already logged into it.")
	}
	if err := h.Guard.Check(c); err != nil {
		return err
	}

	password := c.FormValue("new_password")
	if password != c.FormValue("new_password_again") {
		return echo.NewHTTPError(http.StatusBadRequest, "Those passwords didn't match each other. Go back and try again.")
	}

	user, err := h.Repo.CreateUser(c.Request().Context(), c.FormValue("new_username"), password, c.FormValue("email"))
	if err != nil {
		return mapError(err)
	}

	session, err := h.Repo.CreateSession(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(session.ID, session.Expires))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) Logout(c echo.Context) error {
	id := auth.SessionFromContext(c)
	if _, err := h.Repo.DestroySession(c.Request().Context(), id.Session.ID); err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie("", time.Unix(0, 0)))
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *WebHandler) ChangePassword(c echo.Context) error {
	id := auth.SessionFromContext(c)
	err := h.Repo.ChangePassword(c.Request().Context(), id.User.Username,
		c.FormValue("password"),
		c.FormValue("new_password"),
		c.FormValue("new_password_again"),
	)
	if err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WebHandler) ListTokens(c echo.Context) error {
	id := auth.SessionFromContext(c)
	page, size := pageQuery(c)

	tokens, meta, err := h.Repo.ListTokens(c.Request().Context(), id.User.ID, page, size)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": tokens,
		"meta": map[string]any{"pagination": meta.Pagination()},
	})
}

func (h *WebHandler) CreateToken(c echo.Context) error {
	id := auth.SessionFromContext(c)

	scope := models.ParseScope(c.FormValue("scope"))
	if scope == models.ScopeInvalid {
		return echo.NewHTTPError(http.StatusBadRequest, "That's not a scope this site knows about.")
	}

	comment := c.FormValue("comment")
	if comment == "" {
		comment = "Personal token created " + time.Now().Format("2006-01-02")
	}

	token, cleartext, err := h.Repo.CreateToken(c.Request().Context(), id.User.ID, scope, comment)
	if err != nil {
		return mapError(err)
	}
	// The cleartext appears exactly once, here. It's not recoverable later.
	return c.JSON(http.StatusCreated, map[string]any{
		"token":     token,
		"cleartext": cleartext,
	})
}

func (h *WebHandler) DeleteToken(c echo.Context) error {
	id := auth.SessionFromContext(c)

	tokenID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "That token doesn't exist.")
	}
	found, err := h.Repo.DestroyToken(c.Request().Context(), tokenID, id.User.ID)
	if err != nil {
		return mapError(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "That token doesn't exist.")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WebHandler) Resume(c echo.Context) error {
	id := auth.SessionFromContext(c)
	target := wildcardURL(c)

	current, err := h.Repo.CurrentForSite(c.Request().Context(), id.User.ID, target)
	if err != nil {
		return err
	}
	if current == "" {
		// Nowhere to resume to; offer to dogear the page instead.
		return c.Redirect(http.StatusSeeOther, "/mark/"+url.PathEscape(target))
	}
	return c.Redirect(http.StatusSeeOther, current)
}

func (h *WebHandler) Mark(c echo.Context) error {
	id := auth.SessionFromContext(c)
	target := wildcardURL(c)

	if _, err := urlmatch.MatchableFromURL(target); err != nil {
		return mapError(err)
	}

	dogears, err := h.Repo.UpdateDogears(c.Request().Context(), id.User.ID, target)
	if err != nil {
		return mapError(err)
	}
	if len(dogears) == 0 {
		return c.JSON(http.StatusOK, map[string]any{
			"outcome": "offer_create",
			"url":     target,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"outcome": "updated",
		"dogears": dogears,
	})
}

// safeReturnTo resolves a posted return_to destination against our own
// origin and refuses anything that lands somewhere else, so a login form
// can't be turned into an open redirect.
func (h *WebHandler) safeReturnTo(returnTo string) string {
	if returnTo == "" {
		return "/"
	}
	base, err := url.Parse(h.OwnOrigin)
	if err != nil {
		return "/"
	}
	target, err := base.Parse(returnTo)
	if err != nil || target.Scheme != base.Scheme || target.Host != base.Host {
		return "/"
	}
	return target.RequestURI()
}

func (h *WebHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// wildcardURL recovers the URL a /resume/* or /mark/* route was called with.
func wildcardURL(c echo.Context) string {
	raw := c.Param("*")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}
