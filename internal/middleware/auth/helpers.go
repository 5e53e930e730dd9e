package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/models"
)

const (
	// SessionCookieName is the browser session cookie.
	SessionCookieName = "eardogger.sessid"

	ctxIdentity = "identity"
)

// Identity is whoever the current request is acting as. Session is set when
// the request rode in on a session cookie, Token when it authenticated with a
// bearer token. A token wins over a session when both are present and valid.
type Identity struct {
	User    models.User
	Session *models.Session
	Token   *models.Token
}

// Scope reports the identity's permission level. Session users can do
// anything a browser form offers, so they report the widest scope.
func (id *Identity) Scope() models.TokenScope {
	if id.Token == nil {
		return models.ScopeManageDogears
	}
	return id.Token.TokenScope()
}

func setIdentity(c echo.Context, id *Identity) {
	c.Set(ctxIdentity, id)
}

// FromContext returns the authenticated identity, or nil for anonymous
// requests.
func FromContext(c echo.Context) *Identity {
	id, _ := c.Get(ctxIdentity).(*Identity)
	return id
}

// SessionFromContext returns the identity only when it rode in on a session
// cookie. Token-authenticated requests get nil.
func SessionFromContext(c echo.Context) *Identity {
	id := FromContext(c)
	if id == nil || id.Session == nil {
		return nil
	}
	return id
}
