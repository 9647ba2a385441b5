package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/session"
)

// ctxIdentity returns the identity the Auth middleware placed in the request
// session. A missing identity means the route was mounted without the
// middleware, or the bearer was never validated: reject with 401.
func ctxIdentity(c echo.Context) (string, error) {
	sess := session.FromContext(c.Request().Context())
	if sess == nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	identity, ok := sess.Identity()
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return identity, nil
}
