package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/session"
)

// ContextKeyUsername is where the authenticated subject is mirrored on the
// echo context for access logging.
const ContextKeyUsername = "username"

// Session attaches a fresh, anonymous session to every request.
func Session() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestSession(c)
			return next(c)
		}
	}
}

// Auth validates the bearer token and authenticates the request session.
func Auth(tokens ports.TokenProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			identity, err := tokens.ValidateToken(token)
			if err != nil {
				return err
			}

			requestSession(c).Authenticate(identity, token)
			c.Set(ContextKeyUsername, identity)

			return next(c)
		}
	}
}

// OptionalAuth authenticates the session when a valid bearer is present and
// lets the request through anonymously otherwise.
func OptionalAuth(tokens ports.TokenProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := requestSession(c)
			if token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
				if identity, err := tokens.ValidateToken(token); err == nil {
					sess.Authenticate(identity, token)
					c.Set(ContextKeyUsername, identity)
				}
			}
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// requestSession returns the request's session, creating one if the Session
// middleware did not run.
func requestSession(c echo.Context) *session.Session {
	req := c.Request()
	if sess := session.FromContext(req.Context()); sess != nil {
		return sess
	}
	sess := session.New()
	c.SetRequest(req.WithContext(session.NewContext(req.Context(), sess)))
	return sess
}
