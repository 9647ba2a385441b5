package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// TestHandler serves the smoke-test endpoints used by the clients to check
// that anonymous and bearer-authenticated calls reach the service.
type TestHandler struct{}

func NewTestHandler() *TestHandler {
	return &TestHandler{}
}

// Public is reachable without a token.
//
// @Summary      Public smoke test
// @Tags         test
// @Produce      json
// @Success      200   {object}  MessageResponse
// @Router       /test/public [get]
func (h *TestHandler) Public(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Message: "This is a public endpoint", Success: true})
}

// Protected requires a valid bearer token.
//
// @Summary      Protected smoke test
// @Tags         test
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  MessageResponse
// @Failure      401   {object}  MessageResponse
// @Router       /test/protected [get]
func (h *TestHandler) Protected(c echo.Context) error {
	if _, err := ctxIdentity(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "This is a protected endpoint", Success: true})
}
