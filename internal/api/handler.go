// Package api exposes the request-reply execute endpoint.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/language"
)

// SessionIDHeader is the request metadata key carrying the session id.
const SessionIDHeader = "session_id"

// Anonymous is the sentinel session id rejected as unauthenticated.
const Anonymous = "anonymous"

// Runner executes code inside the warm container for a session.
type Runner interface {
	EnsureSessionContainer(ctx context.Context, sessionID string, lang language.Language, code string) (string, error)
}

// ExecuteRequest is the request-reply payload.
type ExecuteRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecuteResponse wraps the captured execution output.
type ExecuteResponse struct {
	Message string `json:"message"`
}

// Handler serves the execute method.
type Handler struct {
	runner Runner
}

// NewHandler builds a Handler around runner.
func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes mounts the handler on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/execute", h.execute)
}

func (h *Handler) execute(c echo.Context) error {
	sessionID := c.Request().Header.Get(SessionIDHeader)
	if sessionID == "" || sessionID == Anonymous {
		return echo.NewHTTPError(http.StatusUnauthorized, "session_id is required for execution")
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request").SetInternal(err)
	}

	langName := strings.ToLower(req.Language)
	if langName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "language must be specified")
	}
	lang, err := language.Parse(langName)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid language: "+langName)
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code must be provided")
	}

	output, err := h.runner.EnsureSessionContainer(c.Request().Context(), sessionID, lang, req.Code)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Stringer("language", lang).
			Msg("Execution failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "execution error: "+err.Error())
	}

	return c.JSON(http.StatusOK, ExecuteResponse{Message: output})
}
