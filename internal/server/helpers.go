package server

import (
	"errors"
	"net/http"

	"imagegen/internal/core"
	"imagegen/internal/util"

	"github.com/gin-gonic/gin"
)

// statusForKind maps pipeline error kinds to HTTP status codes
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindTooManyRequests:
		return http.StatusTooManyRequests
	case core.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError writes the error envelope with credentials masked
func (s *Server) respondWithError(c *gin.Context, err error) {
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		s.config.Logger.Error("Unexpected pipeline error: %v", err)
		c.JSON(http.StatusInternalServerError, core.ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(statusForKind(appErr.Kind), core.ErrorResponse{
		Error: util.MaskSecrets(appErr.ClientMessage(), s.config.Secrets()...),
		Kind:  string(appErr.Kind),
	})
}
