package httpserver

import (
	"errors"
	"log"
	"net/http"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

// writeError maps domain error kinds onto status codes. Anything unmapped is
// logged and rendered opaquely.
func writeError(c *gin.Context, logger *log.Logger, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	abortMessage(c, status, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized, domain.ErrAuthInvalid.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "admin privileges required"
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBusinessRule):
		return kindStatus(err), err.Error()
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "resource already exists"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "concurrent modification, please retry"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func kindStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

// bindError renders a request binding failure.
func bindError(c *gin.Context, err error) {
	abortMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
}
