package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/domain/user"
	"github.com/gatherly/gatherly/internal/engine"
	"github.com/gatherly/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

// Envelope is the uniform response body: success + optional message + data.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondData(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, Envelope{Success: true, Data: data})
}

func RespondMessage(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, Envelope{Success: false, Message: message})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondUnAuthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}

// RespondDomainError is the single place outcome errors become status codes.
// dev controls whether unexpected errors leak their detail.
func RespondDomainError(ctx *gin.Context, err error, dev bool) {
	var fieldErr *event.FieldError

	switch {
	case errors.As(err, &fieldErr):
		RespondBadRequest(ctx, fieldErr.Error())

	// business rules: well-formed requests the state refuses
	case errors.Is(err, registration.ErrEventFull),
		errors.Is(err, registration.ErrEventPast),
		errors.Is(err, service.ErrCapacityBelowRegistrations),
		errors.Is(err, service.ErrDateTimeLocked):
		RespondBadRequest(ctx, err.Error())

	case errors.Is(err, registration.ErrForbidden),
		errors.Is(err, event.ErrNotOwner):
		RespondForbidden(ctx, err.Error())

	case errors.Is(err, registration.ErrAlreadyRegistered),
		errors.Is(err, event.ErrScheduleConflict),
		errors.Is(err, user.ErrEmailAlreadyUsed):
		RespondConflict(ctx, err.Error())

	case errors.Is(err, event.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, registration.ErrNotRegistered):
		RespondNotFound(ctx, err.Error())

	case errors.Is(err, engine.ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")

	default:
		if dev {
			RespondInternal(ctx, err.Error())
			return
		}
		RespondInternal(ctx, "Something went wrong")
	}
}
