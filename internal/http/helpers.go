package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"motolucro/internal/auth"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/services"
	"motolucro/internal/storage"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrMissingUser,
	core.ErrZeroDate,
	core.ErrLabelTooLong,
	core.ErrEmptyPatch,
	core.ErrInvalidGoal,
	core.ErrInvalidProfile,
}

// statusFor maps an error to its HTTP status and log category.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, services.ErrSuspended):
		return http.StatusForbidden, applog.ErrorTypeAuth
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, applog.ErrorTypeAuth
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, applog.ErrorTypeDatabase
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
		}
	}
	return http.StatusInternalServerError, applog.ErrorTypeInternal
}

// writeError logs err and writes the JSON error body. Internal errors are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := statusFor(err)
	logger := applog.FromContext(r.Context())
	msg := err.Error()
	switch {
	case status >= 500:
		logger.LogError(r.Context(), "Request failed", err, op, kind, nil)
		msg = "internal error"
		if status == http.StatusGatewayTimeout {
			msg = "storage timeout"
		}
	case status == http.StatusNotFound:
		msg = "not found"
	default:
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, kind,
			applog.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

// authError is the auth.ErrorWriter of the token middleware.
func authError(w http.ResponseWriter, r *http.Request, status int, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
		WarnContext(r.Context(), "Authentication failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	msg := "unauthorized"
	if status == http.StatusForbidden {
		msg = "forbidden"
	}
	ErrorResponse(status, msg).Write(w)
}

type ctxKey string

const userKey ctxKey = "user"

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// userFrom returns the user loaded by requireActiveUser.
func userFrom(r *http.Request) core.User {
	u, _ := r.Context().Value(userKey).(core.User)
	return u
}
