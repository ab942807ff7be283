package handler

import (
	"net/http"

	t "github.com/askhat-b/taxi-dispatch/internal/domain/types"
)

func errorResponse(w http.ResponseWriter, status int, message any) {
	env := envelope{"error": message}

	if err := writeJSON(w, status, env, nil); err != nil {
		w.WriteHeader(500)
	}
}

// domainErrorResponse maps a domain error to its status code and attaches
// the stable machine-readable error code alongside the message.
func domainErrorResponse(w http.ResponseWriter, err error) {
	env := envelope{
		"error": err.Error(),
		"code":  t.ErrorCode(err),
	}

	if werr := writeJSON(w, GetCode(err), env, nil); werr != nil {
		w.WriteHeader(500)
	}
}

// failedValidationResponse returns 422 UnprocessableEntity status.
func failedValidationResponse(w http.ResponseWriter, errors map[string]string) {
	errorResponse(w, http.StatusUnprocessableEntity, errors)
}

// internalErrorResponse returns 500 InternalServerError status.
func internalErrorResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusInternalServerError, message)
}
