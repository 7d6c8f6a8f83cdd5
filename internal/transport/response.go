// Package transport contains the HTTP router, middleware chain, and
// request handlers for the trip API.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/tripflow/internal/openapi"
	"github.com/pitabwire/tripflow/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:        http.StatusBadRequest,
	model.ErrUnauthorized:      http.StatusUnauthorized,
	model.ErrNotFound:          http.StatusNotFound,
	model.ErrTripNotFound:      http.StatusNotFound,
	model.ErrConflict:          http.StatusConflict,
	model.ErrIdempotencyReplay: http.StatusConflict,
	model.ErrDecisionMissing:   http.StatusConflict,
	model.ErrValidationError:   http.StatusUnprocessableEntity,
	model.ErrInternalError:     http.StatusInternalServerError,
	model.ErrStoreUnavailable:  http.StatusServiceUnavailable,
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteData wraps body in a {"data": ...} envelope.
func WriteData(w http.ResponseWriter, status int, body any) {
	WriteJSON(w, status, dataResponse{Data: body})
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. Errors without an envelope in their chain become a
// generic 500.
func WriteError(w http.ResponseWriter, err error) {
	ee, ok := model.AsEnvelope(err)
	if !ok {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteSchemaErrors writes a 422 response built from request body schema
// violations.
func WriteSchemaErrors(w http.ResponseWriter, errs []openapi.ValidationError) {
	details := make([]model.FieldError, len(errs))
	for i, e := range errs {
		details[i] = model.FieldError{Field: e.Field, Code: "SCHEMA", Message: e.Message}
	}
	WriteError(w, model.NewValidationError(details))
}
