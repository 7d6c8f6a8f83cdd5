package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/tripflow/internal/openapi"
	"github.com/pitabwire/tripflow/model"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Error
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteData_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteData(w, http.StatusCreated, []string{"a"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	var body struct {
		Data []string `json:"data"`
	}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if len(body.Data) != 1 || body.Data[0] != "a" {
		t.Errorf("data = %v", body.Data)
	}
}

func TestWriteError_statusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
		want int
	}{
		{model.NewBadRequestError("bad"), model.ErrBadRequest, 400},
		{model.NewUnauthorizedError("no"), model.ErrUnauthorized, 401},
		{model.NewTripNotFoundError("t1"), model.ErrTripNotFound, 404},
		{model.NewConflictError("stale"), model.ErrConflict, 409},
		{model.NewIdempotencyConflictError("k1"), model.ErrIdempotencyReplay, 409},
		{model.NewDecisionMissingError("t1"), model.ErrDecisionMissing, 409},
		{model.NewValidationError(nil), model.ErrValidationError, 422},
		{model.NewStoreUnavailableError(), model.ErrStoreUnavailable, 503},
		{fmt.Errorf("wrapped: %w", model.NewTripNotFoundError("t2")), model.ErrTripNotFound, 404},
		{fmt.Errorf("something went wrong"), model.ErrInternalError, 500},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if got := decodeError(t, w).Code; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestWriteSchemaErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSchemaErrors(w, []openapi.ValidationError{
		{Field: "actions.0.type", Message: "value is not one of the allowed values"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	env := decodeError(t, w)
	if len(env.Details) != 1 {
		t.Fatalf("details = %v", env.Details)
	}
	if env.Details[0].Field != "actions.0.type" || env.Details[0].Code != "SCHEMA" {
		t.Errorf("detail = %+v", env.Details[0])
	}
}
