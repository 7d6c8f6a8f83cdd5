package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/tripflow/internal/openapi"
	"github.com/pitabwire/tripflow/internal/store"
	"github.com/pitabwire/tripflow/internal/trip"
	"github.com/pitabwire/tripflow/model"
)

// TripService is the set of trip operations exposed over HTTP.
type TripService interface {
	Get(ctx context.Context, tripID string) (model.Trip, error)
	Put(ctx context.Context, tripID string, spec model.TripSpec, decision *model.DecisionPackage, actor string) (model.Trip, error)
	Delete(ctx context.Context, tripID string) error
	List(ctx context.Context, filters store.ListFilters) ([]model.TripSummary, error)
	Recompute(ctx context.Context, tripID, mode, actor string) (model.Trip, error)
	ApplyActions(ctx context.Context, tripID string, actions []model.Action, idempotencyKey, actor string) (trip.ActionsResult, error)
	ValidateLinks(ctx context.Context, tripID, actor string) (model.Trip, error)
	Report(ctx context.Context, tripID string) (model.SnapshotReport, error)
	Comments(ctx context.Context, tripID, targetType, targetID string) ([]model.Comment, error)
}

const maxListLimit = 100

// readBody reads the request body and validates it against the operation's
// request schema. It writes the error response itself and reports false
// when the handler should stop.
func readBody(w http.ResponseWriter, r *http.Request, api *openapi.Index, operationID string, into any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, model.NewBadRequestError("request body too large"))
			return false
		}
		WriteError(w, model.NewBadRequestError("unreadable request body"))
		return false
	}

	if api != nil {
		if errs := api.ValidateRequest(operationID, body); len(errs) > 0 {
			WriteSchemaErrors(w, errs)
			return false
		}
	}

	if err := json.Unmarshal(body, into); err != nil {
		WriteError(w, model.NewBadRequestError("invalid JSON body"))
		return false
	}
	return true
}

// actorFor picks who a change is attributed to. An authenticated subject
// always wins over a client-supplied name.
func actorFor(r *http.Request, supplied string) string {
	rctx := model.RequestContextFrom(r.Context())
	if rctx != nil && rctx.SubjectID != "" {
		return rctx.SubjectID
	}
	if supplied != "" {
		return supplied
	}
	return rctx.Actor()
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func handleTripList(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		if limit == 0 || limit > maxListLimit {
			limit = maxListLimit
		}
		filters := store.ListFilters{Limit: limit, Offset: queryInt(r, "offset", 0)}

		summaries, err := svc.List(r.Context(), filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":   summaries,
			"limit":  filters.Limit,
			"offset": filters.Offset,
		})
	}
}

func handleTripGet(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Get(r.Context(), chi.URLParam(r, "tripId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteData(w, http.StatusOK, t)
	}
}

func handleTripPut(svc TripService, api *openapi.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Spec     model.TripSpec         `json:"spec"`
			Decision *model.DecisionPackage `json:"decision"`
			Actor    string                 `json:"actor"`
		}
		if !readBody(w, r, api, "putTrip", &body) {
			return
		}

		t, err := svc.Put(r.Context(), chi.URLParam(r, "tripId"), body.Spec, body.Decision, actorFor(r, body.Actor))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteData(w, http.StatusOK, t)
	}
}

func handleTripDelete(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "tripId")); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTripRecompute(svc TripService, api *openapi.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mode string `json:"mode"`
		}
		if !readBody(w, r, api, "recomputeTrip", &body) {
			return
		}

		t, err := svc.Recompute(r.Context(), chi.URLParam(r, "tripId"), body.Mode, actorFor(r, ""))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteData(w, http.StatusOK, t)
	}
}

func handleTripActions(svc TripService, api *openapi.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Actions []model.Action `json:"actions"`
		}
		if !readBody(w, r, api, "applyActions", &body) {
			return
		}

		result, err := svc.ApplyActions(r.Context(), chi.URLParam(r, "tripId"), body.Actions,
			r.Header.Get("X-Idempotency-Key"), actorFor(r, ""))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteData(w, http.StatusOK, result)
	}
}

func handleTripValidateLinks(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.ValidateLinks(r.Context(), chi.URLParam(r, "tripId"), actorFor(r, ""))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteData(w, http.StatusOK, t)
	}
}

func handleTripReport(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Report(r.Context(), chi.URLParam(r, "tripId"))
		if err != nil {
			WriteError(w, err)
			return
		}

		if r.URL.Query().Get("format") == "markdown" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, report.Markdown)
			return
		}
		WriteData(w, http.StatusOK, report)
	}
}

func handleTripComments(svc TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		comments, err := svc.Comments(r.Context(), chi.URLParam(r, "tripId"), q.Get("target_type"), q.Get("target_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if comments == nil {
			comments = []model.Comment{}
		}
		WriteData(w, http.StatusOK, comments)
	}
}

func handleAPIDocument(api *openapi.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if api == nil {
			WriteError(w, model.NewNotFoundError("API document not loaded"))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(api.Raw())
	}
}
