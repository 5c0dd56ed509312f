// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/cadence/internal/adapters/server/common"
	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.ScheduleService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a schedule service.
func NewHandler(service common.ScheduleService) *Handler {
	return &Handler{service: service}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "schedule service is not configured",
		})
		return
	}
	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) == 1 && parts[0] == "items":
		switch r.Method {
		case http.MethodGet:
			h.handleListItems(w, r)
		case http.MethodPost:
			h.handleCreateItem(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[0] == "items":
		switch r.Method {
		case http.MethodGet:
			h.handleGetItem(w, r, parts[1])
		case http.MethodPatch:
			h.handleUpdateItem(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch)
		}
	case len(parts) == 3 && parts[0] == "items":
		h.handleItemAction(w, r, parts[1], parts[2])
	case len(parts) >= 2 && parts[0] == "queries":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleQuery(w, r, parts[1:])
	case len(parts) == 1 && parts[0] == "metrics":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		metrics, err := h.service.Metrics(r.Context())
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, metrics)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    common.CodeNotFound,
			Message: "endpoint not found",
		})
	}
}

// handleListItems serves GET `/items?collection=`.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), common.ListItemsRequest{
		Collection: r.URL.Query().Get("collection"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

// handleCreateItem serves POST `/items`.
func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var draft domain.ScheduleItemDraft
	if err := decodeJSONBody(r.Context(), w, r, &draft); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), draft)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleGetItem serves GET `/items/{id}`.
func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateItem serves PATCH `/items/{id}`.
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request, id string) {
	var patch app.ItemPatch
	if err := decodeJSONBody(r.Context(), w, r, &patch); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, patch)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleItemAction serves the `/items/{id}/{action}` lifecycle endpoints.
func (h *Handler) handleItemAction(w http.ResponseWriter, r *http.Request, id, action string) {
	ctx := r.Context()
	if action == "conflicts" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		conflicts, err := h.service.ItemConflicts(ctx, id)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conflicts": nonNil(conflicts)})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var (
		out any
		err error
	)
	switch action {
	case "start":
		out, err = h.service.StartItem(ctx, id)
	case "complete":
		out, err = h.service.CompleteItem(ctx, id)
	case "postpone":
		var req common.PostponeItemRequest
		if err := decodeJSONBody(ctx, w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		req.ID = id
		out, err = h.service.PostponeItem(ctx, req)
	case "delete":
		if err := h.service.DeleteItem(ctx, id); err != nil {
			writeErrorFrom(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	case "restore":
		out, err = h.service.RestoreItem(ctx, id)
	case "restore-completed":
		out, err = h.service.RestoreCompletedItem(ctx, id)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    common.CodeNotFound,
			Message: fmt.Sprintf("unknown item action %q", action),
		})
		return
	}
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleQuery serves GET `/queries/{name}` and `/queries/priority/{p}`.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request, parts []string) {
	req := common.QueryRequest{Name: parts[0]}
	switch {
	case req.Name == common.QueryPriority && len(parts) == 2:
		req.Priority = parts[1]
	case len(parts) != 1:
		writeJSONError(w, http.StatusNotFound, APIError{Code: common.CodeNotFound, Message: "endpoint not found"})
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    common.CodeInvalidRequest,
				Message: "days must be an integer",
			})
			return
		}
		req.Days = days
	}
	items, err := h.service.Query(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

// splitPath canonicalizes one request path into route segments.
func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// nonNil returns an empty slice for nil so JSON encodes [] instead of null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// statusForCode maps shared error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case common.CodeInvalidRequest:
		return http.StatusBadRequest
	case common.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeAlreadyCompleted, common.CodePostponementLimit, common.CodeBlocked, common.CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	info := common.DescribeError(err)
	apiErr := APIError{Code: info.Code, Message: info.Message, Context: info.Context}
	switch info.Code {
	case common.CodePostponementLimit:
		apiErr.Hint = "Raise max_postponements with PATCH /items/{id} to allow more."
	case common.CodeBlocked:
		apiErr.Hint = "Complete the blocking items first."
	}
	writeJSONError(w, statusForCode(info.Code), apiErr)
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
