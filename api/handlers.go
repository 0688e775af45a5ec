/*
handlers.go - HTTP API handlers for the stokvel finance engine

PURPOSE:
  Exposes the stokvel services via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates to the stokvel
  services.

ENDPOINTS:
  Stokvels:
    POST   /api/stokvels                         Create stokvel
    GET    /api/stokvels                         List stokvels
    GET    /api/stokvels/{id}                    Get stokvel
    PUT    /api/stokvels/{id}/members/{memberID} Sync a roster member
    GET    /api/stokvels/{id}/members            List roster
    GET    /api/stokvels/{id}/events             Outbox, newest first

  Rules (rules.go), periods (periods.go), contributions
  (contributions.go), penalties (penalties.go), reconciliation
  (reconciliation.go), cycles and bank accounts (cycles.go).

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Services: the stokvel service layer (which owns the store)
  - Rules: JSON rule-set conversion
  - validate: request shape validation

REQUEST FLOW:
  1. Decode JSON body
  2. Validate shape (validator tags on *Request types)
  3. Call the service
  4. Convert to DTO and serialize
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, closed period
  - 404: Resource not found, no applicable rule
  - 409: Overlapping rule, duplicate record, invalid status transition
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization here. Deploy behind the platform's
  gateway, which authenticates committee members.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/factory"
	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Services *stokvel.Services
	Rules    *factory.RuleFactory
	Logger   *zap.Logger

	// DefaultDueDay is used for stokvels created without a due day.
	DefaultDueDay int
	// Health reports store health for /healthz. Nil means always healthy.
	Health func(context.Context) error

	validate *validator.Validate
}

// NewHandler creates a new handler over the services.
func NewHandler(svc *stokvel.Services, logger *zap.Logger, defaultDueDay int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Services:      svc,
		Rules:         factory.NewRuleFactory(),
		Logger:        logger,
		DefaultDueDay: defaultDueDay,
		validate:      newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// STOKVEL ENDPOINTS
// =============================================================================

// CreateStokvel creates a stokvel.
// POST /api/stokvels
func (h *Handler) CreateStokvel(w http.ResponseWriter, r *http.Request) {
	var req CreateStokvelRequest
	if !h.decode(w, r, &req) {
		return
	}
	sv, err := h.Services.Directory.CreateStokvel(r.Context(), req.Name, req.ContributionDueDay, h.DefaultDueDay)
	if err != nil {
		h.writeServiceError(w, "Failed to create stokvel", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStokvelDTO(sv))
}

// ListStokvels returns all stokvels.
// GET /api/stokvels
func (h *Handler) ListStokvels(w http.ResponseWriter, r *http.Request) {
	svs, err := h.Services.Directory.ListStokvels(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list stokvels", err)
		return
	}
	dtos := make([]StokvelDTO, len(svs))
	for i, sv := range svs {
		dtos[i] = toStokvelDTO(sv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStokvel returns a single stokvel.
// GET /api/stokvels/{id}
func (h *Handler) GetStokvel(w http.ResponseWriter, r *http.Request) {
	sv, err := h.Services.Directory.GetStokvel(r.Context(), stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get stokvel", err)
		return
	}
	writeJSON(w, http.StatusOK, toStokvelDTO(sv))
}

// =============================================================================
// MEMBER ENDPOINTS
// =============================================================================

// SaveMember creates or replaces a roster member. Membership is owned by
// another system; this keeps the engine's copy in sync.
// PUT /api/stokvels/{id}/members/{memberID}
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	var req SaveMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	m := finance.Member{
		ID:        finance.MemberID(chi.URLParam(r, "memberID")),
		StokvelID: stokvelParam(r),
		Name:      req.Name,
		Status:    finance.MemberStatus(req.Status),
	}
	if req.JoinedAt != "" {
		joined, err := finance.ParseDate(req.JoinedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid joined_at", err)
			return
		}
		m.JoinedAt = joined
	}
	saved, err := h.Services.Directory.SaveMember(r.Context(), m)
	if err != nil {
		h.writeServiceError(w, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(saved))
}

// ListMembers returns the roster.
// GET /api/stokvels/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Services.Directory.ListMembers(r.Context(), stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to list members", err)
		return
	}
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// ListEvents returns queued notification events, newest first.
// GET /api/stokvels/{id}/events?limit=50
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	events, err := h.Services.Directory.Events(r.Context(), stokvelParam(r), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Healthz reports whether the store answers.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads and validates a JSON body, writing the error response
// itself. An empty body decodes as the zero request. It reports whether
// the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeServiceError(w, "Invalid request", err)
		return false
	}
	return true
}

// writeServiceError maps a service error to its status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: "validation failed", Fields: fields})
		return
	}

	var ve *finance.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Fields:  map[string]string{ve.Field: ve.Message},
		})
		return
	}

	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case finance.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func stokvelParam(r *http.Request) finance.StokvelID {
	return finance.StokvelID(chi.URLParam(r, "id"))
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, key string) (finance.Date, bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return finance.Date{}, false, nil
	}
	d, err := finance.ParseDate(v)
	if err != nil {
		return finance.Date{}, false, err
	}
	return d, true, nil
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// optionalDate parses a date that has already passed the datetime tag.
func optionalDate(s string) (*finance.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := finance.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func interval(from, until string) (finance.Interval, error) {
	start, err := finance.ParseDate(from)
	if err != nil {
		return finance.Interval{}, &finance.ValidationError{Field: "effective_from", Message: err.Error()}
	}
	end, err := optionalDate(until)
	if err != nil {
		return finance.Interval{}, &finance.ValidationError{Field: "effective_until", Message: err.Error()}
	}
	if end == nil {
		return finance.OpenInterval(start), nil
	}
	return finance.ClosedInterval(start, *end), nil
}

// window parses a from/to pair.
func window(from, to string) (finance.Window, error) {
	f, err := finance.ParseDate(from)
	if err != nil {
		return finance.Window{}, &finance.ValidationError{Field: "from", Message: err.Error()}
	}
	t, err := finance.ParseDate(to)
	if err != nil {
		return finance.Window{}, &finance.ValidationError{Field: "to", Message: err.Error()}
	}
	return finance.Window{From: f, To: t}, nil
}
