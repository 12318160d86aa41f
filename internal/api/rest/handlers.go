package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	domainErrors "github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/service/dashboard"
	"github.com/seatshield/ticket-fraud-backend/internal/service/fraud"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Handler serves the fraud assessment API
type Handler struct {
	fraud     fraud.Service
	dashboard dashboard.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates the API handler
func NewHandler(fraudSvc fraud.Service, dashboardSvc dashboard.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		fraud:     fraudSvc,
		dashboard: dashboardSvc,
		validator: validator.New(),
		logger:    logger,
	}
}

// AssessmentRequest asks for a risk assessment of one session
type AssessmentRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	UserID    string `json:"user_id" validate:"omitempty,max=128"`
}

// ScalpingScanRequest asks for a coordinated-buying scan on one event
type ScalpingScanRequest struct {
	EventID string `json:"event_id" validate:"required,max=128"`
	// WindowMinutes bounds how far back the scan reaches. Zero selects
	// the server default.
	WindowMinutes int `json:"window_minutes" validate:"omitempty,min=1,max=1440"`
}

// handleCreateAssessment scores a session and returns the verdict.
// POST /api/v1/assessments
func (h *Handler) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req AssessmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	assessment, err := h.fraud.AssessSession(r.Context(), req.SessionID, req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, assessment)
}

// handleGetAssessment returns the latest persisted assessment for a session.
// GET /api/v1/assessments/{sessionID}
func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if sessionID == "" {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_SESSION_ID", "session id is required"))
		return
	}

	assessment, err := h.dashboard.LatestAssessment(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, assessment)
}

// handleScalpingScan runs a coordinated-buying scan on an event.
// POST /api/v1/scalping-scans
func (h *Handler) handleScalpingScan(w http.ResponseWriter, r *http.Request) {
	var req ScalpingScanRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	window := time.Duration(req.WindowMinutes) * time.Minute
	report, err := h.fraud.DetectScalpingNetworks(r.Context(), req.EventID, window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// handleThreats returns the aggregated threat dashboard.
// GET /api/v1/dashboard/threats
func (h *Handler) handleThreats(w http.ResponseWriter, r *http.Request) {
	threats, err := h.dashboard.Threats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, threats)
}

// decodeAndValidate reads a JSON body into dst and validates it
func (h *Handler) decodeAndValidate(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domainErrors.NewValidationError("EMPTY_BODY", "request body is required")
		case errors.As(err, &maxBytesErr):
			return err
		default:
			return domainErrors.NewValidationError("INVALID_JSON", "request body is not valid JSON").WithCause(err)
		}
	}

	if err := h.validator.Struct(dst); err != nil {
		return err
	}

	return nil
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError maps service errors onto HTTP responses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := h.mapError(err)
	if meta := RequestMetaFromContext(r.Context()); meta != nil {
		detail.RequestID = meta.RequestID
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err))
	}

	h.writeJSON(w, status, errorBody{Error: detail})
}

func (h *Handler) mapError(err error) (int, errorDetail) {
	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, errorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
		}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string][]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Tag())
		}
		return http.StatusBadRequest, errorDetail{
			Code:    "VALIDATION_FAILED",
			Message: "request validation failed",
			Fields:  fields,
		}
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, errorDetail{
			Code:    "BODY_TOO_LARGE",
			Message: "request body exceeds the size limit",
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errorDetail{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		}
	}

	return http.StatusInternalServerError, errorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}
}
