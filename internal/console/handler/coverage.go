package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"github.com/xela07ax/cs-coverage-engine/internal/engine"
	"github.com/xela07ax/cs-coverage-engine/internal/infra/auth"
)

// CoverageService Описываем, что нам нужно от движка
type CoverageService interface {
	SetupCoverage(ctx context.Context, req engine.SetupRequest) (*domain.OOOCoverage, error)
	GetCoverage(ctx context.Context, coverageID string) (*domain.OOOCoverage, error)
	GetCurrentCoverage(ctx context.Context, agentID string) (*domain.CurrentCoverage, error)
	GetHandoffBrief(ctx context.Context, coverageID, viewerID string) (*domain.HandoffBrief, error)
	SendCustomerNotifications(ctx context.Context, coverageID string) (*engine.NotificationReport, error)
	ProcessReturn(ctx context.Context, coverageID, coveringNotes string) (*domain.ReturnHandback, error)
	Cancel(ctx context.Context, coverageID, cancelledBy string) error
}

type CoverageHandler struct {
	service CoverageService
}

func NewCoverageHandler(s CoverageService) *CoverageHandler {
	return &CoverageHandler{service: s}
}

// Setup — POST /v1/coverage
func (h *CoverageHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req engine.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.RequestedBy = auth.UserIDFromContext(r.Context())

	cov, err := h.service.SetupCoverage(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cov)
}

// Get — GET /v1/coverage/{id}
func (h *CoverageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cov, err := h.service.GetCoverage(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cov)
}

// GetBrief — GET /v1/coverage/{id}/brief
// Первый запрос фиксирует факт просмотра за спрашивающим оператором.
func (h *CoverageHandler) GetBrief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	viewerID := auth.UserIDFromContext(r.Context())

	brief, err := h.service.GetHandoffBrief(r.Context(), id, viewerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(brief)
}

// Notify — POST /v1/coverage/{id}/notify
func (h *CoverageHandler) Notify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.SendCustomerNotifications(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

type ReturnRequest struct {
	CoveringNotes string `json:"covering_notes"`
}

// Return — POST /v1/coverage/{id}/return
func (h *CoverageHandler) Return(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Тело опционально: возврат без заметок покрывающего — норма
	var req ReturnRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	handback, err := h.service.ProcessReturn(r.Context(), id, req.CoveringNotes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handback)
}

// Cancel — POST /v1/coverage/{id}/cancel
func (h *CoverageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAgentCoverage — GET /v1/agents/{id}/coverage
func (h *CoverageHandler) GetAgentCoverage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	current, err := h.service.GetCurrentCoverage(r.Context(), agentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(current)
}

// writeDomainError маппит доменные ошибки на HTTP-статусы.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAgentNotFound), errors.Is(err, domain.ErrCoverageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrOverlappingCoverage), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrAgentBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNoCoveringAgent):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrExternalDependency):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
