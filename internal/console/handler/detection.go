package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// DetectionService Описываем, что нам нужно от intake
type DetectionService interface {
	DetectFromCalendar(ctx context.Context, agentID string, horizonDays int) ([]*domain.OOODetection, error)
	SetManual(ctx context.Context, agentID string, start, end time.Time) (*domain.OOODetection, error)
}

// DetectionQueue — операторская очередь необработанных сигналов
type DetectionQueue interface {
	ListPendingDetections(ctx context.Context) ([]*domain.OOODetection, error)
}

type DetectionHandler struct {
	service     DetectionService
	queue       DetectionQueue
	horizonDays int
}

func NewDetectionHandler(s DetectionService, q DetectionQueue, horizonDays int) *DetectionHandler {
	return &DetectionHandler{service: s, queue: q, horizonDays: horizonDays}
}

// Scan — POST /v1/detections/scan/{agentID}
func (h *DetectionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	detections, err := h.service.DetectFromCalendar(r.Context(), agentID, h.horizonDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detections)
}

type ManualDetectionRequest struct {
	AgentID   string    `json:"agent_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// SetManual — POST /v1/detections/manual
func (h *DetectionHandler) SetManual(w http.ResponseWriter, r *http.Request) {
	var req ManualDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	det, err := h.service.SetManual(r.Context(), req.AgentID, req.StartDate, req.EndDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(det)
}

// ListPending — GET /v1/detections
func (h *DetectionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.queue.ListPendingDetections(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}
