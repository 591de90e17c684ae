package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

type DashboardService interface {
	GetDashboard(ctx context.Context) (*domain.CoverageDashboard, error)
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// List — GET /v1/coverage: полный сводный экран покрытий.
func (h *DashboardHandler) List(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.GetDashboard(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dash)
}

// GetStats — GET /api/v1/dashboard/stats: только агрегаты для виджетов.
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.GetDashboard(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dash.Stats)
}
