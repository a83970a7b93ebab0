package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/service"
	"sharedlist-sync-server/pkg/response"
)

type StatsHandler struct {
	stats  *service.StatsService
	health *service.HealthService
	logger *slog.Logger
}

func NewStatsHandler(stats *service.StatsService, health *service.HealthService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, health: health, logger: logger}
}

func (h *StatsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Usage(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "")
		return
	}

	response.Success(w, stats)
}

// Healthz reports 500 naming the first unreachable backend.
func (h *StatsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Check(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)

		detail := service.ErrDatabaseUnavailable.Error()
		if errors.Is(err, service.ErrQuotaStoreUnavailable) {
			detail = service.ErrQuotaStoreUnavailable.Error()
		}
		response.InternalError(w, detail)
		return
	}

	response.Success(w, domain.HealthResponse{Status: "ok"})
}
