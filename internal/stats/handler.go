package stats

import (
	"errors"
	"log/slog"
	"net/http"

	"chatboard/internal/httputil"
	"chatboard/internal/metrics"
	"chatboard/internal/store"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(service *Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/stats", h.GetStats)
	router.Get("/users/{username}/stats", h.GetUserStats)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build stats overview", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	h.metrics.RecordStatsViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, overview)
}

func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	userStats, err := h.service.UserStats(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			httputil.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get user stats", "username", username, "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to load user stats")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, userStats)
}
