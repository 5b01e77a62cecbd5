package message

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"chatboard/internal/httputil"
	"chatboard/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	errRequiredFields = "Username and message are required"
	errSaveFailed     = "Failed to save message"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service *Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/webhook", h.Webhook)
	router.Get("/messages", h.ListMessages)
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, errRequiredFields)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, errRequiredFields)
		return
	}

	h.logger.InfoContext(r.Context(), "ingesting message", "username", req.Username)

	msg, err := h.service.Ingest(r.Context(), req.Username, req.Message, sourceAddress(r))
	if err != nil {
		if errors.Is(err, ErrMissingFields) {
			httputil.RespondWithError(w, http.StatusBadRequest, errRequiredFields)
			return
		}
		httputil.RespondWithError(w, http.StatusInternalServerError, errSaveFailed)
		return
	}

	h.metrics.RecordMessageIngested(r.Context())
	h.logger.InfoContext(r.Context(), "message ingested", "message_id", msg.ID, "username", msg.Username)

	httputil.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	messages, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list messages", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	h.metrics.RecordMessagesListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, messages)
}

// queryInt parses a positive integer query parameter, falling back to def
// when the parameter is missing, malformed, or non-positive.
func queryInt(r *http.Request, name string, def int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 1 {
		return def
	}
	return value
}

// sourceAddress reports where the message came from: the first hop of
// X-Forwarded-For when the service sits behind a proxy, RemoteAddr otherwise.
func sourceAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}
