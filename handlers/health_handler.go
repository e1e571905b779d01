package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by repositories.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	responder
	store Pinger
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		responder: responder{logger: logger.With(slog.String("handler", "health"))},
		store:     store,
	}
}

// Healthz godoc
// @Summary      Liveness and storage check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /healthz [get]
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("storage ping failed", slog.Any("error", err))
		h.errorResponse(w, r, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	h.ok(w, r, http.StatusOK, map[string]string{"status": "ok"}, nil)
}
