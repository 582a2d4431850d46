package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/hub"
	"github.com/vhoang/loto-live/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms/{code}", RoomExists(h))
	r.Get("/ws", ws.Handler(h, log))
	return r
}
