package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/hotel-checkin/backend/internal/handler/face"
	middlewarePkg "github.com/zhouzirui/hotel-checkin/backend/internal/middleware"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/stream"
	"github.com/zhouzirui/hotel-checkin/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(manager *stream.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": manager.Registry().Len(),
		})
	})

	// Recognition stream lives outside /api: the frontend dials ws://host/ws/face
	wsHandler := face.NewWebSocketHandler(manager)
	r.Get("/ws/face", wsHandler.HandleWebSocket)

	r.Route("/api", func(api chi.Router) {
		faceHandler := face.New(manager)
		faceHandler.RegisterRoutes(api)
	})

	return r
}
