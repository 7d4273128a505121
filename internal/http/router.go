package http

import (
	"net/http"

	"github.com/SteamVC/steamvc-relay/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter はHTTPルーターを作成します
// ルームのエンドポイントはルート直下と /api/v1 の両方に登録します
func NewRouter(h *handlers.RoomHandler, wsHandler *handlers.WebSocketHandler, metricsHandler http.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	healthz := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Get("/healthz", healthz)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// WebSocketエンドポイント
	r.Get("/ws", wsHandler.HandleWebSocket)

	roomRoutes := func(r chi.Router) {
		r.Get("/create-room", h.CreateRedirect)
		r.Post("/create-room", h.Create)
		r.Get("/room/{roomId}", h.Get)
		r.Get("/rooms", h.List)
		r.Get("/active-rooms", h.ActiveRooms)
	}
	roomRoutes(r)
	r.Route("/api/v1", func(r chi.Router) {
		roomRoutes(r)
		r.Get("/healthz", healthz)
		r.Get("/ws", wsHandler.HandleWebSocket)
	})

	return r
}
