package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/topic"
)

// Deps carries what the handlers need; the websocket endpoint is injected
// so this package stays transport-agnostic about live play.
type Deps struct {
	Store       store.Store
	Topics      *topic.Catalog
	Log         *zap.Logger
	WS          http.HandlerFunc
	CORSOrigins []string
}

func SetupRoutes(d *Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/topics", ListTopics(d))
	r.Post("/rooms", CreateRoom(d))
	r.Post("/rooms/{code}/join", JoinRoom(d))
	r.Get("/rooms/{code}/qr", RoomQR(d))
	r.Get("/ws", d.WS)

	c := cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}
