package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/internal/lobby"
	"github.com/DoyleJ11/versus-relay/internal/store"
	"github.com/DoyleJ11/versus-relay/internal/ws"
)

type Deps struct {
	Lobby *lobby.Lobby
	Store store.Store
	WS    ws.Options
	Log   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Lobby, d.WS, d.Log))
	r.Get("/players", Players(d.Lobby))
	r.Post("/matches", NextMatch(d.Store, d.Log))
	r.Route("/scores", func(r chi.Router) {
		r.Get("/", HighScores(d.Store, d.Log))
		r.Post("/", SaveScore(d.Store, d.Log))
		r.Get("/multiplayer", MultiplayerScores(d.Store, d.Log))
	})
	return r
}
