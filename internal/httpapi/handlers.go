package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/internal/lobby"
	"github.com/DoyleJ11/versus-relay/internal/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxLimit), true
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type playerView struct {
	Name     string `json:"name"`
	ShipType int    `json:"ship_type"`
	MatchID  int    `json:"match_id"`
	Health   int    `json:"health"`
	Score    int    `json:"score"`
	Alive    bool   `json:"alive"`
}

func Players(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := lb.State(r.Context())
		if err != nil {
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}
		players := make([]playerView, 0, len(v.Sessions))
		for _, s := range v.Sessions {
			players = append(players, playerView{
				Name:     s.Name,
				ShipType: s.ShipType,
				MatchID:  s.MatchID,
				Health:   s.Health,
				Score:    s.Score,
				Alive:    s.Alive,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			State         string       `json:"state"`
			MaxEverJoined int          `json:"max_ever_joined"`
			Players       []playerView `json:"players"`
		}{string(v.State), v.MaxEverJoined, players})
	}
}

func NextMatch(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := st.NextMatchID(r.Context())
		if err != nil {
			log.Error("next match id", zap.Error(err))
			http.Error(w, "failed to allocate match", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			MatchID int `json:"match_id"`
		}{id})
	}
}

func HighScores(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(r)
		if !ok {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		scores, err := st.HighScores(r.Context(), limit)
		if err != nil {
			log.Error("high scores", zap.Error(err))
			http.Error(w, "failed to load scores", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Scores []string `json:"scores"`
		}{scores})
	}
}

func MultiplayerScores(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(r)
		if !ok {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		scores, err := st.MultiplayerHighScores(r.Context(), limit)
		if err != nil {
			log.Error("multiplayer scores", zap.Error(err))
			http.Error(w, "failed to load scores", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Scores []string `json:"scores"`
		}{scores})
	}
}

type gameResultRequest struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Level      int    `json:"level"`
	Difficulty string `json:"difficulty"`
}

func SaveScore(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gameResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := st.SaveGameResult(r.Context(), req.Name, req.Score, req.Level, req.Difficulty); err != nil {
			log.Error("save game result", zap.String("player", req.Name), zap.Error(err))
			http.Error(w, "failed to save score", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}
