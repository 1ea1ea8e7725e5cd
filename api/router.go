package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts the REST endpoints. WebSocket routes are added by the
// caller on the returned router so everything serves from one port.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/guest", h.GuestLogin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/profile", h.Profile).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/leaderboard", h.Leaderboard).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/matches/history", h.History).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/categories", h.Categories).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/questions/random", h.RandomQuestions).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}
