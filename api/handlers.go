package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"quiz-duel-server/auth"
	"quiz-duel-server/config"
	"quiz-duel-server/matcherrors"
	"quiz-duel-server/storage"
)

const (
	bearerPrefix    = "Bearer "
	maxNameLength   = 24
	defaultPageSize = 20
	maxPracticeSize = 50
)

// Handler holds dependencies for API handlers.
type Handler struct {
	Config *config.Config
	Store  storage.GameStore
	Auth   *auth.Validator
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.GameStore, validator *auth.Validator) *Handler {
	return &Handler{
		Config: cfg,
		Store:  store,
		Auth:   validator,
	}
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// extractUserID validates the Authorization header and returns the user ID,
// or empty string on failure.
func (h *Handler) extractUserID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	claims, err := h.Auth.Validate(token)
	if err != nil {
		return ""
	}
	return auth.UserIDFromClaims(claims)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode response: %v", err)
	}
}

// GuestLoginResponse is the JSON structure for /api/auth/guest.
type GuestLoginResponse struct {
	Token string              `json:"token"`
	User  *storage.UserRecord `json:"user"`
}

// GuestLogin mints a session token for a new guest identity and creates its
// user row. The display name is taken from the body when given.
func (h *Handler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	var body struct {
		Username string `json:"username"`
	}
	// An empty or absent body is fine; the name is optional.
	_ = json.NewDecoder(r.Body).Decode(&body)

	username := strings.TrimSpace(body.Username)
	if len(username) > maxNameLength {
		username = username[:maxNameLength]
	}

	token, userID, err := h.Auth.IssueGuestToken(username)
	if err != nil {
		log.Printf("IssueGuestToken: %v", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	if username == "" {
		// Same fallback the token claims carry.
		username = "Guest-" + userID[len(userID)-6:]
	}
	user, err := h.Store.EnsureUser(r.Context(), userID, username, "")
	if err != nil {
		log.Printf("EnsureUser: %v", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, GuestLoginResponse{Token: token, User: user})
}

// Profile returns the authenticated caller's user row.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		log.Printf("GetUser: %v", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries []storage.LeaderboardEntry `json:"entries"`
}

// Leaderboard returns users ordered by rating, best first.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	entries, err := h.Store.ListLeaderboard(r.Context(), limit, offset)
	if err != nil {
		log.Printf("ListLeaderboard: %v", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries})
}

// History returns the match history for the authenticated user, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}

	list, err := h.Store.ListMatchHistory(r.Context(), userID, limit)
	if err != nil {
		log.Printf("ListMatchHistory: %v", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []storage.HistoryRecord{}
	}

	writeJSON(w, http.StatusOK, list)
}

// Categories returns the question category list.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ListCategories: %v", err)
		http.Error(w, "failed to load categories", http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []storage.CategoryRecord{}
	}

	writeJSON(w, http.StatusOK, cats)
}

// PracticeOptions mirrors the option keys used on the game connection.
type PracticeOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// PracticeQuestion is a question stripped of its answer key.
type PracticeQuestion struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Options    PracticeOptions `json:"options"`
	Category   string          `json:"category"`
	Difficulty int             `json:"difficulty"`
}

// RandomQuestions returns random questions for practice. The correct option
// and the explanation never leave the server here.
func (h *Handler) RandomQuestions(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}

	if h.extractUserID(r) == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if count <= 0 {
		count = 10
	}
	if count > maxPracticeSize {
		count = maxPracticeSize
	}
	category := r.URL.Query().Get("category")

	qs, err := h.Store.RandomQuestions(r.Context(), count, category)
	if err != nil {
		if errors.Is(err, matcherrors.ErrInsufficientQuestions) {
			http.Error(w, "not enough questions", http.StatusUnprocessableEntity)
			return
		}
		log.Printf("RandomQuestions: %v", err)
		http.Error(w, "failed to load questions", http.StatusInternalServerError)
		return
	}

	out := make([]PracticeQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, PracticeQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Options:    PracticeOptions{A: q.OptionA, B: q.OptionB, C: q.OptionC, D: q.OptionD},
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
