package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-duel-server/api"
	"quiz-duel-server/auth"
	"quiz-duel-server/config"
	"quiz-duel-server/game"
	"quiz-duel-server/matchmaking"
	"quiz-duel-server/storage"
	"quiz-duel-server/ws"
)

// setupTestServer wires the full stack around a MemStore whose questions all
// have correct option "A", so tests can answer right or wrong on purpose.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Defaults()
	cfg.JWTSecret = "integration-secret"
	cfg.TotalRounds = 2
	cfg.RoundTimeoutSec = 5
	cfg.VSBannerMS = 20
	cfg.InterRoundMS = 20
	cfg.PreFinalizeMS = 20

	store := storage.NewMemStore(storage.DefaultRatingPolicy())
	qs := make([]storage.QuestionRecord, 0, 6)
	for i := 0; i < 6; i++ {
		qs = append(qs, storage.QuestionRecord{
			Text:          fmt.Sprintf("Question %d?", i+1),
			OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectOption: "A",
			Explanation:   "because",
		})
	}
	store.SeedQuestions(qs)

	validator, err := auth.NewValidator(cfg)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	registry := game.NewRegistry()
	hub := ws.NewHub(cfg, store, validator, registry)
	mm := matchmaking.NewMatchmaker(cfg, store, registry, nil, hub)
	hub.Matchmaker = mm

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := api.NewRouter(api.NewHandler(cfg, store, validator))
	router.HandleFunc("/ws/matchmaking", hub.ServeMatchmaking)
	router.HandleFunc("/ws/game/{id}", hub.ServeGame)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// createGuest registers a guest through the REST API.
func createGuest(t *testing.T, server *httptest.Server, name string) (token, id string) {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/auth/guest", "application/json",
		strings.NewReader(fmt.Sprintf(`{"username":%q}`, name)))
	if err != nil {
		t.Fatalf("guest login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest login returned %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode guest login: %v", err)
	}
	return out.Token, out.User.ID
}

// dialWS opens a WebSocket connection against the test server.
func dialWS(t *testing.T, server *httptest.Server, path, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

// readMsg reads one JSON message from the WebSocket and returns it as a map.
func readMsg(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v\ndata: %s", err, string(data))
	}
	return msg
}

// waitForMsg discards frames until one of the wanted type arrives.
func waitForMsg(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

// sendMsg sends a JSON message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
}

func TestIntegration_FullDuel(t *testing.T) {
	server := setupTestServer(t)

	tokenA, idA := createGuest(t, server, "Alice")
	tokenB, idB := createGuest(t, server, "Bob")

	// Alice queues first and parks; Bob is paired on arrival, so his very
	// first frame is match_found.
	mmA := dialWS(t, server, "/ws/matchmaking", tokenA)
	defer mmA.Close()
	if msg := readMsg(t, mmA); msg["type"] != "matchmaking_start" {
		t.Fatalf("expected matchmaking_start, got %v", msg["type"])
	}

	mmB := dialWS(t, server, "/ws/matchmaking", tokenB)
	defer mmB.Close()
	foundB := readMsg(t, mmB)
	if foundB["type"] != "match_found" {
		t.Fatalf("expected match_found as Bob's first frame, got %v", foundB["type"])
	}
	foundA := waitForMsg(t, mmA, "match_found")

	match := foundA["match"].(map[string]interface{})
	matchID, _ := match["id"].(string)
	if matchID == "" {
		t.Fatalf("match_found carried no match id: %v", foundA)
	}
	if match["player1"].(map[string]interface{})["id"] != idA {
		t.Errorf("expected Alice seated as player1, got %v", match["player1"])
	}
	if match["player2"].(map[string]interface{})["id"] != idB {
		t.Errorf("expected Bob seated as player2, got %v", match["player2"])
	}

	// A third account cannot open the match's game connection.
	tokenC, _ := createGuest(t, server, "Carol")
	intruderURL := "ws" + strings.TrimPrefix(server.URL, "http") +
		"/ws/game/" + matchID + "?token=" + url.QueryEscape(tokenC)
	if _, resp, err := websocket.DefaultDialer.Dial(intruderURL, nil); err == nil {
		t.Errorf("expected the game handshake to reject a non-participant")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for a non-participant, got %v", resp)
	}

	gameA := dialWS(t, server, "/ws/game/"+matchID, tokenA)
	defer gameA.Close()
	gameB := dialWS(t, server, "/ws/game/"+matchID, tokenB)
	defer gameB.Close()

	waitForMsg(t, gameA, "game_start")
	waitForMsg(t, gameB, "game_start")

	// Round 1: both correct, Alice faster.
	q := waitForMsg(t, gameA, "question_start")
	if q["round"] != float64(1) {
		t.Errorf("expected round 1, got %v", q["round"])
	}
	waitForMsg(t, gameB, "question_start")
	sendMsg(t, gameA, map[string]interface{}{"action": "answer", "answer": "A", "time": 1.0})
	sendMsg(t, gameB, map[string]interface{}{"action": "answer", "answer": "A", "time": 5.0})

	re := waitForMsg(t, gameA, "round_end")
	reveal, _ := re["result"].(map[string]interface{})
	if reveal["correct_answer"] != "A" {
		t.Errorf("expected correct_answer A, got %v", reveal["correct_answer"])
	}
	waitForMsg(t, gameB, "round_end")

	// Round 2: Bob answers wrong.
	waitForMsg(t, gameA, "question_start")
	waitForMsg(t, gameB, "question_start")
	sendMsg(t, gameA, map[string]interface{}{"action": "answer", "answer": "A", "time": 1.0})
	sendMsg(t, gameB, map[string]interface{}{"action": "answer", "answer": "B", "time": 2.0})

	endA := waitForMsg(t, gameA, "match_end")
	waitForMsg(t, gameB, "match_end")

	result := endA["result"].(map[string]interface{})
	if result["winner_id"] != idA {
		t.Errorf("expected winner %s, got %v", idA, result["winner_id"])
	}
	p1 := result["player1"].(map[string]interface{})
	p2 := result["player2"].(map[string]interface{})
	if p1["score"] != float64(200) || p2["score"] != float64(70) {
		t.Errorf("expected totals 200 and 70, got %v and %v", p1["score"], p2["score"])
	}
	if p1["new_rating"] != float64(1020) || p2["new_rating"] != float64(985) {
		t.Errorf("expected ratings 1020 and 985, got %v and %v", p1["new_rating"], p2["new_rating"])
	}
	rounds, _ := result["rounds"].([]interface{})
	if len(rounds) != 2 {
		t.Errorf("expected 2 rounds in the result, got %d", len(rounds))
	}

	// The server closes the game connections once the result is delivered.
	gameA.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := gameA.ReadMessage(); err == nil {
		t.Errorf("expected the game connection to close after match_end")
	}

	// The duel is visible through the read API.
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/matches/history", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	defer resp.Body.Close()
	var rows []storage.HistoryRecord
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}
	if !rows[0].IsWinner || rows[0].UserScore != 200 || rows[0].OpponentName != "Bob" {
		t.Errorf("unexpected history row: %+v", rows[0])
	}
	if rows[0].RatingChange != 20 {
		t.Errorf("expected rating change 20, got %d", rows[0].RatingChange)
	}
}

func TestIntegration_CancelFlow(t *testing.T) {
	server := setupTestServer(t)

	tokenA, _ := createGuest(t, server, "Alice")
	mmA := dialWS(t, server, "/ws/matchmaking", tokenA)
	defer mmA.Close()
	if msg := readMsg(t, mmA); msg["type"] != "matchmaking_start" {
		t.Fatalf("expected matchmaking_start, got %v", msg["type"])
	}

	sendMsg(t, mmA, map[string]string{"action": "cancel"})
	if msg := readMsg(t, mmA); msg["type"] != "matchmaking_cancelled" {
		t.Fatalf("expected matchmaking_cancelled, got %v", msg["type"])
	}

	// The queue no longer holds Alice: the next player parks instead of
	// being paired.
	tokenB, _ := createGuest(t, server, "Bob")
	mmB := dialWS(t, server, "/ws/matchmaking", tokenB)
	defer mmB.Close()
	if msg := readMsg(t, mmB); msg["type"] != "matchmaking_start" {
		t.Fatalf("expected matchmaking_start for Bob, got %v", msg["type"])
	}
}

func TestIntegration_UnauthenticatedRejected(t *testing.T) {
	server := setupTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/matchmaking"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Errorf("expected the matchmaking handshake to fail without a token")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 from matchmaking, got %v", resp)
	}

	gameURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/game/some-match"
	if _, resp, err := websocket.DefaultDialer.Dial(gameURL, nil); err == nil {
		t.Errorf("expected the game handshake to fail without a token")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 from game, got %v", resp)
	}

	resp, err := http.Get(server.URL + "/api/profile")
	if err != nil {
		t.Fatalf("profile request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 from profile, got %d", resp.StatusCode)
	}
}
