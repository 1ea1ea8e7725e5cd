package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types published to the analytics topic.
const (
	EventQueueJoined    = "queue_joined"
	EventMatchCreated   = "match_created"
	EventRoundCompleted = "round_completed"
	EventMatchCompleted = "match_completed"
)

// BaseEvent carries the fields shared by every analytics event.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	MatchID   string    `json:"match_id,omitempty"`
}

// QueueJoinedEvent records a player entering the matchmaking queue.
type QueueJoinedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// MatchCreatedEvent records a successful pairing.
type MatchCreatedEvent struct {
	BaseEvent
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id"`
}

// RoundCompletedEvent records the per-round scores after a round closes.
type RoundCompletedEvent struct {
	BaseEvent
	Round        int    `json:"round"`
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
}

// MatchCompletedEvent records the final outcome of a match. Aborted marks
// endings that were forced without a durable settlement.
type MatchCompletedEvent struct {
	BaseEvent
	WinnerID     string `json:"winner_id,omitempty"`
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Aborted      bool   `json:"aborted"`
}

// Service publishes match lifecycle events to Kafka. A nil Service, or one
// built with no brokers, drops every event so call sites never need a guard.
type Service struct {
	writer  *kafka.Writer
	enabled bool
}

// NewService builds a producer writing to the given brokers. With no brokers
// configured the service is disabled and every emit is a no-op.
func NewService(brokers []string, topic string) *Service {
	if len(brokers) == 0 {
		return &Service{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "tag", "analytics")
		}),
	}
	slog.Info("analytics producer enabled", "topic", topic, "tag", "analytics")
	return &Service{writer: writer, enabled: true}
}

// Enabled reports whether events are actually published.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Close flushes buffered messages and shuts the writer down.
func (s *Service) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// QueueJoined emits a queue_joined event.
func (s *Service) QueueJoined(userID string) {
	if !s.Enabled() {
		return
	}
	s.emit(userID, QueueJoinedEvent{
		BaseEvent: newBase(EventQueueJoined, ""),
		UserID:    userID,
	})
}

// MatchCreated emits a match_created event.
func (s *Service) MatchCreated(matchID, p1ID, p2ID string) {
	if !s.Enabled() {
		return
	}
	s.emit(matchID, MatchCreatedEvent{
		BaseEvent: newBase(EventMatchCreated, matchID),
		Player1ID: p1ID,
		Player2ID: p2ID,
	})
}

// RoundCompleted emits a round_completed event with both per-round scores.
func (s *Service) RoundCompleted(matchID string, round int, p1ID, p2ID string, s1, s2 int) {
	if !s.Enabled() {
		return
	}
	s.emit(matchID, RoundCompletedEvent{
		BaseEvent:    newBase(EventRoundCompleted, matchID),
		Round:        round,
		Player1ID:    p1ID,
		Player2ID:    p2ID,
		Player1Score: s1,
		Player2Score: s2,
	})
}

// MatchCompleted emits a match_completed event. winnerID is empty on a draw.
func (s *Service) MatchCompleted(matchID, winnerID, p1ID, p2ID string, s1, s2 int, aborted bool) {
	if !s.Enabled() {
		return
	}
	s.emit(matchID, MatchCompletedEvent{
		BaseEvent:    newBase(EventMatchCompleted, matchID),
		WinnerID:     winnerID,
		Player1ID:    p1ID,
		Player2ID:    p2ID,
		Player1Score: s1,
		Player2Score: s2,
		Aborted:      aborted,
	})
}

func newBase(eventType, matchID string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		MatchID:   matchID,
	}
}

// emit marshals and hands the event to the async writer. The key keeps all
// events of one match on the same partition.
func (s *Service) emit(key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal analytics event", "error", err, "tag", "analytics")
		return
	}
	msg := kafka.Message{Key: []byte(key), Value: data, Time: time.Now()}
	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		slog.Error("failed to publish analytics event", "error", err, "tag", "analytics")
	}
}
