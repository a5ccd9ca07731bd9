package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// WebhookEventStore tracks processed provider event ids. Delivery is
// at-least-once, so side effects must be gated on a successful insert.
type WebhookEventStore struct {
	db *sql.DB
}

func NewWebhookEventStore(db *sql.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// MarkProcessing records the event id before side effects run. It
// returns false if the id was already recorded (duplicate delivery).
func (s *WebhookEventStore) MarkProcessing(eventID, eventType string) (bool, error) {
	_, err := s.db.Exec(
		`INSERT INTO webhook_events (event_id, type) VALUES (?, ?)`,
		eventID, eventType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	return true, nil
}

// Unmark removes a partially-applied event so the provider retry can
// reapply it. Called when a dispatch handler errors after MarkProcessing.
func (s *WebhookEventStore) Unmark(eventID string) error {
	_, err := s.db.Exec(`DELETE FROM webhook_events WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("unmark webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) Seen(eventID string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM webhook_events WHERE event_id = ?`, eventID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return true, nil
}

// DeleteOlderThan prunes processed-event rows past the retention window.
func (s *WebhookEventStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM webhook_events WHERE processed_at <= ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune webhook events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
