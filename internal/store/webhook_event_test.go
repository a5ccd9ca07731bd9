package store

import (
	"testing"
	"time"
)

func TestWebhookEventMarkProcessing(t *testing.T) {
	ws := NewWebhookEventStore(setupTestDB(t))

	fresh, err := ws.MarkProcessing("evt_1", "customer.subscription.updated")
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if !fresh {
		t.Error("expected first delivery to be fresh")
	}

	dup, err := ws.MarkProcessing("evt_1", "customer.subscription.updated")
	if err != nil {
		t.Fatalf("mark duplicate: %v", err)
	}
	if dup {
		t.Error("expected duplicate delivery to be rejected")
	}
}

func TestWebhookEventUnmark(t *testing.T) {
	ws := NewWebhookEventStore(setupTestDB(t))

	ws.MarkProcessing("evt_2", "customer.updated")
	if err := ws.Unmark("evt_2"); err != nil {
		t.Fatalf("unmark: %v", err)
	}

	// After unmark, a retry delivery applies again.
	fresh, err := ws.MarkProcessing("evt_2", "customer.updated")
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if !fresh {
		t.Error("expected retry after unmark to be fresh")
	}
}

func TestWebhookEventSeen(t *testing.T) {
	ws := NewWebhookEventStore(setupTestDB(t))

	seen, err := ws.Seen("evt_3")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Error("expected unseen event")
	}

	ws.MarkProcessing("evt_3", "account.updated")
	seen, _ = ws.Seen("evt_3")
	if !seen {
		t.Error("expected seen event after mark")
	}
}

func TestWebhookEventDeleteOlderThan(t *testing.T) {
	ws := NewWebhookEventStore(setupTestDB(t))

	ws.MarkProcessing("evt_old", "account.updated")
	n, err := ws.DeleteOlderThan(time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	seen, _ := ws.Seen("evt_old")
	if seen {
		t.Error("expected pruned event to be unseen")
	}
}
