package store

import (
	"database/sql"
	"testing"

	"github.com/coachware/coachpay/internal/database"
	"github.com/coachware/coachpay/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPersonCreate(t *testing.T) {
	ps := NewPersonStore(setupTestDB(t))

	p, err := ps.Create(model.RoleCoach, "alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if p.Role != model.RoleCoach {
		t.Errorf("role = %q, want %q", p.Role, model.RoleCoach)
	}
	if p.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", p.Email, "alice@example.com")
	}
	if p.StripeCustomerID != nil {
		t.Error("expected nil stripe customer id on create")
	}
	if p.StripeAccountID != nil {
		t.Error("expected nil stripe account id on create")
	}
}

func TestPersonGetByIDNotFound(t *testing.T) {
	ps := NewPersonStore(setupTestDB(t))

	p, err := ps.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if p != nil {
		t.Error("expected nil for nonexistent id")
	}
}

func TestPersonUpdateStripeCustomerID(t *testing.T) {
	ps := NewPersonStore(setupTestDB(t))

	p, _ := ps.Create(model.RoleClient, "bob@example.com", "Bob", "")
	if err := ps.UpdateStripeCustomerID(p.ID, "cus_123"); err != nil {
		t.Fatalf("update customer id: %v", err)
	}

	got, _ := ps.GetByStripeCustomerID("cus_123")
	if got == nil {
		t.Fatal("expected person by stripe customer id, got nil")
	}
	if got.ID != p.ID {
		t.Errorf("id = %d, want %d", got.ID, p.ID)
	}
}

func TestPersonUpdateStripeAccountID(t *testing.T) {
	ps := NewPersonStore(setupTestDB(t))

	p, _ := ps.Create(model.RoleCoach, "carol@example.com", "Carol", "")
	if err := ps.UpdateStripeAccountID(p.ID, "acct_123"); err != nil {
		t.Fatalf("update account id: %v", err)
	}

	got, _ := ps.GetByStripeAccountID("acct_123")
	if got == nil {
		t.Fatal("expected person by stripe account id, got nil")
	}
	if got.StripeAccountID == nil || *got.StripeAccountID != "acct_123" {
		t.Errorf("stripe account id = %v, want acct_123", got.StripeAccountID)
	}
}

func TestPersonEmailUnique(t *testing.T) {
	ps := NewPersonStore(setupTestDB(t))

	if _, err := ps.Create(model.RoleCoach, "dup@example.com", "One", ""); err != nil {
		t.Fatalf("create person: %v", err)
	}
	if _, err := ps.Create(model.RoleClient, "dup@example.com", "Two", ""); err == nil {
		t.Error("expected unique constraint error for duplicate email")
	}
}
