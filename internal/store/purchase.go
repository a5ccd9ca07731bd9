package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coachware/coachpay/internal/model"
)

// PurchaseStore covers the purchase records the orchestration layer
// touches: program enrollments, appointments, and payment rows. The
// core only writes checkout/payment identifiers against them.
type PurchaseStore struct {
	db *sql.DB
}

func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func (s *PurchaseStore) CreateProgram(coachID int64, title string, priceCents int64, currency string) (*model.Program, error) {
	result, err := s.db.Exec(
		`INSERT INTO programs (coach_id, title, price_cents, currency) VALUES (?, ?, ?, ?)`,
		coachID, title, priceCents, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert program: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetProgram(id)
}

func (s *PurchaseStore) GetProgram(id int64) (*model.Program, error) {
	var p model.Program
	var sessionID sql.NullString
	err := s.db.QueryRow(
		`SELECT id, coach_id, title, price_cents, currency, checkout_session_id, created_at FROM programs WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.CoachID, &p.Title, &p.PriceCents, &p.Currency, &sessionID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	if sessionID.Valid {
		p.CheckoutSessionID = &sessionID.String
	}
	return &p, nil
}

func (s *PurchaseStore) SetProgramCheckoutSession(id int64, sessionID string) error {
	_, err := s.db.Exec(`UPDATE programs SET checkout_session_id = ? WHERE id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("set program checkout session: %w", err)
	}
	return nil
}

func (s *PurchaseStore) CreateAppointment(coachID, clientID int64, description string, priceCents int64, currency string, startsAt time.Time) (*model.Appointment, error) {
	result, err := s.db.Exec(
		`INSERT INTO appointments (coach_id, client_id, description, price_cents, currency, starts_at) VALUES (?, ?, ?, ?, ?, ?)`,
		coachID, clientID, description, priceCents, currency, startsAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAppointment(id)
}

func (s *PurchaseStore) GetAppointment(id int64) (*model.Appointment, error) {
	var a model.Appointment
	var sessionID sql.NullString
	err := s.db.QueryRow(
		`SELECT id, coach_id, client_id, description, price_cents, currency, starts_at, checkout_session_id, created_at FROM appointments WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.CoachID, &a.ClientID, &a.Description, &a.PriceCents, &a.Currency, &a.StartsAt, &sessionID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if sessionID.Valid {
		a.CheckoutSessionID = &sessionID.String
	}
	return &a, nil
}

func (s *PurchaseStore) SetAppointmentCheckoutSession(id int64, sessionID string) error {
	_, err := s.db.Exec(`UPDATE appointments SET checkout_session_id = ? WHERE id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("set appointment checkout session: %w", err)
	}
	return nil
}

func (s *PurchaseStore) CreatePayment(coachID int64, kind string, amountCents, feeCents int64, currency, description, paymentIntentID string) (*model.Payment, error) {
	var intentID any
	if paymentIntentID != "" {
		intentID = paymentIntentID
	}
	result, err := s.db.Exec(
		`INSERT INTO payments (coach_id, kind, amount_cents, fee_cents, currency, description, payment_intent_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		coachID, kind, amountCents, feeCents, currency, description, intentID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPayment(id)
}

func (s *PurchaseStore) ListPaymentsByCoach(coachID int64) ([]*model.Payment, error) {
	rows, err := s.db.Query(
		`SELECT id, coach_id, kind, amount_cents, fee_cents, currency, description, payment_intent_id, created_at FROM payments WHERE coach_id = ? ORDER BY created_at DESC, id DESC`,
		coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		var p model.Payment
		var intentID sql.NullString
		err := rows.Scan(&p.ID, &p.CoachID, &p.Kind, &p.AmountCents, &p.FeeCents, &p.Currency, &p.Description, &intentID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if intentID.Valid {
			p.PaymentIntentID = &intentID.String
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (s *PurchaseStore) GetPayment(id int64) (*model.Payment, error) {
	var p model.Payment
	var intentID sql.NullString
	err := s.db.QueryRow(
		`SELECT id, coach_id, kind, amount_cents, fee_cents, currency, description, payment_intent_id, created_at FROM payments WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.CoachID, &p.Kind, &p.AmountCents, &p.FeeCents, &p.Currency, &p.Description, &intentID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if intentID.Valid {
		p.PaymentIntentID = &intentID.String
	}
	return &p, nil
}
