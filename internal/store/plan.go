package store

import (
	"database/sql"
	"fmt"

	"github.com/coachware/coachpay/internal/model"
)

type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

func scanPlan(scanner interface{ Scan(...any) error }) (*model.Plan, error) {
	var p model.Plan
	var addon, active int
	err := scanner.Scan(
		&p.ID, &p.CoachID, &p.Name, &p.AmountCents, &p.Currency, &p.Interval,
		&addon, &p.StripeProductID, &p.StripePriceID, &active,
		&p.CheckoutSessionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Addon = addon != 0
	p.Active = active != 0
	return &p, nil
}

const planCols = `id, coach_id, name, amount_cents, currency, interval, addon, stripe_product_id, stripe_price_id, active, checkout_session_id, created_at, updated_at`

func (s *PlanStore) Create(coachID int64, name string, amountCents int64, currency, interval string, addon bool, productID, priceID string) (*model.Plan, error) {
	addonInt := 0
	if addon {
		addonInt = 1
	}
	result, err := s.db.Exec(
		`INSERT INTO plans (coach_id, name, amount_cents, currency, interval, addon, stripe_product_id, stripe_price_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		coachID, name, amountCents, currency, interval, addonInt, productID, priceID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlanStore) GetByID(id int64) (*model.Plan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *PlanStore) ListActiveByCoach(coachID int64) ([]*model.Plan, error) {
	rows, err := s.db.Query(
		`SELECT `+planCols+` FROM plans WHERE coach_id = ? AND active = 1 ORDER BY created_at DESC`,
		coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *PlanStore) SetCheckoutSession(id int64, sessionID string) error {
	_, err := s.db.Exec(
		`UPDATE plans SET checkout_session_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sessionID, id,
	)
	if err != nil {
		return fmt.Errorf("set plan checkout session: %w", err)
	}
	return nil
}

// Archive soft-deletes the plan. Rows are never hard-deleted because a
// recurring price with live subscribers cannot be removed upstream.
func (s *PlanStore) Archive(id int64) error {
	_, err := s.db.Exec(
		`UPDATE plans SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("archive plan: %w", err)
	}
	return nil
}
