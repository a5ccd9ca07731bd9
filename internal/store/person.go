package store

import (
	"database/sql"
	"fmt"

	"github.com/coachware/coachpay/internal/model"
)

type PersonStore struct {
	db *sql.DB
}

func NewPersonStore(db *sql.DB) *PersonStore {
	return &PersonStore{db: db}
}

func scanPerson(scanner interface{ Scan(...any) error }) (*model.Person, error) {
	var p model.Person
	var customerID, accountID sql.NullString
	err := scanner.Scan(
		&p.ID, &p.Role, &p.Email, &p.Name, &customerID, &accountID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		p.StripeCustomerID = &customerID.String
	}
	if accountID.Valid {
		p.StripeAccountID = &accountID.String
	}
	return &p, nil
}

const personCols = `id, role, email, name, stripe_customer_id, stripe_account_id, created_at, updated_at`

func (s *PersonStore) Create(role, email, name, passwordHash string) (*model.Person, error) {
	result, err := s.db.Exec(
		`INSERT INTO persons (role, email, name, password_hash) VALUES (?, ?, ?, ?)`,
		role, email, name, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PersonStore) GetByID(id int64) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PersonStore) GetByEmail(email string) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE email = ?`, email)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person by email: %w", err)
	}
	return p, nil
}

// GetByStripeCustomerID maps an external customer id back to the local
// person; the webhook engine keys subscription updates on this.
func (s *PersonStore) GetByStripeCustomerID(customerID string) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE stripe_customer_id = ?`, customerID)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person by stripe customer id: %w", err)
	}
	return p, nil
}

func (s *PersonStore) GetByStripeAccountID(accountID string) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE stripe_account_id = ?`, accountID)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person by stripe account id: %w", err)
	}
	return p, nil
}

func (s *PersonStore) PasswordHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM persons WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

func (s *PersonStore) UpdateStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE persons SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

func (s *PersonStore) UpdateStripeAccountID(id int64, accountID string) error {
	_, err := s.db.Exec(
		`UPDATE persons SET stripe_account_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe account id: %w", err)
	}
	return nil
}

func (s *PersonStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}
