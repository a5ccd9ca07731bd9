// Package directory maps local persons to their external payment
// identities, creating them upstream on first use.
package directory

import (
	"fmt"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
)

// CustomerCreator is the single provider call the directory needs.
type CustomerCreator interface {
	CreateCustomer(email, name string) (string, error)
}

type Directory struct {
	persons *store.PersonStore
	stripe  CustomerCreator
}

func New(persons *store.PersonStore, stripe CustomerCreator) *Directory {
	return &Directory{persons: persons, stripe: stripe}
}

// EnsureCustomer returns the person's external customer id, creating
// and persisting one on first use. Subsequent calls are pure reads.
// If the local persist fails after the upstream create succeeded, the
// new identity is orphaned upstream; the error is surfaced rather than
// compensated.
func (d *Directory) EnsureCustomer(p *model.Person) (string, error) {
	if p.StripeCustomerID != nil && *p.StripeCustomerID != "" {
		return *p.StripeCustomerID, nil
	}

	customerID, err := d.stripe.CreateCustomer(p.Email, p.Name)
	if err != nil {
		return "", fmt.Errorf("ensure customer: %w", err)
	}
	if err := d.persons.UpdateStripeCustomerID(p.ID, customerID); err != nil {
		return "", fmt.Errorf("ensure customer: persist id: %w", err)
	}
	p.StripeCustomerID = &customerID
	return customerID, nil
}
