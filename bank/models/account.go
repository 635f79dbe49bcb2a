package models

import (
	"fmt"

	atmmodels "github.com/alovak/atm-playground/atm/models"
)

type Account struct {
	ID               string `json:"id"`
	Currency         string `json:"currency"`
	AvailableBalance int64  `json:"available_balance"`
	HoldBalance      int64  `json:"hold_balance"`
}

type CreateAccount struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Hold moves amount from the available balance to the hold balance.
func (a *Account) Hold(amount int64) error {
	if a.AvailableBalance < amount {
		return fmt.Errorf("account %s: %w", a.ID, atmmodels.ErrInsufficientFunds)
	}
	a.AvailableBalance -= amount
	a.HoldBalance += amount
	return nil
}

// Capture consumes a previous hold.
func (a *Account) Capture(amount int64) {
	a.HoldBalance -= amount
}

// Release returns a previous hold to the available balance.
func (a *Account) Release(amount int64) {
	a.HoldBalance -= amount
	a.AvailableBalance += amount
}
