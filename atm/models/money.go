package models

import "fmt"

type Currency string

const (
	CurrencyPL  Currency = "PL"
	CurrencyEUR Currency = "EUR"
)

// Money is an amount in whole units of a currency.
type Money struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
