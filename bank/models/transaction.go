package models

import "time"

type TransactionStatus string

const (
	TransactionStatusOpen      TransactionStatus = "OPEN"
	TransactionStatusCharged   TransactionStatus = "CHARGED"
	TransactionStatusCommitted TransactionStatus = "COMMITTED"
	TransactionStatusAborted   TransactionStatus = "ABORTED"
)

// Terminal reports whether no further calls are accepted in this status.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCommitted || s == TransactionStatusAborted
}

// Transaction is one withdrawal on an account, identified by the key derived
// from the authentication token.
type Transaction struct {
	ID                string            `json:"id"`
	Key               string            `json:"key"`
	AccountID         string            `json:"account_id"`
	AuthorizationCode int               `json:"authorization_code"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
}
