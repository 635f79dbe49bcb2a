package models

// Card is what the customer inserts: the card number and the PIN typed on the keypad.
type Card struct {
	Number string
	PIN    int
}

// AuthenticationToken is produced by the card provider and scopes one bank transaction.
// UserID is the bank account that owns the card.
type AuthenticationToken struct {
	AuthorizationCode int    `json:"authorization_code"`
	UserID            string `json:"user_id"`
}
