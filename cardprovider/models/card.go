package models

// Card is what the provider stores about an issued card. The PAN and the PIN
// themselves are never kept, only a keyed PAN hash and a PIN verification value.
type Card struct {
	ID             string
	AccountID      string
	PANHash        string
	Last4          string
	ExpiryYYMM     string
	PVV            string
	FailedAttempts int
	Blocked        bool
}

// IssuedCard is returned once, at issuance.
type IssuedCard struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Number     string `json:"number"`
	ExpiryYYMM string `json:"expiry_yymm"`
}

type RegisterCard struct {
	Number     string
	PIN        int
	AccountID  string
	ExpiryYYMM string
}
