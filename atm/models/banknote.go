package models

import "fmt"

// Banknote is a single note of a given face value.
type Banknote struct {
	Currency Currency `json:"currency"`
	Value    int64    `json:"value"`
}

var (
	PL10  = Banknote{Currency: CurrencyPL, Value: 10}
	PL20  = Banknote{Currency: CurrencyPL, Value: 20}
	PL50  = Banknote{Currency: CurrencyPL, Value: 50}
	PL100 = Banknote{Currency: CurrencyPL, Value: 100}
	PL200 = Banknote{Currency: CurrencyPL, Value: 200}
)

func (b Banknote) String() string {
	return fmt.Sprintf("%s%d", b.Currency, b.Value)
}

// Payment is the result of a withdrawal, banknotes ordered ascending by face value.
type Payment struct {
	Banknotes []Banknote `json:"banknotes"`
}

// Total returns the sum of all banknote values.
func (p Payment) Total() int64 {
	var sum int64
	for _, b := range p.Banknotes {
		sum += b.Value
	}
	return sum
}
