package atm

import (
	"fmt"

	"github.com/alovak/atm-playground/atm/models"
	"golang.org/x/exp/slices"
)

// Catalogue is the fixed set of banknote face values available per currency.
// It is not mutated after construction.
type Catalogue struct {
	// denominations are kept in descending order
	denominations map[models.Currency][]int64
	maxAmount     int64
}

const (
	// DefaultMaxAmount is the largest single withdrawal a catalogue accepts
	// unless WithMaxAmount says otherwise.
	DefaultMaxAmount int64 = 20_000
	// maxSearchAmount bounds the table used by minimalCount and therefore
	// any limit set with WithMaxAmount.
	maxSearchAmount int64 = 1_000_000
	// MaxNotes is the most banknotes a single payment may hold.
	MaxNotes int64 = 1_000
)

func NewCatalogue(denominations map[models.Currency][]int64) *Catalogue {
	c := &Catalogue{
		denominations: make(map[models.Currency][]int64, len(denominations)),
		maxAmount:     DefaultMaxAmount,
	}
	for cur, values := range denominations {
		sorted := make([]int64, 0, len(values))
		for _, v := range values {
			if v > 0 && !slices.Contains(sorted, v) {
				sorted = append(sorted, v)
			}
		}
		slices.SortFunc(sorted, func(a, b int64) bool { return a > b })
		c.denominations[cur] = sorted
	}
	return c
}

func DefaultCatalogue() *Catalogue {
	return NewCatalogue(map[models.Currency][]int64{
		models.CurrencyPL:  {10, 20, 50, 100, 200},
		models.CurrencyEUR: {5, 10, 20, 50, 100, 200, 500},
	})
}

// WithMaxAmount returns a copy of the catalogue that rejects amounts above
// limit. The limit is clamped to 1..1_000_000.
func (c *Catalogue) WithMaxAmount(limit int64) *Catalogue {
	if limit <= 0 {
		limit = DefaultMaxAmount
	}
	if limit > maxSearchAmount {
		limit = maxSearchAmount
	}
	return &Catalogue{denominations: c.denominations, maxAmount: limit}
}

// MaxAmount is the largest amount Breakdown accepts.
func (c *Catalogue) MaxAmount() int64 {
	return c.maxAmount
}

// Denominations returns the face values for the currency in ascending order.
func (c *Catalogue) Denominations(cur models.Currency) []models.Banknote {
	values := c.denominations[cur]
	notes := make([]models.Banknote, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		notes = append(notes, models.Banknote{Currency: cur, Value: values[i]})
	}
	return notes
}

// Breakdown splits the amount into banknotes, ascending by face value.
// It has no side effects and is used both to validate the request and to
// build the payment.
func (c *Catalogue) Breakdown(money models.Money) ([]models.Banknote, error) {
	values, ok := c.denominations[money.Currency]
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("%q: %w", money.Currency, models.ErrUnsupportedCurrency)
	}
	if money.Amount <= 0 {
		return nil, fmt.Errorf("amount %d must be positive: %w", money.Amount, models.ErrWrongAmount)
	}
	if money.Amount > c.maxAmount {
		return nil, fmt.Errorf("amount %d exceeds the limit of %d: %w", money.Amount, c.maxAmount, models.ErrWrongAmount)
	}

	counts, ok := greedy(money.Amount, values)
	if !ok {
		// greedy is exact for canonical sets only
		counts, ok = minimalCount(money.Amount, values)
	}
	if !ok {
		return nil, fmt.Errorf("%s is not payable in available banknotes: %w", money, models.ErrWrongAmount)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	if total > MaxNotes {
		return nil, fmt.Errorf("%s needs %d banknotes, at most %d fit: %w", money, total, MaxNotes, models.ErrWrongAmount)
	}

	notes := make([]models.Banknote, 0, total)
	for i := len(values) - 1; i >= 0; i-- {
		for n := int64(0); n < counts[i]; n++ {
			notes = append(notes, models.Banknote{Currency: money.Currency, Value: values[i]})
		}
	}
	return notes, nil
}

// greedy takes the largest denomination not exceeding the remaining amount
// until nothing is left. values must be in descending order.
func greedy(amount int64, values []int64) ([]int64, bool) {
	counts := make([]int64, len(values))
	remaining := amount
	for i, v := range values {
		counts[i] = remaining / v
		remaining -= counts[i] * v
	}
	return counts, remaining == 0
}

// minimalCount finds the decomposition with the fewest notes. Breakdown
// never calls it with more than maxSearchAmount.
func minimalCount(amount int64, values []int64) ([]int64, bool) {
	const none = -1
	best := make([]int, amount+1)
	last := make([]int, amount+1)
	for a := int64(1); a <= amount; a++ {
		best[a] = none
		for i, v := range values {
			if v > a || best[a-v] == none {
				continue
			}
			if best[a] == none || best[a-v]+1 < best[a] {
				best[a] = best[a-v] + 1
				last[a] = i
			}
		}
	}
	if best[amount] == none {
		return nil, false
	}
	counts := make([]int64, len(values))
	for a := amount; a > 0; a -= values[last[a]] {
		counts[last[a]]++
	}
	return counts, true
}
