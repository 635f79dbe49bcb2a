package depot

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/atm/models"
)

// Unbounded marks a denomination the depot never runs out of.
const Unbounded int64 = -1

// Slot is the stock of one denomination.
type Slot struct {
	Banknote models.Banknote `json:"banknote"`
	Count    int64           `json:"count"`
}

// Store keeps banknote stock.
type Store interface {
	// Take removes all requested notes or none of them.
	Take(ctx context.Context, want map[models.Banknote]int64) error
	// Load adds count notes, or makes the denomination unbounded when count is Unbounded.
	Load(ctx context.Context, note models.Banknote, count int64) error
	Stock(ctx context.Context) ([]Slot, error)
}

type Depot struct {
	store  Store
	logger *slog.Logger
}

func New(logger *slog.Logger, store Store) *Depot {
	return &Depot{
		store:  store,
		logger: logger.With(slog.String("component", "depot")),
	}
}

// ReleaseBanknotes hands out the notes. When any denomination is short
// nothing is released and ErrOutOfBanknotes is returned.
func (d *Depot) ReleaseBanknotes(ctx context.Context, banknotes []models.Banknote) error {
	if len(banknotes) == 0 {
		return nil
	}

	want := make(map[models.Banknote]int64)
	for _, b := range banknotes {
		want[b]++
	}

	err := d.store.Take(ctx, want)
	if errors.Is(err, models.ErrDepot) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDepot, err)
	}

	d.logger.Info("banknotes released", slog.Int("count", len(banknotes)))

	return nil
}

func (d *Depot) Load(ctx context.Context, note models.Banknote, count int64) error {
	if count < Unbounded {
		return fmt.Errorf("invalid banknote count %d", count)
	}

	return d.store.Load(ctx, note, count)
}

func (d *Depot) Stock(ctx context.Context) ([]Slot, error) {
	return d.store.Stock(ctx)
}

func sortSlots(slots []Slot) {
	slices.SortFunc(slots, func(a, b Slot) bool {
		if a.Banknote.Currency != b.Banknote.Currency {
			return a.Banknote.Currency < b.Banknote.Currency
		}
		return a.Banknote.Value < b.Banknote.Value
	})
}
