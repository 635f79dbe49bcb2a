package cardprovider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alovak/atm-playground/cardprovider/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Repository keeps cards in memory indexed by PAN hash.
type Repository struct {
	mu     sync.RWMutex
	byHash map[string]*models.Card
	// codes issued per account; a token never repeats for an account
	codes map[string]map[int]struct{}
}

func NewRepository() *Repository {
	return &Repository{
		byHash: make(map[string]*models.Card),
		codes:  make(map[string]map[int]struct{}),
	}
}

// ReserveCode records code as issued for the account. It reports false when
// the account already received that code.
func (r *Repository) ReserveCode(_ context.Context, accountID string, code int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	used, ok := r.codes[accountID]
	if !ok {
		used = make(map[int]struct{})
		r.codes[accountID] = used
	}
	if _, taken := used[code]; taken {
		return false, nil
	}
	used[code] = struct{}{}
	return true, nil
}

func (r *Repository) CreateCard(_ context.Context, card *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHash[card.PANHash]; ok {
		return fmt.Errorf("card number exists: %w", ErrConflict)
	}
	stored := *card
	r.byHash[card.PANHash] = &stored
	return nil
}

// ExistsPANHash reports whether a card with the PAN hash is stored.
func (r *Repository) ExistsPANHash(_ context.Context, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byHash[hash]
	return ok, nil
}

func (r *Repository) FindByPANHash(_ context.Context, hash string) (*models.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	found := *card
	return &found, nil
}

// RecordFailedAttempt counts a wrong PIN and blocks the card once
// maxAttempts is reached.
func (r *Repository) RecordFailedAttempt(_ context.Context, hash string, maxAttempts int) (blocked bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.byHash[hash]
	if !ok {
		return false, ErrNotFound
	}
	card.FailedAttempts++
	if card.FailedAttempts >= maxAttempts {
		card.Blocked = true
	}
	return card.Blocked, nil
}

func (r *Repository) ResetAttempts(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.byHash[hash]
	if !ok {
		return ErrNotFound
	}
	card.FailedAttempts = 0
	return nil
}
