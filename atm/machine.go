package atm

import (
	"context"
	"time"

	"github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/internal/cardgen"
	"golang.org/x/exp/slog"
)

// CardProvider verifies a card and PIN and returns a short-lived token.
type CardProvider interface {
	Authorize(ctx context.Context, card models.Card) (models.AuthenticationToken, error)
}

// Bank runs one monetary transaction per token. Commit and Abort are
// mutually exclusive terminal calls.
type Bank interface {
	StartTransaction(ctx context.Context, token models.AuthenticationToken) error
	Charge(ctx context.Context, token models.AuthenticationToken, money models.Money) error
	Abort(ctx context.Context, token models.AuthenticationToken) error
	Commit(ctx context.Context, token models.AuthenticationToken) error
}

// Depot physically releases banknotes.
type Depot interface {
	ReleaseBanknotes(ctx context.Context, banknotes []models.Banknote) error
}

// Machine orchestrates a withdrawal across the card provider, the bank and
// the money depot. It keeps no state between withdrawals.
type Machine struct {
	cards     CardProvider
	bank      Bank
	depot     Depot
	catalogue *Catalogue
	logger    *slog.Logger
	// abortTimeout bounds the abort, which runs detached from the caller's context
	abortTimeout time.Duration
}

func NewMachine(logger *slog.Logger, cards CardProvider, bank Bank, depot Depot, catalogue *Catalogue) *Machine {
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}

	return &Machine{
		cards:     cards,
		bank:      bank,
		depot:     depot,
		catalogue: catalogue,
		logger:    logger.With(slog.String("component", "machine")),

		abortTimeout: 10 * time.Second,
	}
}

// Withdraw pays out money for the card. Collaborator errors are returned
// unchanged. Once the bank transaction is started it is either committed or
// aborted before Withdraw returns.
func (m *Machine) Withdraw(ctx context.Context, money models.Money, card models.Card) (models.Payment, error) {
	logger := m.logger.With(slog.String("card", cardgen.MaskPAN(card.Number)), slog.String("money", money.String()))

	banknotes, err := m.catalogue.Breakdown(money)
	if err != nil {
		logger.Info("withdrawal rejected", "err", err)
		return models.Payment{}, err
	}

	token, err := m.cards.Authorize(ctx, card)
	if err != nil {
		logger.Info("card authorization failed", "err", err)
		return models.Payment{}, err
	}

	if err := m.bank.StartTransaction(ctx, token); err != nil {
		logger.Error("starting bank transaction", "err", err)
		return models.Payment{}, err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// the caller may be gone; the transaction still has to be terminated
		abortCtx, cancel := context.WithTimeout(context.Background(), m.abortTimeout)
		defer cancel()
		if err := m.bank.Abort(abortCtx, token); err != nil {
			logger.Error("aborting bank transaction", "err", err)
			return
		}
		logger.Info("bank transaction aborted")
	}()

	if err := m.bank.Charge(ctx, token, money); err != nil {
		logger.Info("charging account", "err", err)
		return models.Payment{}, err
	}

	if err := m.depot.ReleaseBanknotes(ctx, banknotes); err != nil {
		logger.Error("releasing banknotes", "err", err)
		return models.Payment{}, err
	}

	if err := m.bank.Commit(ctx, token); err != nil {
		logger.Error("committing bank transaction", "err", err)
		return models.Payment{}, err
	}
	committed = true

	logger.Info("withdrawal completed", slog.Int("banknotes", len(banknotes)))

	return models.Payment{Banknotes: banknotes}, nil
}
