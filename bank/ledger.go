package bank

import (
	"context"
	"fmt"
	"time"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/bank/models"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Ledger is the bank side of a withdrawal. Every call is scoped by the
// authentication token the card provider issued.
type Ledger struct {
	repo   *Repository
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewLedger(logger *slog.Logger, repo *Repository) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger.With(slog.String("component", "ledger")),
		nowFn:  time.Now,
	}
}

// TransactionKey identifies the transaction a token belongs to.
func TransactionKey(token atmmodels.AuthenticationToken) string {
	return fmt.Sprintf("%s/%06d", token.UserID, token.AuthorizationCode)
}

func (l *Ledger) CreateAccount(ctx context.Context, req models.CreateAccount) (*models.Account, error) {
	if req.Balance < 0 || req.Currency == "" {
		return nil, fmt.Errorf("balance must not be negative and currency is required")
	}
	account := &models.Account{
		ID:               uuid.New().String(),
		AvailableBalance: req.Balance,
		Currency:         req.Currency,
	}

	if err := l.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return account, nil
}

func (l *Ledger) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := l.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}

	return account, nil
}

// ListTransactions returns a list of transactions for the given account ID.
func (l *Ledger) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	transactions, err := l.repo.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return transactions, nil
}

func (l *Ledger) StartTransaction(ctx context.Context, token atmmodels.AuthenticationToken) error {
	if _, err := l.repo.GetAccount(ctx, token.UserID); err != nil {
		return fmt.Errorf("finding account: %w", err)
	}
	transaction := &models.Transaction{
		ID:                uuid.New().String(),
		Key:               TransactionKey(token),
		AccountID:         token.UserID,
		AuthorizationCode: token.AuthorizationCode,
		Status:            models.TransactionStatusOpen,
		CreatedAt:         l.nowFn().UTC(),
	}
	if err := l.repo.CreateTransaction(ctx, transaction); err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	l.logger.Info("transaction started", slog.String("tx_id", transaction.ID), slog.String("account_id", token.UserID))

	return nil
}

func (l *Ledger) Charge(ctx context.Context, token atmmodels.AuthenticationToken, money atmmodels.Money) error {
	if money.Amount <= 0 {
		return fmt.Errorf("charge amount must be positive: %w", atmmodels.ErrWrongAmount)
	}
	if err := l.repo.Charge(ctx, TransactionKey(token), money.Amount, string(money.Currency)); err != nil {
		return fmt.Errorf("charging %s: %w", money, err)
	}
	return nil
}

func (l *Ledger) Commit(ctx context.Context, token atmmodels.AuthenticationToken) error {
	if err := l.repo.Terminate(ctx, TransactionKey(token), models.TransactionStatusCommitted); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (l *Ledger) Abort(ctx context.Context, token atmmodels.AuthenticationToken) error {
	if err := l.repo.Terminate(ctx, TransactionKey(token), models.TransactionStatusAborted); err != nil {
		return fmt.Errorf("aborting transaction: %w", err)
	}
	return nil
}

// AbortStale aborts transactions left unfinished for longer than maxAge and
// returns how many were aborted. It covers callers that died mid withdrawal.
func (l *Ledger) AbortStale(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := l.repo.ListUnfinished(ctx, l.nowFn().Add(-maxAge), 500)
	if err != nil {
		return 0, fmt.Errorf("listing unfinished transactions: %w", err)
	}
	aborted := 0
	for _, key := range keys {
		if err := l.repo.Terminate(ctx, key, models.TransactionStatusAborted); err != nil {
			// finished concurrently
			l.logger.Info("skipping stale transaction", slog.String("key", key), slog.Any("err", err))
			continue
		}
		aborted++
	}
	if aborted > 0 {
		l.logger.Info("stale transactions aborted", slog.Int("count", aborted))
	}
	return aborted, nil
}
