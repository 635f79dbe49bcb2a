package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alovak/atm-playground/bank/models"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"

	atmmodels "github.com/alovak/atm-playground/atm/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTransactionClosed = errors.New("transaction closed")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
)

// Repository keeps accounts and transactions either in memory or in postgres.
// Balance moves are atomic on both backends.
type Repository struct {
	accounts     map[string]*models.Account
	transactions []*models.Transaction
	byKey        map[string]*models.Transaction

	mu sync.RWMutex
	db *sql.DB
}

func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[string]*models.Account),
		byKey:    make(map[string]*models.Transaction),
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.accounts[account.ID]; ok {
			return fmt.Errorf("account %s exists: %w", account.ID, ErrConflict)
		}
		stored := *account
		r.accounts[account.ID] = &stored
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bank.accounts(account_id, currency, available_balance, hold_balance)
		VALUES ($1,$2,$3,$4)
	`, account.ID, strings.ToUpper(account.Currency), account.AvailableBalance, account.HoldBalance)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		account, ok := r.accounts[accountID]
		if !ok {
			return nil, ErrNotFound
		}
		found := *account
		return &found, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT account_id, currency, available_balance, hold_balance FROM bank.accounts WHERE account_id=$1`, accountID)
	var a models.Account
	if err := row.Scan(&a.ID, &a.Currency, &a.AvailableBalance, &a.HoldBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateTransaction stores a new transaction. The key must be unique.
func (r *Repository) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.byKey[transaction.Key]; ok {
			return fmt.Errorf("transaction %s exists: %w", transaction.Key, ErrConflict)
		}
		stored := *transaction
		r.transactions = append(r.transactions, &stored)
		r.byKey[stored.Key] = &stored
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bank.transactions(tx_id, tx_key, account_id, authorization_code, amount, currency, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, transaction.ID, transaction.Key, transaction.AccountID, transaction.AuthorizationCode,
		transaction.Amount, transaction.Currency, string(transaction.Status), transaction.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s exists: %w", transaction.Key, ErrConflict)
	}
	return err
}

func (r *Repository) GetTransaction(ctx context.Context, key string) (*models.Transaction, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		t, ok := r.byKey[key]
		if !ok {
			return nil, ErrNotFound
		}
		found := *t
		return &found, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT tx_id, tx_key, account_id, authorization_code, amount, currency, status, created_at
		  FROM bank.transactions WHERE tx_key=$1
	`, key)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListTransactions returns all transactions for a given account ID, newest first.
func (r *Repository) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Transaction
		for i := len(r.transactions) - 1; i >= 0; i-- {
			if t := r.transactions[i]; t.AccountID == accountID {
				found := *t
				out = append(out, &found)
			}
		}
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT tx_id, tx_key, account_id, authorization_code, amount, currency, status, created_at
		  FROM bank.transactions WHERE account_id=$1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Charge puts a hold of amount on the transaction's account.
func (r *Repository) Charge(ctx context.Context, key string, amount int64, currency string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		t, ok := r.byKey[key]
		if !ok {
			return ErrNotFound
		}
		if err := checkChargeable(t.Status); err != nil {
			return err
		}
		account, ok := r.accounts[t.AccountID]
		if !ok {
			return fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
		}
		if !strings.EqualFold(account.Currency, currency) {
			return fmt.Errorf("account in %s, charge in %s: %w", account.Currency, currency, ErrCurrencyMismatch)
		}
		if err := account.Hold(amount); err != nil {
			return err
		}
		t.Amount = amount
		t.Currency = strings.ToUpper(currency)
		t.Status = models.TransactionStatusCharged
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return err
	}

	var accountID, status, accountCurrency string
	err = tx.QueryRowContext(ctx, `
		SELECT t.account_id, t.status, a.currency
		  FROM bank.transactions t JOIN bank.accounts a ON a.account_id = t.account_id
		 WHERE t.tx_key=$1 FOR UPDATE
	`, key).Scan(&accountID, &status, &accountCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := checkChargeable(models.TransactionStatus(status)); err != nil {
		return err
	}
	if !strings.EqualFold(accountCurrency, currency) {
		return fmt.Errorf("account in %s, charge in %s: %w", accountCurrency, currency, ErrCurrencyMismatch)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bank.accounts
		   SET available_balance = available_balance - $2,
		       hold_balance      = hold_balance      + $2,
		       updated_at        = now()
		 WHERE account_id=$1 AND available_balance >= $2
	`, accountID, amount)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("account %s: %w", accountID, atmmodels.ErrInsufficientFunds)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE bank.transactions SET amount=$2, currency=$3, status='CHARGED', updated_at=now() WHERE tx_key=$1
	`, key, amount, strings.ToUpper(currency)); err != nil {
		return err
	}
	return tx.Commit()
}

// Terminate commits or aborts an open or charged transaction. Commit
// consumes the hold, abort gives it back to the available balance.
func (r *Repository) Terminate(ctx context.Context, key string, final models.TransactionStatus) error {
	if !final.Terminal() {
		return fmt.Errorf("status %s is not terminal", final)
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		t, ok := r.byKey[key]
		if !ok {
			return ErrNotFound
		}
		if t.Status.Terminal() {
			return fmt.Errorf("transaction %s is %s: %w", key, t.Status, ErrTransactionClosed)
		}
		if t.Status == models.TransactionStatusCharged {
			account, ok := r.accounts[t.AccountID]
			if !ok {
				return fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
			}
			if final == models.TransactionStatusCommitted {
				account.Capture(t.Amount)
			} else {
				account.Release(t.Amount)
			}
		}
		t.Status = final
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return err
	}

	var accountID, status string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT account_id, amount, status FROM bank.transactions WHERE tx_key=$1 FOR UPDATE
	`, key).Scan(&accountID, &amount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if models.TransactionStatus(status).Terminal() {
		return fmt.Errorf("transaction %s is %s: %w", key, status, ErrTransactionClosed)
	}
	if models.TransactionStatus(status) == models.TransactionStatusCharged {
		query := `UPDATE bank.accounts SET hold_balance = hold_balance - $2, updated_at=now() WHERE account_id=$1`
		if final == models.TransactionStatusAborted {
			query = `UPDATE bank.accounts SET hold_balance = hold_balance - $2, available_balance = available_balance + $2, updated_at=now() WHERE account_id=$1`
		}
		if _, err := tx.ExecContext(ctx, query, accountID, amount); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bank.transactions SET status=$2, updated_at=now() WHERE tx_key=$1`, key, string(final)); err != nil {
		return err
	}
	return tx.Commit()
}

// ListUnfinished returns keys of transactions created before the given time
// that were neither committed nor aborted.
func (r *Repository) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var keys []string
		for _, t := range r.transactions {
			if len(keys) == limit {
				break
			}
			if !t.Status.Terminal() && t.CreatedAt.Before(before) {
				keys = append(keys, t.Key)
			}
		}
		return keys, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT tx_key FROM bank.transactions
		 WHERE status IN ('OPEN','CHARGED') AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func checkChargeable(status models.TransactionStatus) error {
	switch {
	case status == models.TransactionStatusOpen:
		return nil
	case status.Terminal():
		return fmt.Errorf("transaction is %s: %w", status, ErrTransactionClosed)
	default:
		return fmt.Errorf("transaction already charged: %w", ErrConflict)
	}
}

func scanTransaction(scan func(dest ...any) error) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	if err := scan(&t.ID, &t.Key, &t.AccountID, &t.AuthorizationCode, &t.Amount, &t.Currency, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
