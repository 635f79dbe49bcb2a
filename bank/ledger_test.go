package bank

import (
	"context"
	"io"
	"testing"
	"time"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/bank/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newTestLedger(t *testing.T, balance int64) (*Ledger, *models.Account) {
	t.Helper()
	ledger := NewLedger(slog.New(slog.NewTextHandler(io.Discard)), NewRepository())
	account, err := ledger.CreateAccount(context.Background(), models.CreateAccount{Balance: balance, Currency: "PL"})
	require.NoError(t, err)
	return ledger, account
}

func pl(amount int64) atmmodels.Money {
	return atmmodels.Money{Amount: amount, Currency: atmmodels.CurrencyPL}
}

func TestLedger_ChargeAndCommit(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 500)
	token := atmmodels.AuthenticationToken{AuthorizationCode: 42, UserID: account.ID}

	require.NoError(t, ledger.StartTransaction(ctx, token))
	require.NoError(t, ledger.Charge(ctx, token, pl(280)))

	acc, err := ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(220), acc.AvailableBalance)
	require.Equal(t, int64(280), acc.HoldBalance)

	require.NoError(t, ledger.Commit(ctx, token))

	acc, err = ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(220), acc.AvailableBalance)
	require.Zero(t, acc.HoldBalance)

	transactions, err := ledger.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	require.Equal(t, models.TransactionStatusCommitted, transactions[0].Status)
	require.Equal(t, int64(280), transactions[0].Amount)
	require.Equal(t, "PL", transactions[0].Currency)
}

func TestLedger_AbortReturnsHeldFunds(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 500)
	token := atmmodels.AuthenticationToken{AuthorizationCode: 42, UserID: account.ID}

	require.NoError(t, ledger.StartTransaction(ctx, token))
	require.NoError(t, ledger.Charge(ctx, token, pl(100)))
	require.NoError(t, ledger.Abort(ctx, token))

	acc, err := ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), acc.AvailableBalance)
	require.Zero(t, acc.HoldBalance)

	require.ErrorIs(t, ledger.Commit(ctx, token), ErrTransactionClosed)
	require.ErrorIs(t, ledger.Abort(ctx, token), ErrTransactionClosed)
}

func TestLedger_AbortWithoutCharge(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 500)
	token := atmmodels.AuthenticationToken{AuthorizationCode: 7, UserID: account.ID}

	require.NoError(t, ledger.StartTransaction(ctx, token))
	require.NoError(t, ledger.Abort(ctx, token))
	require.ErrorIs(t, ledger.Charge(ctx, token, pl(100)), ErrTransactionClosed)
}

func TestLedger_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 50)
	token := atmmodels.AuthenticationToken{AuthorizationCode: 1, UserID: account.ID}

	require.NoError(t, ledger.StartTransaction(ctx, token))
	err := ledger.Charge(ctx, token, pl(100))
	require.ErrorIs(t, err, atmmodels.ErrInsufficientFunds)

	require.NoError(t, ledger.Abort(ctx, token))
	acc, err := ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), acc.AvailableBalance)
}

func TestLedger_Rejections(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 500)
	token := atmmodels.AuthenticationToken{AuthorizationCode: 1, UserID: account.ID}

	t.Run("unknown account", func(t *testing.T) {
		err := ledger.StartTransaction(ctx, atmmodels.AuthenticationToken{AuthorizationCode: 1, UserID: "nobody"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		require.ErrorIs(t, ledger.Charge(ctx, token, pl(10)), ErrNotFound)
		require.ErrorIs(t, ledger.Commit(ctx, token), ErrNotFound)
	})

	require.NoError(t, ledger.StartTransaction(ctx, token))

	t.Run("token reused", func(t *testing.T) {
		require.ErrorIs(t, ledger.StartTransaction(ctx, token), ErrConflict)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		err := ledger.Charge(ctx, token, atmmodels.Money{Amount: 10, Currency: atmmodels.CurrencyEUR})
		require.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("non positive amount", func(t *testing.T) {
		require.ErrorIs(t, ledger.Charge(ctx, token, pl(0)), atmmodels.ErrWrongAmount)
	})

	t.Run("double charge", func(t *testing.T) {
		require.NoError(t, ledger.Charge(ctx, token, pl(10)))
		require.ErrorIs(t, ledger.Charge(ctx, token, pl(10)), ErrConflict)
	})
}

func TestLedger_AbortStale(t *testing.T) {
	ctx := context.Background()
	ledger, account := newTestLedger(t, 500)

	now := time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)
	ledger.nowFn = func() time.Time { return now }

	stale := atmmodels.AuthenticationToken{AuthorizationCode: 1, UserID: account.ID}
	require.NoError(t, ledger.StartTransaction(ctx, stale))
	require.NoError(t, ledger.Charge(ctx, stale, pl(200)))

	now = now.Add(10 * time.Minute)
	fresh := atmmodels.AuthenticationToken{AuthorizationCode: 2, UserID: account.ID}
	require.NoError(t, ledger.StartTransaction(ctx, fresh))

	n, err := ledger.AbortStale(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	acc, err := ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), acc.AvailableBalance)
	require.ErrorIs(t, ledger.Commit(ctx, stale), ErrTransactionClosed)
	require.NoError(t, ledger.Commit(ctx, fresh))
}
