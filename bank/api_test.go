package bank_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/bank"
	"github.com/alovak/atm-playground/bank/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newRouter() chi.Router {
	router := chi.NewRouter()
	ledger := bank.NewLedger(slog.New(slog.NewTextHandler(io.Discard)), bank.NewRepository())
	bank.NewAPI(ledger).AppendRoutes(router)
	return router
}

func createAccount(t *testing.T, router http.Handler, balance int64) models.Account {
	t.Helper()
	jsonReq, _ := json.Marshal(models.CreateAccount{Balance: balance, Currency: "PL"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/accounts", bytes.NewBuffer(jsonReq))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	account := models.Account{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	return account
}

func TestAPI(t *testing.T) {
	router := newRouter()

	t.Run("create account", func(t *testing.T) {
		account := createAccount(t, router, 10_00)

		require.Equal(t, int64(10_00), account.AvailableBalance)
		require.Equal(t, "PL", account.Currency)
		require.NotEmpty(t, account.ID)
	})

	t.Run("unknown account", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts/nope", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("transaction lifecycle", func(t *testing.T) {
		account := createAccount(t, router, 100)
		base := "/transactions/" + account.ID + "/123456"

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, base+"/start", nil))
		require.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, base+"/charge", bytes.NewBufferString(`{"amount":500,"currency":"PL"}`)))
		require.Equal(t, http.StatusPaymentRequired, w.Code)
		require.Contains(t, w.Body.String(), `"code":"insufficient_funds"`)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, base+"/abort", nil))
		require.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, base+"/commit", nil))
		require.Equal(t, http.StatusConflict, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts/"+account.ID+"/transactions", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var transactions []models.Transaction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transactions))
		require.Len(t, transactions, 1)
		require.Equal(t, models.TransactionStatusAborted, transactions[0].Status)
	})

	t.Run("invalid authorization code", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/transactions/acc/abc/start", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClient(t *testing.T) {
	router := newRouter()
	srv := httptest.NewServer(router)
	defer srv.Close()

	account := createAccount(t, router, 300)
	client := bank.NewClient(srv.URL, srv.Client())
	ctx := context.Background()
	token := atmmodels.AuthenticationToken{AuthorizationCode: 99, UserID: account.ID}
	money := atmmodels.Money{Amount: 200, Currency: atmmodels.CurrencyPL}

	require.NoError(t, client.StartTransaction(ctx, token))
	require.ErrorIs(t, client.StartTransaction(ctx, token), bank.ErrConflict)
	require.ErrorIs(t, client.Charge(ctx, token, atmmodels.Money{Amount: 200, Currency: atmmodels.CurrencyEUR}), bank.ErrCurrencyMismatch)
	require.NoError(t, client.Charge(ctx, token, money))
	require.NoError(t, client.Commit(ctx, token))
	require.ErrorIs(t, client.Abort(ctx, token), bank.ErrTransactionClosed)

	second := atmmodels.AuthenticationToken{AuthorizationCode: 100, UserID: account.ID}
	require.NoError(t, client.StartTransaction(ctx, second))
	require.ErrorIs(t, client.Charge(ctx, second, money), atmmodels.ErrInsufficientFunds)
	require.NoError(t, client.Abort(ctx, second))

	require.ErrorIs(t, client.StartTransaction(ctx, atmmodels.AuthenticationToken{UserID: "missing"}), bank.ErrNotFound)
}
