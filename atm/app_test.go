package atm_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/atm"
	bankmodels "github.com/alovak/atm-playground/bank/models"
	cardmodels "github.com/alovak/atm-playground/cardprovider/models"
)

func TestEndToEndWithdrawal(t *testing.T) {
	config := atm.DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.ISO8583Addr = "127.0.0.1:0"
	config.RepoBackend = "mem"
	config.BankURL = ""
	config.RedisAddr = ""
	config.Stock = []atm.StockEntry{
		{Currency: "PL", Value: 10, Count: 5},
		{Currency: "PL", Value: 20, Count: 5},
		{Currency: "PL", Value: 50, Count: 5},
		{Currency: "PL", Value: 100, Count: 5},
		{Currency: "PL", Value: 200, Count: 1},
	}

	app := atm.NewApp(slog.New(slog.NewTextHandler(io.Discard)), config)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)

	base := "http://" + app.Addr

	post := func(t *testing.T, path string, body any, out any) int {
		t.Helper()
		data, err := json.Marshal(body)
		require.NoError(t, err)

		resp, err := http.Post(base+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		defer resp.Body.Close()

		if out != nil && resp.StatusCode < 300 {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
		}
		return resp.StatusCode
	}

	account := bankmodels.Account{}
	require.Equal(t, http.StatusCreated, post(t, "/accounts", bankmodels.CreateAccount{Balance: 500, Currency: "PL"}, &account))

	card := cardmodels.IssuedCard{}
	require.Equal(t, http.StatusCreated, post(t, "/cards", map[string]any{"account_id": account.ID, "pin": 1234}, &card))

	withdraw := func(amount string, pin int) int {
		return post(t, "/withdrawals", map[string]any{
			"amount":      amount,
			"currency":    "PL",
			"card_number": card.Number,
			"pin":         pin,
		}, nil)
	}

	require.Equal(t, http.StatusCreated, withdraw("280", 1234))
	require.Equal(t, http.StatusUnauthorized, withdraw("100", 4321))
	require.Equal(t, http.StatusPaymentRequired, withdraw("300", 1234))
	// the single 200 note is gone
	require.Equal(t, http.StatusServiceUnavailable, withdraw("200", 1234))
	require.Equal(t, http.StatusUnprocessableEntity, withdraw("15", 1234))

	resp, err := http.Get(fmt.Sprintf("%s/accounts/%s", base, account.ID))
	require.NoError(t, err)
	defer resp.Body.Close()

	got := bankmodels.Account{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, int64(220), got.AvailableBalance)
	require.Equal(t, int64(0), got.HoldBalance)

	resp, err = http.Get(base + "/-/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
