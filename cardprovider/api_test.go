package cardprovider_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/cardprovider"
	"github.com/alovak/atm-playground/cardprovider/models"
	"github.com/alovak/atm-playground/internal/cardgen"
	"github.com/alovak/atm-playground/internal/security"
)

func TestAPI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))
	svc := cardprovider.NewService(logger, cardprovider.NewRepository(), security.NewHMACProvider([]byte("k")), cardprovider.Config{})

	router := chi.NewRouter()
	cardprovider.NewAPI(svc).AppendRoutes(router)

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
		return w
	}

	t.Run("issue card", func(t *testing.T) {
		w := post("/cards", `{"account_id":"acc-1","pin":1234}`)
		require.Equal(t, http.StatusCreated, w.Code)

		card := models.IssuedCard{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
		require.Equal(t, "acc-1", card.AccountID)
		require.NoError(t, cardgen.ValidatePAN(card.Number))
		require.Len(t, card.ExpiryYYMM, 4)
	})

	t.Run("issue card without account", func(t *testing.T) {
		w := post("/cards", `{"pin":1234}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("register card", func(t *testing.T) {
		body := `{"number":"4111111111111111","pin":1234,"account_id":"acc-2","expiry_yymm":"3001"}`

		w := post("/cards/register", body)
		require.Equal(t, http.StatusCreated, w.Code)
		require.Contains(t, w.Body.String(), `"last4":"1111"`)

		w = post("/cards/register", body)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("register invalid card", func(t *testing.T) {
		w := post("/cards/register", `{"number":"4111111111111112","pin":1234,"account_id":"a","expiry_yymm":"3001"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
