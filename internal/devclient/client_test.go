package devclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	var registered RegisterReq

	router := chi.NewRouter()
	router.Post("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"acc-1","currency":"PL"}`))
	})
	router.Post("/cards/register", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&registered); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if registered.Number == "dup" {
			http.Error(w, "card number exists", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	cli := New(srv.URL+"/", nil)
	ctx := context.Background()

	id, err := cli.CreateAccount(ctx, 1000, "PL")
	require.NoError(t, err)
	require.Equal(t, "acc-1", id)

	req := RegisterReq{Number: "4212340000000001", PIN: 1234, AccountID: id, ExpiryYYMM: "3001"}
	require.NoError(t, cli.RegisterCard(ctx, req))
	require.Equal(t, req, registered)

	err = cli.RegisterCard(ctx, RegisterReq{Number: "dup"})
	require.ErrorContains(t, err, "status=409")
}
