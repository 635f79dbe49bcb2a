package atm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/depot"
)

// StockReader reports what the depot holds.
type StockReader interface {
	Stock(ctx context.Context) ([]depot.Slot, error)
}

// API is a HTTP API for the cash machine
type API struct {
	machine *Machine
	stock   StockReader
}

func NewAPI(machine *Machine, stock StockReader) *API {
	return &API{
		machine: machine,
		stock:   stock,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/withdrawals", a.withdraw)
	r.Get("/depot/stock", a.getStock)
}

type withdrawalRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CardNumber string          `json:"card_number"`
	PIN        int             `json:"pin"`
}

type withdrawalResponse struct {
	Banknotes []models.Banknote `json:"banknotes"`
	Total     int64             `json:"total"`
	Currency  models.Currency   `json:"currency"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{models.ErrWrongAmount, http.StatusUnprocessableEntity},
	{models.ErrCardAuthorization, http.StatusUnauthorized},
	{models.ErrInsufficientFunds, http.StatusPaymentRequired},
	{models.ErrDepot, http.StatusServiceUnavailable},
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			status = es.status
			break
		}
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "withdrawal failed"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// wholeAmount accepts positive whole numbers only.
func wholeAmount(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) || !amount.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s: %w", amount, models.ErrWrongAmount)
	}

	return amount.IntPart(), nil
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	req := withdrawalRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := wholeAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	money := models.Money{Amount: amount, Currency: models.Currency(req.Currency)}
	card := models.Card{Number: req.CardNumber, PIN: req.PIN}

	payment, err := a.machine.Withdraw(r.Context(), money, card)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, withdrawalResponse{
		Banknotes: payment.Banknotes,
		Total:     payment.Total(),
		Currency:  money.Currency,
	})
}

func (a *API) getStock(w http.ResponseWriter, r *http.Request) {
	slots, err := a.stock.Stock(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, slots)
}
