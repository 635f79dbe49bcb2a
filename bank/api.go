package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/bank/models"
	"github.com/go-chi/chi/v5"
)

// API is a HTTP API for the bank ledger
type API struct {
	ledger *Ledger
}

func NewAPI(ledger *Ledger) *API {
	return &API{
		ledger: ledger,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", a.createAccount)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", a.getAccount)
			r.Get("/transactions", a.getTransactions)
		})
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/abort-stale", a.abortStale)
		r.Route("/{userID}/{code}", func(r chi.Router) {
			r.Post("/start", a.start)
			r.Post("/charge", a.charge)
			r.Post("/commit", a.commit)
			r.Post("/abort", a.abort)
		})
	})
}

// errorResponse carries a machine readable code so clients can restore the
// sentinel error.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{atmmodels.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{atmmodels.ErrWrongAmount, "wrong_amount", http.StatusUnprocessableEntity},
	{ErrCurrencyMismatch, "currency_mismatch", http.StatusUnprocessableEntity},
	{ErrTransactionClosed, "transaction_closed", http.StatusConflict},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrNotFound, "not_found", http.StatusNotFound},
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Code: "internal"}
	status := http.StatusInternalServerError
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			resp.Code, status = ec.code, ec.status
			break
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func tokenFromRequest(r *http.Request) (atmmodels.AuthenticationToken, error) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		return atmmodels.AuthenticationToken{}, err
	}
	return atmmodels.AuthenticationToken{AuthorizationCode: code, UserID: chi.URLParam(r, "userID")}, nil
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	create := models.CreateAccount{}
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := a.ledger.CreateAccount(r.Context(), create)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.ledger.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *API) getTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := a.ledger.ListTransactions(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	a.withToken(w, r, a.ledger.StartTransaction)
}

func (a *API) commit(w http.ResponseWriter, r *http.Request) {
	a.withToken(w, r, a.ledger.Commit)
}

func (a *API) abort(w http.ResponseWriter, r *http.Request) {
	a.withToken(w, r, a.ledger.Abort)
}

func (a *API) charge(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromRequest(r)
	if err != nil {
		http.Error(w, "invalid authorization code", http.StatusBadRequest)
		return
	}
	var money atmmodels.Money
	if err := json.NewDecoder(r.Body).Decode(&money); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.ledger.Charge(r.Context(), token, money); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) withToken(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, token atmmodels.AuthenticationToken) error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		http.Error(w, "invalid authorization code", http.StatusBadRequest)
		return
	}
	if err := op(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) abortStale(w http.ResponseWriter, r *http.Request) {
	maxAge := 5 * time.Minute
	if v := r.URL.Query().Get("max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		maxAge = d
	}
	n, err := a.ledger.AbortStale(r.Context(), maxAge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"aborted": n})
}
