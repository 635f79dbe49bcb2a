package cardprovider

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alovak/atm-playground/cardprovider/models"
)

// API issues and registers cards over HTTP.
type API struct {
	service *Service
}

func NewAPI(service *Service) *API {
	return &API{
		service: service,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/cards", func(r chi.Router) {
		r.Post("/", a.issueCard)
		r.Post("/register", a.registerCard)
	})
}

type issueCardRequest struct {
	AccountID string `json:"account_id"`
	PIN       int    `json:"pin"`
}

type registerCardRequest struct {
	Number     string `json:"number"`
	PIN        int    `json:"pin"`
	AccountID  string `json:"account_id"`
	ExpiryYYMM string `json:"expiry_yymm"`
}

func (a *API) issueCard(w http.ResponseWriter, r *http.Request) {
	req := issueCardRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	card, err := a.service.IssueCard(r.Context(), req.AccountID, req.PIN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

func (a *API) registerCard(w http.ResponseWriter, r *http.Request) {
	req := registerCardRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	card, err := a.service.RegisterCard(r.Context(), models.RegisterCard{
		Number:     req.Number,
		PIN:        req.PIN,
		AccountID:  req.AccountID,
		ExpiryYYMM: req.ExpiryYYMM,
	})
	if errors.Is(err, ErrConflict) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": card.ID, "last4": card.Last4})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
