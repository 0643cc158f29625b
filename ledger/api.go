package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kantinpay/kantin/ledger/models"
	"golang.org/x/exp/slog"
)

// API is the HTTP API used by the card reader and the kiosk page
type API struct {
	service *Service
	logger  *slog.Logger
}

func NewAPI(service *Service, logger *slog.Logger) *API {
	return &API{
		service: service,
		logger:  logger,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// reader
		r.Post("/card-tap", a.cardTap)

		// kiosk
		r.Get("/pending", a.getPending)
		r.Get("/pending/ws", a.pendingFeed)
		r.Post("/clear-pending", a.clearPending)
		r.Post("/payment", a.payment)

		// administration
		r.Post("/register", a.register)
		r.Post("/topup", a.topUp)
		r.Post("/wipe", a.wipe)
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", a.listCards)
			r.Get("/{uid}", a.getCard)
			r.Delete("/{uid}", a.deleteCard)
		})
	})
}

// result is the envelope the kiosk page expects from every mutating call.
type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Balance *int64 `json:"balance,omitempty"`
	Paid    *int64 `json:"paid,omitempty"`
	Card    any    `json:"card,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type tapCard struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

func (a *API) cardTap(w http.ResponseWriter, r *http.Request) {
	req := models.TapRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.service.Tap(r.Context(), req.UID)
	if a.failed(w, err) {
		return
	}
	if !res.Known {
		a.writeJSON(w, http.StatusOK, result{Success: false, Message: "Card not registered", Warning: warning(err)})
		return
	}
	a.writeJSON(w, http.StatusOK, result{
		Success: true,
		Message: "Card detected",
		Card:    tapCard{UID: res.Card.UID, Name: res.Card.Name, Balance: res.Card.Balance},
		Warning: warning(err),
	})
}

func (a *API) getPending(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.service.Pending())
}

func (a *API) clearPending(w http.ResponseWriter, r *http.Request) {
	a.service.ClearPending()
	a.writeJSON(w, http.StatusOK, result{Success: true})
}

func (a *API) payment(w http.ResponseWriter, r *http.Request) {
	req := models.AmountRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	s, err := a.service.Settle(r.Context(), req.UID, int64(req.Amount))
	if a.failed(w, err) {
		return
	}
	if !s.Settled() {
		a.writeJSON(w, http.StatusOK, result{Success: false, Message: "Insufficient balance", Balance: &s.Balance})
		return
	}
	a.writeJSON(w, http.StatusOK, result{
		Success: true,
		Message: "Payment successful",
		Balance: &s.Balance,
		Paid:    &s.Paid,
		Warning: warning(err),
	})
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.service.List())
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := a.service.Lookup(chi.URLParam(r, "uid"))
	if a.failed(w, err) {
		return
	}
	a.writeJSON(w, http.StatusOK, card)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	req := models.RegisterRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	card, err := a.service.Register(r.Context(), req.UID, req.Name, int64(*req.InitialBalance))
	if a.failed(w, err) {
		return
	}
	a.writeJSON(w, http.StatusOK, result{
		Success: true,
		Message: "Card registered successfully",
		Card:    card,
		Warning: warning(err),
	})
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	_, err := a.service.Delete(r.Context(), chi.URLParam(r, "uid"))
	if a.failed(w, err) {
		return
	}
	a.writeJSON(w, http.StatusOK, result{Success: true, Message: "Card deleted successfully", Warning: warning(err)})
}

func (a *API) topUp(w http.ResponseWriter, r *http.Request) {
	req := models.AmountRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	balance, err := a.service.TopUp(r.Context(), req.UID, int64(req.Amount))
	if a.failed(w, err) {
		return
	}
	a.writeJSON(w, http.StatusOK, result{Success: true, Message: "Top up successful", Balance: &balance, Warning: warning(err)})
}

func (a *API) wipe(w http.ResponseWriter, r *http.Request) {
	err := a.service.Wipe(r.Context())
	if a.failed(w, err) {
		return
	}
	a.writeJSON(w, http.StatusOK, result{Success: true, Message: "All data deleted", Warning: warning(err)})
}

type validator interface {
	Validate() error
}

// decode reads and validates the body, answering 400 itself on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v validator) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := v.Validate(); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// failed maps hard errors to a status and writes them. Persistence warnings
// are not failures: the caller reports them next to the result.
func (a *API) failed(w http.ResponseWriter, err error) bool {
	if err == nil || models.IsWarning(err) {
		return false
	}
	switch {
	case errors.Is(err, models.ErrValidation):
		a.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, models.ErrNotFound):
		a.writeError(w, http.StatusNotFound, models.ErrNotFound)
	case errors.Is(err, models.ErrDuplicate):
		a.writeError(w, http.StatusConflict, models.ErrDuplicate)
	default:
		a.logger.Error("request failed", slog.Any("err", err))
		a.writeError(w, http.StatusInternalServerError, err)
	}
	return true
}

func warning(err error) string {
	if models.IsWarning(err) {
		return err.Error()
	}
	return ""
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("writing response", slog.Any("err", err))
	}
}
