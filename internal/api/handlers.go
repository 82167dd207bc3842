package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/db"
	"github.com/susu3304/finbot/internal/report"
)

type balanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type summaryResponse struct {
	UserID int64           `json:"user_id"`
	Rows   []db.SummaryRow `json:"rows"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	user, err := a.ledger.User(r.Context(), identity)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		a.internalError(w, "profile", identity, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	balance, err := a.ledger.Balance(r.Context(), identity)
	if err != nil {
		a.internalError(w, "balance", identity, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: identity, Balance: balance})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	rows, err := a.ledger.MonthlySummary(r.Context(), identity)
	if err != nil {
		a.internalError(w, "monthlySummary", identity, err)
		return
	}
	if rows == nil {
		rows = []db.SummaryRow{}
	}
	writeJSON(w, http.StatusOK, summaryResponse{UserID: identity, Rows: rows})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	balance, err := a.ledger.Balance(r.Context(), identity)
	if err != nil {
		a.internalError(w, "balance", identity, err)
		return
	}
	rows, err := a.ledger.MonthlySummary(r.Context(), identity)
	if err != nil {
		a.internalError(w, "monthlySummary", identity, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(balance, rows))
}

func (a *API) internalError(w http.ResponseWriter, op string, identity int64, err error) {
	a.log.Error("request failed",
		slog.String("op", op),
		slog.Int64("user_id", identity),
		slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}
