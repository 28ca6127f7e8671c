package handlers

import (
	"net/http"
)

func (a *App) CreditBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Credits.Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"creditsBalance": balance})
}

// CreditHistory lists ledger events newest first.
func (a *App) CreditHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	events, err := a.Credits.History(r.Context(), a.currentUserID(r), min(limit, 500))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]creditEventDTO, 0, len(events))
	for _, ev := range events {
		items = append(items, creditEventDTO{
			ID:        ev.ID,
			Type:      ev.Type,
			Amount:    ev.Amount,
			Reason:    ev.Reason,
			JobID:     ev.JobID,
			RunID:     ev.RunID,
			CreatedAt: ev.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// CreditReload tops an unlimited-tier balance back up to the session allowance.
func (a *App) CreditReload(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Credits.SessionReload(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"creditsBalance": balance})
}
