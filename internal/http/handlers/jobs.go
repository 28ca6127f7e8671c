package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"promptfusion/internal/domain"
	"promptfusion/internal/jobs"
)

// SubmitJob reserves credits and queues a new job. The response is 202 even
// when the queue refused the job; enqueued=false tells the client it is parked.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.UserID = a.currentUserID(r)
	sub, err := a.Jobs.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, submissionDTO{
		Job:           toJobDTO(*sub.Job),
		EstimatedCost: sub.Estimate,
		Balance:       sub.Balance,
		Enqueued:      sub.Enqueued,
	})
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	list, err := a.Jobs.List(r.Context(), a.currentUserID(r), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]jobDTO, 0, len(list))
	for _, j := range list {
		items = append(items, toJobDTO(j))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	view, err := a.Jobs.Get(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toViewDTO(view))
}

func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Cancel(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toJobDTO(*job))
}

// EstimateJob prices a submission without reserving anything.
func (a *App) EstimateJob(w http.ResponseWriter, r *http.Request) {
	providers, err := domain.ParseProviders(r.URL.Query()["provider"])
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err))
		return
	}
	if len(providers) == 0 {
		providers = a.Jobs.Providers()
	}
	bypass := r.URL.Query().Get("bypass") == "true"
	a.json(w, http.StatusOK, map[string]any{
		"providers":     providers,
		"bypass":        bypass,
		"estimatedCost": jobs.Estimate(bypass, providers),
	})
}
