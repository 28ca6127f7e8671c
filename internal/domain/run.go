package domain

import "time"

// RunStatus enumerates the states of a single provider attempt.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ModelRun is one provider's attempt within a job.
type ModelRun struct {
	ID          string
	JobID       string
	PromptID    string
	Provider    Provider
	Status      RunStatus
	CostCredits int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Outputs     []ImageOutput
}

// ImageOutput is one generated image belonging to a run.
type ImageOutput struct {
	ID        string
	RunID     string
	URL       string
	Width     int
	Height    int
	Seed      *int64
	Metadata  map[string]any
	CreatedAt time.Time
}

// RunCounts summarizes fan-out progress for a job.
type RunCounts struct {
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Outputs   int `json:"outputs"`
}

// CountRuns tallies runs by status and counts their outputs.
func CountRuns(runs []ModelRun) RunCounts {
	var c RunCounts
	for _, r := range runs {
		switch r.Status {
		case RunStatusRunning:
			c.Running++
		case RunStatusSucceeded:
			c.Succeeded++
		case RunStatusFailed:
			c.Failed++
		}
		c.Outputs += len(r.Outputs)
	}
	return c
}
