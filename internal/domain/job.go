package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusPartial   JobStatus = "PARTIAL"
	JobStatusCanceled  JobStatus = "CANCELED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusPartial, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Cancelable reports whether an explicit cancel may move the job to CANCELED.
func (s JobStatus) Cancelable() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// DefaultAspectRatio is applied when a submission leaves the size empty.
const DefaultAspectRatio = "1024x1024"

// Job is one end-to-end generation request owned by a single user.
type Job struct {
	ID              string
	UserID          string
	Idea            string
	PresetKey       string
	AspectRatio     string
	MoodTags        string
	PresetAnswers   map[string]string
	Bypass          bool
	DirectPrompt    string
	Providers       []Provider
	ReservedCredits int
	Status          JobStatus
	DraftPromptID   string
	GradedPromptID  string
	GradeScore      *int
	GradeNotes      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Aggregate derives the terminal status of a job from its finished runs.
// Zero runs means fan-out never happened, which is a failure.
func Aggregate(runs []ModelRun) JobStatus {
	var ok, failed int
	for _, r := range runs {
		switch r.Status {
		case RunStatusSucceeded:
			ok++
		case RunStatusFailed:
			failed++
		}
	}
	switch {
	case ok > 0 && failed == 0:
		return JobStatusSucceeded
	case ok > 0:
		return JobStatusPartial
	default:
		return JobStatusFailed
	}
}
