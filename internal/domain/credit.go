package domain

import "time"

// CreditEventType enumerates ledger entry categories.
type CreditEventType string

const (
	CreditGrant         CreditEventType = "GRANT"
	CreditSpend         CreditEventType = "SPEND"
	CreditSessionReload CreditEventType = "SESSION_RELOAD"
	CreditReserve       CreditEventType = "RESERVE"
	CreditRelease       CreditEventType = "RELEASE"
)

// CreditEvent is an append-only ledger row. Amount is signed.
type CreditEvent struct {
	ID        string
	UserID    string
	Amount    int
	Type      CreditEventType
	Reason    string
	JobID     string
	RunID     string
	CreatedAt time.Time
}

// PromptCreationCost is charged once per job that goes through synthesis.
const PromptCreationCost = 50
