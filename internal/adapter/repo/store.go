package repo

import (
	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
)

// NewStore wires every PostgreSQL repository onto one runner.
func NewStore(runner infra.TxRunner) domain.Store {
	return domain.Store{
		Users:   NewUserRepository(runner),
		Jobs:    NewJobRepository(runner),
		Prompts: NewPromptRepository(runner),
		Runs:    NewRunRepository(runner),
		Ledger:  NewLedgerRepository(runner),
	}
}
