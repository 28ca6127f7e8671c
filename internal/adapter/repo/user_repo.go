package repo

import (
	"context"

	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// Create inserts a user with a zero balance; credits arrive through the ledger.
func (r *UserRepositoryPG) Create(ctx context.Context, user *domain.User) error {
	if user.Tier == "" {
		user.Tier = domain.TierStandard
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUser, user.ID, user.Email, string(user.Tier))
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrDuplicateOperation
		}
		return domain.Persist("users.create", err)
	}
	user.CreditsBalance = 0
	return nil
}

// GetByID fetches a user by identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id)
	var (
		u    domain.User
		tier string
	)
	if err := row.Scan(&u.ID, &u.Email, &tier, &u.CreditsBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Persist("users.get", err)
	}
	u.Tier = domain.Tier(tier)
	return &u, nil
}

// SetTier changes the account tier.
func (r *UserRepositoryPG) SetTier(ctx context.Context, id string, tier domain.Tier) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateUserTier, id, string(tier))
	if err != nil {
		return domain.Persist("users.set_tier", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
