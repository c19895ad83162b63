package repository

import (
	"context"

	"github.com/google/uuid"
	siwn "github.com/near-everything/go-siwn"
	"github.com/uptrace/bun"
)

// AccountsRepository implements siwn.Accounts using Bun. These are the
// generic provider rows counted by the unlink safety check.
type AccountsRepository struct {
	db *bun.DB
}

var _ siwn.Accounts = (*AccountsRepository)(nil)

// NewAccountsRepository creates a new repository.
func NewAccountsRepository(db *bun.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

func (r *AccountsRepository) CountByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*siwn.Account)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
}

func (r *AccountsRepository) GetByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) (*siwn.Account, error) {
	record := new(siwn.Account)
	err := tx.NewSelect().
		Model(record).
		Where("user_id = ? AND provider_id = ? AND account_id = ?", userID, providerID, accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *AccountsRepository) CreateTx(ctx context.Context, tx bun.IDB, record *siwn.Account) (*siwn.Account, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *AccountsRepository) DeleteByUserProviderTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, providerID, accountID string) error {
	_, err := tx.NewDelete().
		Model((*siwn.Account)(nil)).
		Where("user_id = ? AND provider_id = ? AND account_id = ?", userID, providerID, accountID).
		Exec(ctx)
	return err
}
