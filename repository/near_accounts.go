package repository

import (
	"context"

	"github.com/google/uuid"
	siwn "github.com/near-everything/go-siwn"
	"github.com/uptrace/bun"
)

// NearAccountsRepository implements siwn.NearAccounts using Bun. The
// near_accounts table carries a unique index over (account_id, network);
// CreateTx returns the raw driver error on a violation so callers can detect
// the conflict.
type NearAccountsRepository struct {
	db *bun.DB
}

var _ siwn.NearAccounts = (*NearAccountsRepository)(nil)

// NewNearAccountsRepository creates a new repository.
func NewNearAccountsRepository(db *bun.DB) *NearAccountsRepository {
	return &NearAccountsRepository{db: db}
}

func (r *NearAccountsRepository) GetByAccountID(ctx context.Context, accountID string, network siwn.Network) (*siwn.NearAccount, error) {
	return r.GetByAccountIDTx(ctx, r.db, accountID, network)
}

func (r *NearAccountsRepository) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID string, network siwn.Network) (*siwn.NearAccount, error) {
	record := new(siwn.NearAccount)
	err := tx.NewSelect().
		Model(record).
		Where("account_id = ? AND network = ?", accountID, network).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *NearAccountsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*siwn.NearAccount, error) {
	return r.ListByUserTx(ctx, r.db, userID)
}

func (r *NearAccountsRepository) ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*siwn.NearAccount, error) {
	var records []*siwn.NearAccount
	err := tx.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *NearAccountsRepository) Primary(ctx context.Context, userID uuid.UUID) (*siwn.NearAccount, error) {
	return r.PrimaryTx(ctx, r.db, userID)
}

func (r *NearAccountsRepository) PrimaryTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*siwn.NearAccount, error) {
	record := new(siwn.NearAccount)
	err := tx.NewSelect().
		Model(record).
		Where("user_id = ? AND is_primary = ?", userID, true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *NearAccountsRepository) CreateTx(ctx context.Context, tx bun.IDB, record *siwn.NearAccount) (*siwn.NearAccount, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *NearAccountsRepository) SetPrimaryTx(ctx context.Context, tx bun.IDB, id uuid.UUID, primary bool) error {
	_, err := tx.NewUpdate().
		Model((*siwn.NearAccount)(nil)).
		Set("is_primary = ?", primary).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *NearAccountsRepository) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*siwn.NearAccount)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
