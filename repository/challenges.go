package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	siwn "github.com/near-everything/go-siwn"
	"github.com/uptrace/bun"
)

// ChallengesRepository implements siwn.Challenges using Bun. Challenges are
// keyed by their identifier; reissuing for the same identifier replaces the
// outstanding row.
type ChallengesRepository struct {
	db *bun.DB
}

var _ siwn.Challenges = (*ChallengesRepository)(nil)

// NewChallengesRepository creates a new repository.
func NewChallengesRepository(db *bun.DB) *ChallengesRepository {
	return &ChallengesRepository{db: db}
}

func (r *ChallengesRepository) Upsert(ctx context.Context, record *siwn.VerificationChallenge) (*siwn.VerificationChallenge, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (identifier) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at = EXCLUDED.expires_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *ChallengesRepository) GetTx(ctx context.Context, tx bun.IDB, identifier string) (*siwn.VerificationChallenge, error) {
	record := new(siwn.VerificationChallenge)
	err := tx.NewSelect().
		Model(record).
		Where("identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *ChallengesRepository) DeleteTx(ctx context.Context, tx bun.IDB, identifier string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*siwn.VerificationChallenge)(nil)).
		Where("identifier = ?", identifier).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
