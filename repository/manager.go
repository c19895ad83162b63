package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	siwn "github.com/near-everything/go-siwn"
	"github.com/uptrace/bun"
)

type mngr struct {
	db           *bun.DB
	users        siwn.Users
	nearAccounts siwn.NearAccounts
	accounts     siwn.Accounts
	challenges   siwn.Challenges
}

func NewRepositoryManager(db *bun.DB) siwn.RepositoryManager {
	return &mngr{
		db:           db,
		users:        siwn.NewUsersRepository(db),
		nearAccounts: NewNearAccountsRepository(db),
		accounts:     NewAccountsRepository(db),
		challenges:   NewChallengesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.nearAccounts == nil {
		return errors.New("repository nearAccounts should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.challenges == nil {
		return errors.New("repository challenges should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() siwn.Users {
	return m.users
}

func (m mngr) NearAccounts() siwn.NearAccounts {
	return m.nearAccounts
}

func (m mngr) Accounts() siwn.Accounts {
	return m.accounts
}

func (m mngr) Challenges() siwn.Challenges {
	return m.challenges
}
