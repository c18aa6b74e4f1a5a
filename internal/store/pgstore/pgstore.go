// Package pgstore implements wallet.Store directly on a pgx connection pool.
// Every mutation is a single guarded statement, so per-user serialization
// comes from PostgreSQL row locking rather than application locks.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	errorOperationStore        = "store"
	errorSubjectBalance        = "balance"
	errorCodeAdjust            = "adjust"
	errorCodeCreate            = "create"
	errorCodeGuard             = "guard"
	errorCodeLookup            = "lookup"
	errorCodeMigrate           = "migrate"
	errorCodeReset             = "reset"

	sqlCreateTable = `
		create table if not exists user_balances (
			user_id text primary key,
			balance bigint not null check (balance >= 0),
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		)
	`

	sqlFetchBalance = `
		select balance from user_balances where user_id = $1
	`

	sqlInsertOrGetBalance = `
		insert into user_balances(user_id, balance) values($1, $2)
		on conflict (user_id) do update set user_id = excluded.user_id
		returning balance
	`

	sqlAdjustGuarded = `
		update user_balances
		set balance = balance + $2, updated_at = now()
		where user_id = $1 and balance + $2 >= 0
		returning balance
	`

	sqlResetBalance = `
		insert into user_balances(user_id, balance) values($1, $2)
		on conflict (user_id) do update set balance = excluded.balance, updated_at = now()
		returning balance
	`
)

// Store implements wallet.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the user_balances table when it does not exist yet.
func (store *Store) EnsureSchema(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, sqlCreateTable); err != nil {
		return wrapStoreError(errorCodeMigrate, err)
	}
	return nil
}

// FetchBalance reads the stored balance, reporting absence without error.
func (store *Store) FetchBalance(ctx context.Context, userID wallet.UserID) (wallet.Coins, bool, error) {
	var balance int64
	err := store.pool.QueryRow(ctx, sqlFetchBalance, userID.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStoreError(errorCodeLookup, classifyError(err))
	}
	return wallet.Coins(balance), true, nil
}

// CreateIfAbsent upserts the row and returns the authoritative balance; the
// no-op DO UPDATE makes the statement return the existing row for the loser
// of a concurrent first access.
func (store *Store) CreateIfAbsent(ctx context.Context, userID wallet.UserID, starting wallet.Coins) (wallet.Coins, error) {
	var balance int64
	err := store.pool.QueryRow(ctx, sqlInsertOrGetBalance, userID.String(), starting.Int64()).Scan(&balance)
	if err != nil {
		return 0, wrapStoreError(errorCodeCreate, classifyError(err))
	}
	return wallet.Coins(balance), nil
}

// AdjustGuarded applies delta in a single conditional UPDATE guarded by
// "resulting balance >= 0".
func (store *Store) AdjustGuarded(ctx context.Context, userID wallet.UserID, delta wallet.Coins) (wallet.Coins, error) {
	var balance int64
	err := store.pool.QueryRow(ctx, sqlAdjustGuarded, userID.String(), delta.Int64()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is missing or the guard rejected the delta.
		if _, found, lookupErr := store.FetchBalance(ctx, userID); lookupErr != nil {
			return 0, lookupErr
		} else if !found {
			return 0, wrapStoreError(errorCodeAdjust, wallet.ErrUnknownBalance)
		}
		return 0, wrapStoreError(errorCodeGuard, wallet.ErrGuardViolated)
	}
	if err != nil {
		return 0, wrapStoreError(errorCodeAdjust, classifyError(err))
	}
	return wallet.Coins(balance), nil
}

// ResetBalance upserts the row to the given value.
func (store *Store) ResetBalance(ctx context.Context, userID wallet.UserID, balance wallet.Coins) (wallet.Coins, error) {
	var stored int64
	err := store.pool.QueryRow(ctx, sqlResetBalance, userID.String(), balance.Int64()).Scan(&stored)
	if err != nil {
		return 0, wrapStoreError(errorCodeReset, classifyError(err))
	}
	return wallet.Coins(stored), nil
}

func wrapStoreError(code string, err error) error {
	return wallet.WrapError(errorOperationStore, errorSubjectBalance, code, err)
}

func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode {
			return fmt.Errorf("%w: %v", wallet.ErrStoreConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", wallet.ErrStoreUnavailable, err)
}
