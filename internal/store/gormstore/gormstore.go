// Package gormstore implements wallet.Store using GORM, backed by either
// SQLite or PostgreSQL. The admission check and the debit are one guarded
// UPDATE, so concurrent spins for the same user serialize at the database.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	sqliteBusyCode             = 5
	sqliteLockedCode           = 6
	errorOperationStore        = "store"
	errorSubjectBalance        = "balance"
	errorCodeAdjust            = "adjust"
	errorCodeCreate            = "create"
	errorCodeGuard             = "guard"
	errorCodeLookup            = "lookup"
	errorCodeReset             = "reset"
)

// Store implements wallet.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the user_balances table when it does not exist yet.
func (store *Store) Migrate() error {
	if err := store.db.AutoMigrate(&UserBalance{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// FetchBalance reads the stored balance, reporting absence without error.
func (store *Store) FetchBalance(ctx context.Context, userID wallet.UserID) (wallet.Coins, bool, error) {
	var row UserBalance
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStoreError(errorCodeLookup, classifyError(err))
	}
	return wallet.Coins(row.Balance), true, nil
}

// CreateIfAbsent inserts the row once via ON CONFLICT DO NOTHING; the loser
// of a concurrent first access reads back the winner's value.
func (store *Store) CreateIfAbsent(ctx context.Context, userID wallet.UserID, starting wallet.Coins) (wallet.Coins, error) {
	row := UserBalance{UserID: userID.String(), Balance: starting.Int64()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return 0, wrapStoreError(errorCodeCreate, classifyError(err))
	}
	// The insert may have been a no-op against an existing row, so the
	// authoritative balance comes from a read-back.
	var stored UserBalance
	err = store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&stored).Error
	if err != nil {
		return 0, wrapStoreError(errorCodeCreate, classifyError(err))
	}
	return wallet.Coins(stored.Balance), nil
}

// AdjustGuarded applies delta in a single conditional UPDATE guarded by
// "resulting balance >= 0"; there is no separate read between check and write.
func (store *Store) AdjustGuarded(ctx context.Context, userID wallet.UserID, delta wallet.Coins) (wallet.Coins, error) {
	row := UserBalance{UserID: userID.String()}
	result := store.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance"}}}).
		Where("user_id = ? AND balance + ? >= 0", userID.String(), delta.Int64()).
		Update("balance", gorm.Expr("balance + ?", delta.Int64()))
	if result.Error != nil {
		return 0, wrapStoreError(errorCodeAdjust, classifyError(result.Error))
	}
	if result.RowsAffected == 0 {
		var lookup UserBalance
		err := store.db.WithContext(ctx).
			Where("user_id = ?", userID.String()).
			Take(&lookup).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, wrapStoreError(errorCodeAdjust, wallet.ErrUnknownBalance)
		}
		if err != nil {
			return 0, wrapStoreError(errorCodeAdjust, classifyError(err))
		}
		return 0, wrapStoreError(errorCodeGuard, wallet.ErrGuardViolated)
	}
	return wallet.Coins(row.Balance), nil
}

// ResetBalance upserts the row to the given value.
func (store *Store) ResetBalance(ctx context.Context, userID wallet.UserID, balance wallet.Coins) (wallet.Coins, error) {
	row := UserBalance{UserID: userID.String(), Balance: balance.Int64()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"balance": balance.Int64()}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, wrapStoreError(errorCodeReset, classifyError(err))
	}
	return balance, nil
}

func wrapStoreError(code string, err error) error {
	return wallet.WrapError(errorOperationStore, errorSubjectBalance, code, err)
}

// classifyError maps driver failures onto the wallet store sentinels:
// serialization conflicts are retryable, everything else means the store
// cannot be trusted to have applied the write.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode {
			return fmt.Errorf("%w: %v", wallet.ErrStoreConflict, err)
		}
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xFF
		if code == sqliteBusyCode || code == sqliteLockedCode {
			return fmt.Errorf("%w: %v", wallet.ErrStoreConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", wallet.ErrStoreUnavailable, err)
}
