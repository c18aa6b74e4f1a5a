package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
)

// Coins is the integer play currency. Balances are never negative; deltas
// passed to a Store may be.
type Coins int64

// NewCoins validates a non-negative amount.
func NewCoins(raw int64) (Coins, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative, got %d", ErrInvalidCoins, raw)
	}
	return Coins(raw), nil
}

// Int64 returns the raw amount.
func (coins Coins) Int64() int64 {
	return int64(coins)
}

// UserID identifies a balance owner. Identity is supplied by the auth
// collaborator and treated as an opaque key.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// Receipt is the result of one settled spin.
type Receipt struct {
	SpinID  string
	Grid    spin.Grid
	Outcome spin.Outcome
	Balance Coins
}

// Store is the durable-balance contract used by Service. Implementations must
// make every method atomic with respect to concurrent calls for the same user:
//
//   - FetchBalance reads the stored balance, reporting absence without error.
//   - CreateIfAbsent creates the row with the starting balance exactly once;
//     the loser of a concurrent first access reads back the winner's value.
//   - AdjustGuarded applies delta only if the resulting balance stays
//     non-negative, returning ErrGuardViolated otherwise. Transient
//     concurrency conflicts surface as ErrStoreConflict, outages as
//     ErrStoreUnavailable, a missing row as ErrUnknownBalance.
//   - ResetBalance overwrites (or creates) the row with the given value.
type Store interface {
	FetchBalance(ctx context.Context, userID UserID) (Coins, bool, error)
	CreateIfAbsent(ctx context.Context, userID UserID, starting Coins) (Coins, error)
	AdjustGuarded(ctx context.Context, userID UserID, delta Coins) (Coins, error)
	ResetBalance(ctx context.Context, userID UserID, balance Coins) (Coins, error)
}

// Config fixes the ledger constants at startup.
type Config struct {
	StartingBalance Coins
	// MaxAttempts bounds the retry loop for conflicting guarded updates
	// before the failure is surfaced as ErrWalletUnavailable.
	MaxAttempts int
}
