// Package memstore implements wallet.Store in process memory. It serializes
// mutations per user, so spins for one user never observe each other's
// intermediate state while different users never contend. Used by the
// memory:// database scheme and by tests.
package memstore

import (
	"context"
	"sync"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
)

const (
	errorOperationStore = "store"
	errorSubjectBalance = "balance"
	errorCodeGuard      = "guard"
	errorCodeLookup     = "lookup"
)

type record struct {
	mutex   sync.Mutex
	balance int64
}

// Store keeps one record per user id.
type Store struct {
	mutex   sync.RWMutex
	records map[string]*record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: map[string]*record{}}
}

// FetchBalance reads the stored balance, reporting absence without error.
func (store *Store) FetchBalance(_ context.Context, userID wallet.UserID) (wallet.Coins, bool, error) {
	store.mutex.RLock()
	userRecord, found := store.records[userID.String()]
	store.mutex.RUnlock()
	if !found {
		return 0, false, nil
	}
	userRecord.mutex.Lock()
	defer userRecord.mutex.Unlock()
	return wallet.Coins(userRecord.balance), true, nil
}

// CreateIfAbsent creates the record exactly once; a concurrent loser reads
// back the winner's balance.
func (store *Store) CreateIfAbsent(_ context.Context, userID wallet.UserID, starting wallet.Coins) (wallet.Coins, error) {
	userRecord := store.ensureRecord(userID, starting.Int64())
	userRecord.mutex.Lock()
	defer userRecord.mutex.Unlock()
	return wallet.Coins(userRecord.balance), nil
}

// AdjustGuarded applies delta only if the resulting balance stays non-negative.
func (store *Store) AdjustGuarded(_ context.Context, userID wallet.UserID, delta wallet.Coins) (wallet.Coins, error) {
	store.mutex.RLock()
	userRecord, found := store.records[userID.String()]
	store.mutex.RUnlock()
	if !found {
		return 0, wallet.WrapError(errorOperationStore, errorSubjectBalance, errorCodeLookup, wallet.ErrUnknownBalance)
	}
	userRecord.mutex.Lock()
	defer userRecord.mutex.Unlock()
	if userRecord.balance+delta.Int64() < 0 {
		return 0, wallet.WrapError(errorOperationStore, errorSubjectBalance, errorCodeGuard, wallet.ErrGuardViolated)
	}
	userRecord.balance += delta.Int64()
	return wallet.Coins(userRecord.balance), nil
}

// ResetBalance overwrites (or creates) the record with the given value.
func (store *Store) ResetBalance(_ context.Context, userID wallet.UserID, balance wallet.Coins) (wallet.Coins, error) {
	userRecord := store.ensureRecord(userID, balance.Int64())
	userRecord.mutex.Lock()
	defer userRecord.mutex.Unlock()
	userRecord.balance = balance.Int64()
	return wallet.Coins(userRecord.balance), nil
}

func (store *Store) ensureRecord(userID wallet.UserID, initial int64) *record {
	store.mutex.RLock()
	userRecord, found := store.records[userID.String()]
	store.mutex.RUnlock()
	if found {
		return userRecord
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if userRecord, found = store.records[userID.String()]; found {
		return userRecord
	}
	userRecord = &record{balance: initial}
	store.records[userID.String()] = userRecord
	return userRecord
}
