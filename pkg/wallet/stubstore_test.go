package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
)

// stubStore is an in-memory Store with per-call error injection. AdjustGuarded
// consumes adjustErrors front to back; a nil entry (or an empty queue) lets
// the call through. The mutex makes it safe for the concurrency tests.
type stubStore struct {
	mutex        sync.Mutex
	balances     map[string]int64
	adjustErrors []error
	fetchError   error
	createError  error
	resetError   error
	adjustCalls  int
	createCalls  int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{balances: map[string]int64{}}
}

func (store *stubStore) seed(test *testing.T, userID UserID, balance int64) {
	test.Helper()
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.balances[userID.String()] = balance
}

func (store *stubStore) balanceOf(test *testing.T, userID UserID) int64 {
	test.Helper()
	store.mutex.Lock()
	defer store.mutex.Unlock()
	balance, found := store.balances[userID.String()]
	if !found {
		test.Fatalf("no balance record for %s", userID.String())
	}
	return balance
}

func (store *stubStore) FetchBalance(_ context.Context, userID UserID) (Coins, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.fetchError != nil {
		return 0, false, store.fetchError
	}
	balance, found := store.balances[userID.String()]
	return Coins(balance), found, nil
}

func (store *stubStore) CreateIfAbsent(_ context.Context, userID UserID, starting Coins) (Coins, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.createCalls++
	if store.createError != nil {
		return 0, store.createError
	}
	if existing, found := store.balances[userID.String()]; found {
		return Coins(existing), nil
	}
	store.balances[userID.String()] = starting.Int64()
	return starting, nil
}

func (store *stubStore) AdjustGuarded(_ context.Context, userID UserID, delta Coins) (Coins, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.adjustCalls++
	if len(store.adjustErrors) > 0 {
		nextError := store.adjustErrors[0]
		store.adjustErrors = store.adjustErrors[1:]
		if nextError != nil {
			return 0, nextError
		}
	}
	balance, found := store.balances[userID.String()]
	if !found {
		return 0, ErrUnknownBalance
	}
	if balance+delta.Int64() < 0 {
		return 0, ErrGuardViolated
	}
	balance += delta.Int64()
	store.balances[userID.String()] = balance
	return Coins(balance), nil
}

func (store *stubStore) ResetBalance(_ context.Context, userID UserID, balance Coins) (Coins, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.resetError != nil {
		return 0, store.resetError
	}
	store.balances[userID.String()] = balance.Int64()
	return balance, nil
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func mustService(test *testing.T, store Store, engine *spin.Engine, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, engine, Config{StartingBalance: 100}, options...)
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	return service
}

func mustGlyphSymbol(test *testing.T, glyph string) spin.Symbol {
	test.Helper()
	symbol, err := spin.NewGlyphSymbol(glyph)
	if err != nil {
		test.Fatalf("glyph symbol: %v", err)
	}
	return symbol
}

// winningEngine always scores one matched row worth 50: a single-glyph
// catalog over a 1x2 grid.
func winningEngine(test *testing.T) *spin.Engine {
	test.Helper()
	engine, err := spin.NewEngine(spin.Rules{
		Catalog:  []spin.Symbol{mustGlyphSymbol(test, "A")},
		Rows:     1,
		Columns:  2,
		RowPrize: 50,
	})
	if err != nil {
		test.Fatalf("engine: %v", err)
	}
	return engine
}

// losingEngine never scores when driven by alternatingRand: two glyphs over a
// 1x2 grid, drawn in strict alternation.
func losingEngine(test *testing.T) *spin.Engine {
	test.Helper()
	engine, err := spin.NewEngine(spin.Rules{
		Catalog:  []spin.Symbol{mustGlyphSymbol(test, "A"), mustGlyphSymbol(test, "B")},
		Rows:     1,
		Columns:  2,
		RowPrize: 50,
	})
	if err != nil {
		test.Fatalf("engine: %v", err)
	}
	return engine
}

// alternatingRand yields 0, 1, 0, 1, ... so a two-symbol 1x2 draw never
// produces a uniform row.
type alternatingRand struct {
	next int
}

func (rng *alternatingRand) IntN(n int) int {
	value := rng.next % n
	rng.next++
	return value
}
