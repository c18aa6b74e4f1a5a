package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
)

func mustUserID(test *testing.T, raw string) wallet.UserID {
	test.Helper()
	userID, err := wallet.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func TestFetchBalanceReportsAbsence(test *testing.T) {
	test.Parallel()
	store := New()
	_, found, err := store.FetchBalance(context.Background(), mustUserID(test, "ghost"))
	if err != nil {
		test.Fatalf("fetch: %v", err)
	}
	if found {
		test.Fatalf("expected absence for unknown user")
	}
}

func TestCreateIfAbsentIsIdempotentUnderConcurrency(test *testing.T) {
	test.Parallel()
	store := New()
	userID := mustUserID(test, "first-timer")

	const workers = 32
	balances := make([]wallet.Coins, workers)
	var waitGroup sync.WaitGroup
	for index := 0; index < workers; index++ {
		waitGroup.Add(1)
		go func(slot int) {
			defer waitGroup.Done()
			balance, err := store.CreateIfAbsent(context.Background(), userID, 100)
			if err != nil {
				test.Errorf("create: %v", err)
				return
			}
			balances[slot] = balance
		}(index)
	}
	waitGroup.Wait()

	for slot, balance := range balances {
		if balance != 100 {
			test.Fatalf("worker %d observed starting balance %d", slot, balance)
		}
	}
	balance, found, err := store.FetchBalance(context.Background(), userID)
	if err != nil || !found {
		test.Fatalf("fetch after create: found=%v err=%v", found, err)
	}
	if balance != 100 {
		test.Fatalf("expected 100, got %d", balance)
	}
}

func TestCreateIfAbsentKeepsExistingBalance(test *testing.T) {
	test.Parallel()
	store := New()
	userID := mustUserID(test, "veteran")
	if _, err := store.CreateIfAbsent(context.Background(), userID, 100); err != nil {
		test.Fatalf("create: %v", err)
	}
	if _, err := store.AdjustGuarded(context.Background(), userID, -40); err != nil {
		test.Fatalf("adjust: %v", err)
	}
	balance, err := store.CreateIfAbsent(context.Background(), userID, 100)
	if err != nil {
		test.Fatalf("second create: %v", err)
	}
	if balance != 60 {
		test.Fatalf("create overwrote existing balance: %d", balance)
	}
}

func TestAdjustGuardedRejectsNegativeResult(test *testing.T) {
	test.Parallel()
	store := New()
	userID := mustUserID(test, "guarded")
	if _, err := store.CreateIfAbsent(context.Background(), userID, 15); err != nil {
		test.Fatalf("create: %v", err)
	}

	balance, err := store.AdjustGuarded(context.Background(), userID, -10)
	if err != nil {
		test.Fatalf("adjust: %v", err)
	}
	if balance != 5 {
		test.Fatalf("expected 5, got %d", balance)
	}
	if _, err := store.AdjustGuarded(context.Background(), userID, -10); !errors.Is(err, wallet.ErrGuardViolated) {
		test.Fatalf("expected ErrGuardViolated, got %v", err)
	}
	balance, _, err = store.FetchBalance(context.Background(), userID)
	if err != nil {
		test.Fatalf("fetch: %v", err)
	}
	if balance != 5 {
		test.Fatalf("guard violation mutated balance: %d", balance)
	}
}

func TestAdjustGuardedUnknownBalance(test *testing.T) {
	test.Parallel()
	store := New()
	if _, err := store.AdjustGuarded(context.Background(), mustUserID(test, "nobody"), -1); !errors.Is(err, wallet.ErrUnknownBalance) {
		test.Fatalf("expected ErrUnknownBalance, got %v", err)
	}
}

func TestConcurrentDebitsAdmitExactlyAffordableCount(test *testing.T) {
	test.Parallel()
	store := New()
	userID := mustUserID(test, "contended")
	if _, err := store.CreateIfAbsent(context.Background(), userID, 100); err != nil {
		test.Fatalf("create: %v", err)
	}

	const workers = 30
	results := make([]error, workers)
	var waitGroup sync.WaitGroup
	for index := 0; index < workers; index++ {
		waitGroup.Add(1)
		go func(slot int) {
			defer waitGroup.Done()
			_, results[slot] = store.AdjustGuarded(context.Background(), userID, -10)
		}(index)
	}
	waitGroup.Wait()

	accepted := 0
	for _, result := range results {
		if result == nil {
			accepted++
			continue
		}
		if !errors.Is(result, wallet.ErrGuardViolated) {
			test.Fatalf("unexpected error: %v", result)
		}
	}
	if accepted != 10 {
		test.Fatalf("expected exactly 10 accepted debits, got %d", accepted)
	}
	balance, _, err := store.FetchBalance(context.Background(), userID)
	if err != nil {
		test.Fatalf("fetch: %v", err)
	}
	if balance != 0 {
		test.Fatalf("expected final balance 0, got %d", balance)
	}
}

func TestResetBalanceCreatesAndOverwrites(test *testing.T) {
	test.Parallel()
	store := New()
	userID := mustUserID(test, "resettable")

	balance, err := store.ResetBalance(context.Background(), userID, 100)
	if err != nil {
		test.Fatalf("reset: %v", err)
	}
	if balance != 100 {
		test.Fatalf("expected 100, got %d", balance)
	}
	if _, err := store.AdjustGuarded(context.Background(), userID, -60); err != nil {
		test.Fatalf("adjust: %v", err)
	}
	balance, err = store.ResetBalance(context.Background(), userID, 100)
	if err != nil {
		test.Fatalf("second reset: %v", err)
	}
	if balance != 100 {
		test.Fatalf("expected 100 after reset, got %d", balance)
	}
}
