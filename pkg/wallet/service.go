package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
	"github.com/google/uuid"
)

// Service owns durable user balances and settles spins against them. Every
// spin is an atomic transition debit-cost, evaluate, credit-prize; the
// admission check and the debit are one guarded store update, so no
// interleaving can double-spend or leave a negative rest-state balance.
type Service struct {
	store       Store
	engine      *spin.Engine
	starting    Coins
	maxAttempts int
	logger      OperationLogger
}

// NewService wires a Service.
func NewService(store Store, engine *spin.Engine, config Config, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", ErrInvalidServiceConfig)
	}
	if config.StartingBalance < 0 {
		return nil, fmt.Errorf("%w: starting balance %d", ErrInvalidServiceConfig, config.StartingBalance)
	}
	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts %d", ErrInvalidServiceConfig, config.MaxAttempts)
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	service := &Service{
		store:       store,
		engine:      engine,
		starting:    config.StartingBalance,
		maxAttempts: config.MaxAttempts,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the user's balance, creating the record with the starting
// value on first access.
func (service *Service) Balance(ctx context.Context, userID UserID) (Coins, error) {
	balance, found, err := service.store.FetchBalance(ctx, userID)
	if err != nil {
		return 0, WrapError(operationBalance, errorSubjectBalance, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, err))
	}
	if found {
		return balance, nil
	}
	created, err := service.store.CreateIfAbsent(ctx, userID, service.starting)
	if err != nil {
		return 0, WrapError(operationBalance, errorSubjectBalance, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, err))
	}
	return created, nil
}

// PlaceSpin settles one spin: reserve the cost, draw and score a grid, credit
// any prize. The returned receipt carries the final persisted balance, which
// equals balanceBefore - cost + prize exactly.
//
// Error contract: ErrInsufficientFunds and ErrWalletUnavailable guarantee the
// stored balance is unchanged; ErrSpinUnsettled means the debit committed but
// the credit state is uncertain and the balance must be re-read.
func (service *Service) PlaceSpin(ctx context.Context, userID UserID, cost Coins, rng spin.Rand) (Receipt, error) {
	if cost <= 0 {
		return Receipt{}, fmt.Errorf("%w: must be positive, got %d", ErrInvalidSpinCost, cost)
	}
	if rng == nil {
		return Receipt{}, fmt.Errorf("%w: rand source is nil", ErrInvalidServiceConfig)
	}

	if _, err := service.store.CreateIfAbsent(ctx, userID, service.starting); err != nil {
		return Receipt{}, service.failSpin(ctx, userID, cost, WrapError(operationSpin, errorSubjectBalance, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)))
	}

	debited, err := service.adjustWithRetry(ctx, userID, -cost)
	if err != nil {
		if errors.Is(err, ErrGuardViolated) {
			return Receipt{}, service.failSpin(ctx, userID, cost, WrapError(operationSpin, errorSubjectDebit, errorCodeGuard, ErrInsufficientFunds))
		}
		return Receipt{}, service.failSpin(ctx, userID, cost, WrapError(operationSpin, errorSubjectDebit, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)))
	}

	// The engine touches no shared state, so evaluation runs outside any
	// critical section.
	grid := service.engine.DrawGrid(rng)
	outcome := service.engine.Evaluate(grid)
	receipt := Receipt{
		SpinID:  uuid.NewString(),
		Grid:    grid,
		Outcome: outcome,
		Balance: debited,
	}

	if outcome.Prize > 0 {
		// The debit is durable at this point. Detach the credit from caller
		// cancellation so an abandoned request still settles instead of
		// resting debited-but-uncredited.
		settleCtx := context.WithoutCancel(ctx)
		credited, creditErr := service.adjustWithRetry(settleCtx, userID, Coins(outcome.Prize))
		if creditErr != nil {
			if _, refundErr := service.adjustWithRetry(settleCtx, userID, cost); refundErr != nil {
				return Receipt{}, service.failSpin(ctx, userID, cost, WrapError(operationSpin, errorSubjectRefund, errorCodeUnsettled, fmt.Errorf("%w: credit failed (%v) and refund failed (%v)", ErrSpinUnsettled, creditErr, refundErr)))
			}
			// Compensating credit restored the pre-spin balance, so the
			// caller sees a clean no-mutation failure.
			return Receipt{}, service.failSpin(ctx, userID, cost, WrapError(operationSpin, errorSubjectCredit, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, creditErr)))
		}
		receipt.Balance = credited
	}

	service.logOperation(ctx, OperationLog{
		Operation: operationSpin,
		UserID:    userID,
		SpinID:    receipt.SpinID,
		Cost:      cost,
		Prize:     Coins(outcome.Prize),
		Balance:   receipt.Balance,
	})
	return receipt, nil
}

// Reset restores the user's balance to the starting value, creating the
// record if it does not exist yet. Administrative use only.
func (service *Service) Reset(ctx context.Context, userID UserID) (Coins, error) {
	balance, err := service.store.ResetBalance(ctx, userID, service.starting)
	if err != nil {
		wrapped := WrapError(operationReset, errorSubjectBalance, errorCodeStore, fmt.Errorf("%w: %v", ErrWalletUnavailable, err))
		service.logOperation(ctx, OperationLog{Operation: operationReset, UserID: userID, Error: wrapped})
		return 0, wrapped
	}
	service.logOperation(ctx, OperationLog{Operation: operationReset, UserID: userID, Balance: balance})
	return balance, nil
}

// adjustWithRetry applies one guarded balance update, retrying transient
// conflicts up to the configured bound. Non-conflict errors are returned
// unchanged; exhausted retries return the last conflict.
func (service *Service) adjustWithRetry(ctx context.Context, userID UserID, delta Coins) (Coins, error) {
	var lastErr error
	for attempt := 0; attempt < service.maxAttempts; attempt++ {
		balance, err := service.store.AdjustGuarded(ctx, userID, delta)
		if err == nil {
			return balance, nil
		}
		if !errors.Is(err, ErrStoreConflict) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (service *Service) failSpin(ctx context.Context, userID UserID, cost Coins, err error) error {
	service.logOperation(ctx, OperationLog{
		Operation: operationSpin,
		UserID:    userID,
		Cost:      cost,
		Error:     err,
	})
	return err
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
