package playapi

import (
	"context"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
	"go.uber.org/zap"
)

// zapOperationLogger forwards wallet operation events to a zap logger.
type zapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger adapts a zap logger to the wallet.OperationLogger
// interface.
func NewZapOperationLogger(logger *zap.Logger) wallet.OperationLogger {
	return &zapOperationLogger{logger: logger}
}

func (adapter *zapOperationLogger) LogOperation(_ context.Context, entry wallet.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.String("status", entry.Status),
		zap.Int64("balance", entry.Balance.Int64()),
	}
	if entry.SpinID != "" {
		fields = append(fields,
			zap.String("spin_id", entry.SpinID),
			zap.Int64("cost", entry.Cost.Int64()),
			zap.Int64("prize", entry.Prize.Int64()),
		)
	}
	if entry.Error != nil {
		adapter.logger.Warn("wallet operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("wallet operation", fields...)
}
