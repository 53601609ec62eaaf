package observability

import (
	"context"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	statusOK               = "ok"
	statusError            = "error"
	statusAlreadyPurchased = "already_purchased"
)

// OperationRecorder implements ledger.OperationLogger with zap and Prometheus.
type OperationRecorder struct {
	logger  *zap.Logger
	metrics *Metrics
}

// NewOperationRecorder returns a recorder; either dependency may be nil.
func NewOperationRecorder(logger *zap.Logger, metrics *Metrics) *OperationRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationRecorder{logger: logger, metrics: metrics}
}

func (recorder *OperationRecorder) LogOperation(_ context.Context, entry ledger.OperationLog) {
	if recorder.metrics != nil {
		recorder.metrics.Operations.WithLabelValues(entry.Operation, entry.Status).Inc()
		if entry.ErrorKind != ledger.ErrorKindNone {
			recorder.metrics.OperationErrors.WithLabelValues(entry.Operation, string(entry.ErrorKind)).Inc()
		}
	}
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	fields = appendNonEmpty(fields, "content_id", entry.ContentID.String())
	fields = appendNonEmpty(fields, "buyer_id", entry.BuyerID.String())
	fields = appendNonEmpty(fields, "creator_id", entry.CreatorID.String())
	fields = appendNonEmpty(fields, "transaction_id", entry.TransactionID.String())
	fields = appendNonEmpty(fields, "session_id", entry.SessionID.String())
	fields = appendNonEmpty(fields, "withdrawal_id", entry.WithdrawalID.String())
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.ErrorKind != ledger.ErrorKindNone {
		fields = append(fields, zap.String("error_kind", string(entry.ErrorKind)))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	if checked := recorder.logger.Check(levelFor(entry.Status), "ledger operation"); checked != nil {
		checked.Write(fields...)
	}
}

// levelFor logs failures at error, anomalies such as rejected checksums or pending ledger
// updates at warn, and normal outcomes at info.
func levelFor(status string) zapcore.Level {
	switch status {
	case statusOK, statusAlreadyPurchased:
		return zapcore.InfoLevel
	case statusError:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

func appendNonEmpty(fields []zap.Field, key string, value string) []zap.Field {
	if value == "" {
		return fields
	}
	return append(fields, zap.String(key, value))
}
