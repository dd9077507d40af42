package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// LogNotifier writes events and alerts to the structured log. It stands in
// for a chat or webhook channel in local runs.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyEvent(ctx context.Context, planID string, event domain.Event) error {
	n.log.Info("replay event",
		zap.String("plan_id", planID),
		zap.String("type", string(event.Type)),
		zap.Time("date", event.Date),
		zap.Float64("price", event.Price),
		zap.Int("qty", event.Qty),
		zap.Float64("pnl", event.PnL),
		zap.String("detail", event.Detail))
	return nil
}

func (n *LogNotifier) Alert(ctx context.Context, planID, code, message string) error {
	n.log.Warn("alert",
		zap.String("plan_id", planID),
		zap.String("code", code),
		zap.String("message", message))
	return nil
}
