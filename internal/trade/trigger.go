// Package trade turns buy/sell signals into executed orders. Failures are
// recorded and absorbed; callers only learn whether an id was produced.
package trade

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/storage"
)

// DefaultSlippage is used when the caller passes a non-positive slippage.
const DefaultSlippage = 0.11

// Store is the trade audit table.
type Store interface {
	InsertTrade(ctx context.Context, trade *storage.TradeRecord) error
}

// AlertRecorder receives the trade and trade_error alerts.
type AlertRecorder interface {
	Record(ctx context.Context, alertType alerts.Type, address, message string) int64
}

// Trigger executes trades and audits every attempt
type Trigger struct {
	executor Executor
	store    Store
	alerts   AlertRecorder
	log      *logrus.Logger
}

// NewTrigger creates a trade trigger
func NewTrigger(executor Executor, store Store, recorder AlertRecorder, log *logrus.Logger) *Trigger {
	return &Trigger{
		executor: executor,
		store:    store,
		alerts:   recorder,
		log:      log,
	}
}

// Execute submits one order. It returns the trade id and true on success,
// or "" and false on failure; it never returns an error.
func (t *Trigger) Execute(ctx context.Context, address string, action Action, amount, slippage float64) (string, bool) {
	if slippage <= 0 {
		slippage = DefaultSlippage
	}
	order := Order{
		Address:  address,
		Action:   action,
		Amount:   decimal.NewFromFloat(amount),
		Slippage: decimal.NewFromFloat(slippage),
	}

	id, err := t.executor.Execute(ctx, order)

	rec := &storage.TradeRecord{
		TradeID:  id,
		Address:  address,
		Action:   string(action),
		Amount:   amount,
		Slippage: slippage,
		Status:   "executed",
	}
	if err != nil {
		rec.Status = "failed"
		rec.Error = err.Error()
	}
	metrics.Trades.WithLabelValues(string(action), rec.Status).Inc()

	if storeErr := t.store.InsertTrade(ctx, rec); storeErr != nil {
		t.log.WithFields(logrus.Fields{
			"address": address,
			"action":  action,
			"error":   storeErr,
		}).Error("Failed to record trade")
	}

	fields := logrus.Fields{
		"address":  address,
		"action":   action,
		"amount":   order.Amount.String(),
		"slippage": order.Slippage.String(),
	}

	if err != nil {
		fields["error"] = err
		t.log.WithFields(fields).Warn("Trade failed")
		t.alerts.Record(ctx, alerts.TypeTradeError, address,
			fmt.Sprintf("%s %s of %s failed: %v", action, order.Amount.String(), address, err))
		return "", false
	}

	fields["trade_id"] = id
	t.log.WithFields(fields).Info("Trade executed")
	t.alerts.Record(ctx, alerts.TypeTrade, address,
		fmt.Sprintf("%s %s of %s executed (slippage %s), trade id %s", action, order.Amount.String(), address, order.Slippage.String(), id))
	return id, true
}
