package gatekeeper

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/trade"
)

// AlertRecorder records and delivers alerts.
type AlertRecorder interface {
	Record(ctx context.Context, alertType alerts.Type, address, message string) int64
}

// TradeTrigger executes trades; failures are absorbed by the implementation.
type TradeTrigger interface {
	Execute(ctx context.Context, address string, action trade.Action, amount, slippage float64) (string, bool)
}

// DispatchReport summarises what a Dispatch call did.
type DispatchReport struct {
	Alerts       int      `json:"alerts"`
	TradeIDs     []string `json:"trade_ids,omitempty"`
	FailedTrades int      `json:"failed_trades,omitempty"`
}

// Dispatcher performs the effects of an Outcome
type Dispatcher struct {
	alerts AlertRecorder
	trades TradeTrigger
	log    *logrus.Logger
}

// NewDispatcher creates a dispatcher. trades may be nil, in which case trade
// effects are logged and skipped.
func NewDispatcher(recorder AlertRecorder, trades TradeTrigger, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		alerts: recorder,
		trades: trades,
		log:    log,
	}
}

// Dispatch runs effects in order. It never fails; individual failures are
// recorded by the alert and trade components themselves.
func (d *Dispatcher) Dispatch(ctx context.Context, effects []Effect) DispatchReport {
	var report DispatchReport
	for _, e := range effects {
		switch e.Kind {
		case EffectAlert:
			d.alerts.Record(ctx, e.AlertType, e.Address, e.Message)
			report.Alerts++
		case EffectTrade:
			if d.trades == nil {
				d.log.WithFields(logrus.Fields{
					"address": e.Address,
					"action":  e.Action,
				}).Warn("Trade effect skipped, no trade trigger configured")
				continue
			}
			if id, ok := d.trades.Execute(ctx, e.Address, e.Action, e.Amount, e.Slippage); ok {
				report.TradeIDs = append(report.TradeIDs, id)
			} else {
				report.FailedTrades++
			}
		}
	}
	return report
}
