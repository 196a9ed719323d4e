package gatekeeper

import (
	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/storage"
	"github.com/liamashdown/tokengate/internal/trade"
)

// Status is the overall verdict for an asset
type Status string

const (
	StatusSafe     Status = "safe_for_trading"
	StatusRejected Status = "rejected"
)

// Rejection names the stage that disqualified an asset. Rejections are
// expected outcomes, not errors.
type Rejection string

const (
	RejectBlacklisted        Rejection = "blacklisted"
	RejectUnsafeContract     Rejection = "unsafe_contract"
	RejectConcentratedSupply Rejection = "concentrated_supply"
	RejectFiltered           Rejection = "filtered"
	RejectFakeVolume         Rejection = "fake_volume"
	RejectSuspectedScam      Rejection = "suspected_scam"
	RejectUnsupportedChain   Rejection = "unsupported_chain"
)

type blacklistEntry struct {
	category string
	reason   string
}

// blacklistEntries are written when a stage disqualifies an asset for good.
var blacklistEntries = map[Rejection]blacklistEntry{
	RejectUnsafeContract:     {storage.CategoryContract, "unsafe contract"},
	RejectConcentratedSupply: {storage.CategoryConcentration, "concentrated supply"},
	RejectFakeVolume:         {storage.CategoryVolume, "fake volume"},
}

// AlertType is the terminal alert written for this rejection.
func (r Rejection) AlertType() alerts.Type {
	return alerts.Type(r)
}

// Permanent reports whether the rejection writes a blacklist entry.
func (r Rejection) Permanent() bool {
	_, ok := blacklistEntries[r]
	return ok
}

// Signals are the non-blocking observations from the signal stage.
type Signals struct {
	Pump    bool               `json:"pump"`
	Scam    bool               `json:"scam"`
	Anomaly risk.AnomalyResult `json:"anomaly"`
}

// Decision is the pure result of an evaluation.
type Decision struct {
	Address   string           `json:"address"`
	Status    Status           `json:"status"`
	Rejection Rejection        `json:"reason,omitempty"`
	Message   string           `json:"message,omitempty"`
	Data      *risk.MarketData `json:"data,omitempty"`
	Signals   Signals          `json:"signals"`
}

// Passed reports whether the asset is safe for trading.
func (d Decision) Passed() bool {
	return d.Status == StatusSafe
}

// EffectKind selects how an Effect is dispatched
type EffectKind string

const (
	EffectAlert EffectKind = "alert"
	EffectTrade EffectKind = "trade"
)

// Effect is a side effect requested by an evaluation. Effects run after the
// decision is made, in order.
type Effect struct {
	Kind    EffectKind
	Address string

	// alert
	AlertType alerts.Type
	Message   string

	// trade
	Action   trade.Action
	Amount   float64
	Slippage float64
}

// AlertEffect builds an alert effect.
func AlertEffect(alertType alerts.Type, address, message string) Effect {
	return Effect{Kind: EffectAlert, Address: address, AlertType: alertType, Message: message}
}

// TradeEffect builds a trade effect.
func TradeEffect(action trade.Action, address string, amount, slippage float64) Effect {
	return Effect{Kind: EffectTrade, Address: address, Action: action, Amount: amount, Slippage: slippage}
}

// Outcome pairs a decision with the effects it requested.
type Outcome struct {
	Decision Decision
	Effects  []Effect
}
