// Package risk holds the analyzers and detectors the gatekeeper runs against
// a single asset. Everything here is CPU-only; network access happens through
// the small source interfaces declared next to each analyzer.
package risk

import (
	"context"
	"time"
)

// Chain is the ledger an asset address lives on.
type Chain string

const (
	ChainSolana Chain = "solana"
	ChainEVM    Chain = "evm"
)

// MarketData is the merged market view of one asset.
type MarketData struct {
	PriceUSD       float64   `json:"price_usd"`
	PriceChange24h float64   `json:"price_change_24h"`
	Volume24h      float64   `json:"volume_24h"`
	LiquidityUSD   float64   `json:"liquidity_usd"`
	MarketCapUSD   float64   `json:"market_cap_usd"`
	Makers24h      int       `json:"makers_24h"`
	PairCreatedAt  time.Time `json:"pair_created_at"`
	Sources        []string  `json:"sources,omitempty"`

	// Reported marks the fields the provider actually returned, so a real
	// zero is not mistaken for a gap.
	Reported Field `json:"-"`
}

// Field is a bit set over the MarketData values.
type Field uint8

const (
	FieldPrice Field = 1 << iota
	FieldPriceChange
	FieldVolume
	FieldLiquidity
	FieldMarketCap
	FieldMakers
	FieldPairCreatedAt
)

// Has reports whether f was returned by the provider. A view without a
// Reported set counts its non-zero fields as returned.
func (m MarketData) Has(f Field) bool {
	if m.Reported != 0 {
		return m.Reported&f != 0
	}
	switch f {
	case FieldPrice:
		return m.PriceUSD != 0
	case FieldPriceChange:
		return m.PriceChange24h != 0
	case FieldVolume:
		return m.Volume24h != 0
	case FieldLiquidity:
		return m.LiquidityUSD != 0
	case FieldMarketCap:
		return m.MarketCapUSD != 0
	case FieldMakers:
		return m.Makers24h != 0
	case FieldPairCreatedAt:
		return !m.PairCreatedAt.IsZero()
	}
	return false
}

// MarketSource fetches market data for one asset. Implementations return the
// zero value when the provider fails.
type MarketSource interface {
	MarketData(ctx context.Context, address string) MarketData
}

// IsEmpty reports whether no provider contributed data.
func (m MarketData) IsEmpty() bool {
	return len(m.Sources) == 0
}

// TokenAgeHours is the age of the oldest known trading pair. Unknown creation
// time yields 0.
func (m MarketData) TokenAgeHours(now time.Time) float64 {
	if m.PairCreatedAt.IsZero() || now.Before(m.PairCreatedAt) {
		return 0
	}
	return now.Sub(m.PairCreatedAt).Hours()
}

// MergeMarketData combines two provider views. Fields primary reported win;
// the rest are filled from secondary. The oldest pair creation time wins.
func MergeMarketData(primary, secondary MarketData) MarketData {
	out := primary
	out.Reported = 0

	take := func(f Field) bool {
		switch {
		case primary.Has(f):
			out.Reported |= f
			return false
		case secondary.Has(f):
			out.Reported |= f
			return true
		}
		return false
	}

	if take(FieldPrice) {
		out.PriceUSD = secondary.PriceUSD
	}
	if take(FieldPriceChange) {
		out.PriceChange24h = secondary.PriceChange24h
	}
	if take(FieldVolume) {
		out.Volume24h = secondary.Volume24h
	}
	if take(FieldLiquidity) {
		out.LiquidityUSD = secondary.LiquidityUSD
	}
	if take(FieldMarketCap) {
		out.MarketCapUSD = secondary.MarketCapUSD
	}
	if take(FieldMakers) {
		out.Makers24h = secondary.Makers24h
	}
	if take(FieldPairCreatedAt) || (secondary.Has(FieldPairCreatedAt) && secondary.PairCreatedAt.Before(out.PairCreatedAt)) {
		out.PairCreatedAt = secondary.PairCreatedAt
	}

	out.Sources = append(append([]string{}, primary.Sources...), secondary.Sources...)
	return out
}
