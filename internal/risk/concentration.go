package risk

import (
	"context"
	"sort"
)

const (
	DefaultMaxConcentration = 0.5
	DefaultTopHolders       = 10
)

// Holder is one balance entry in a token's holder list.
type Holder struct {
	Address string
	Amount  float64
}

// HolderDistribution is the holder list of a token and its total supply, in
// the same units.
type HolderDistribution struct {
	Holders     []Holder
	TotalSupply float64
}

// HolderSource fetches the largest holders of a token. Implementations return
// an empty distribution when the provider fails.
type HolderSource interface {
	Holders(ctx context.Context, address string, limit int) HolderDistribution
}

// ConcentrationResult is the outcome of a concentration check.
type ConcentrationResult struct {
	Concentration float64
	TopN          int
	Passed        bool
}

// Concentration returns the share of total supply held by the topN largest
// holders. A non-positive supply counts as fully concentrated.
func Concentration(holders []Holder, totalSupply float64, topN int) float64 {
	if totalSupply <= 0 {
		return 1.0
	}

	amounts := make([]float64, 0, len(holders))
	for _, h := range holders {
		amounts = append(amounts, h.Amount)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(amounts)))
	if topN > 0 && len(amounts) > topN {
		amounts = amounts[:topN]
	}

	var sum float64
	for _, a := range amounts {
		sum += a
	}
	return sum / totalSupply
}

// ConcentrationAnalyzer checks that supply is not held by a handful of wallets.
type ConcentrationAnalyzer struct {
	Source           HolderSource
	MaxConcentration float64
	TopN             int
}

// Analyze fetches holders and applies the threshold (pass iff <= max).
func (a *ConcentrationAnalyzer) Analyze(ctx context.Context, address string) ConcentrationResult {
	dist := a.Source.Holders(ctx, address, a.TopN)
	c := Concentration(dist.Holders, dist.TotalSupply, a.TopN)
	return ConcentrationResult{
		Concentration: c,
		TopN:          a.TopN,
		Passed:        c <= a.MaxConcentration,
	}
}
