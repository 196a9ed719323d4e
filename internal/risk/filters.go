package risk

import (
	"fmt"
	"time"
)

// FilterConfig is the caller-tunable trading filter set.
type FilterConfig struct {
	MinLiquidity           float64 `json:"min_liquidity" yaml:"min_liquidity"`
	MinTokenAgeHours       float64 `json:"min_token_age_hours" yaml:"min_token_age_hours"`
	MinVolume              float64 `json:"min_volume" yaml:"min_volume"`
	RequireLockedLiquidity bool    `json:"require_locked_liquidity" yaml:"require_locked_liquidity"`
}

// FilterResult lists every criterion the asset missed.
type FilterResult struct {
	Passed   bool
	Failures []string
}

// Check compares live market metrics against the filter set. It makes no
// network calls.
func (f FilterConfig) Check(m MarketData, liquidityLocked bool, now time.Time) FilterResult {
	var failures []string

	if m.LiquidityUSD < f.MinLiquidity {
		failures = append(failures, fmt.Sprintf("liquidity %.2f < %.2f", m.LiquidityUSD, f.MinLiquidity))
	}
	if age := m.TokenAgeHours(now); age < f.MinTokenAgeHours {
		failures = append(failures, fmt.Sprintf("token age %.1fh < %.1fh", age, f.MinTokenAgeHours))
	}
	if m.Volume24h < f.MinVolume {
		failures = append(failures, fmt.Sprintf("volume %.2f < %.2f", m.Volume24h, f.MinVolume))
	}
	if f.RequireLockedLiquidity && !liquidityLocked {
		failures = append(failures, "liquidity not locked")
	}

	return FilterResult{Passed: len(failures) == 0, Failures: failures}
}
