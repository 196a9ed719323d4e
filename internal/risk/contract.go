package risk

import (
	"context"
	"fmt"
	"strings"
)

// RiskItem is one issue raised by a contract scanner.
type RiskItem struct {
	Name  string
	Level string // info, warn, danger
}

// IsCritical reports whether the issue alone disqualifies a contract.
func (r RiskItem) IsCritical() bool {
	switch strings.ToLower(r.Level) {
	case "danger", "critical":
		return true
	}
	return false
}

// ContractReport is the contract-safety view of one asset. Available is false
// when the provider could not be reached or returned garbage.
type ContractReport struct {
	Available       bool
	Score           float64
	Risks           []RiskItem
	LiquidityLocked bool
	Verified        bool
}

// ContractReporter fetches a contract report; failures yield a report with
// Available=false.
type ContractReporter interface {
	ContractReport(ctx context.Context, address string) ContractReport
}

// ContractVerdict is the outcome of the contract safety analyzer.
type ContractVerdict struct {
	Safe            bool
	Score           float64
	LiquidityLocked bool
	Verified        bool
	Reasons         []string
}

// ContractSafetyAnalyzer ANDs three checks: score/critical issues, locked
// liquidity and verification. Missing data fails every check.
type ContractSafetyAnalyzer struct {
	Reporter ContractReporter
	MinScore float64
}

// Analyze runs the three sub-checks, stopping at the first failure.
func (a *ContractSafetyAnalyzer) Analyze(ctx context.Context, address string) ContractVerdict {
	report := a.Reporter.ContractReport(ctx, address)
	verdict := ContractVerdict{
		Score:           report.Score,
		LiquidityLocked: report.Available && report.LiquidityLocked,
		Verified:        report.Available && report.Verified,
	}

	if !report.Available {
		verdict.Reasons = append(verdict.Reasons, "contract report unavailable")
		return verdict
	}

	if reason, ok := a.scoreCheck(report); !ok {
		verdict.Reasons = append(verdict.Reasons, reason)
		return verdict
	}
	if !report.LiquidityLocked {
		verdict.Reasons = append(verdict.Reasons, "liquidity not locked")
		return verdict
	}
	if !report.Verified {
		verdict.Reasons = append(verdict.Reasons, "contract not verified")
		return verdict
	}

	verdict.Safe = true
	return verdict
}

func (a *ContractSafetyAnalyzer) scoreCheck(report ContractReport) (string, bool) {
	if report.Score < a.MinScore {
		return fmt.Sprintf("risk score %.0f below minimum %.0f", report.Score, a.MinScore), false
	}
	for _, r := range report.Risks {
		if r.IsCritical() {
			return "critical issue: " + r.Name, false
		}
	}
	return "", true
}
