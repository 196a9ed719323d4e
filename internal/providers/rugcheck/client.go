// Package rugcheck reads contract-safety reports from the RugCheck API.
package rugcheck

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/providers/httpjson"
	"github.com/liamashdown/tokengate/internal/risk"
)

const (
	providerName = "rugcheck"

	// LockedLPPct is the share of LP tokens that must be locked or burned
	// for liquidity to count as locked.
	LockedLPPct = 90.0
)

// Client handles communication with the RugCheck API
type Client struct {
	http *httpjson.Client
	log  *logrus.Logger
}

// NewClient creates a new RugCheck client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		http: httpjson.New(providerName, cfg.RugCheckBaseURL, cfg.ProviderTimeout, cfg.RugCheckRPS, nil),
		log:  log,
	}
}

// GetReport fetches the full report for a mint.
func (c *Client) GetReport(ctx context.Context, address string) (*Report, error) {
	var report Report
	if err := c.http.Get(ctx, "report", "/v1/tokens/"+url.PathEscape(address)+"/report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ContractReport implements risk.ContractReporter.
func (c *Client) ContractReport(ctx context.Context, address string) risk.ContractReport {
	report, err := c.GetReport(ctx, address)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"provider": providerName,
			"address":  address,
			"error":    err,
		}).Warn("Contract report fetch failed")
		return risk.ContractReport{}
	}
	return ToContractReport(report)
}

// ToContractReport converts a RugCheck report into the analyzer's view. The
// score is inverted so that higher means safer. A rugged token always
// carries a danger-level risk.
func ToContractReport(r *Report) risk.ContractReport {
	score := 100 - r.ScoreNormalised
	if score < 0 {
		score = 0
	}

	out := risk.ContractReport{
		Available: true,
		Score:     float64(score),
		Verified:  r.Verification != nil && (r.Verification.JupVerified || r.Verification.JupStrict),
	}
	for _, item := range r.Risks {
		out.Risks = append(out.Risks, risk.RiskItem{Name: item.Name, Level: item.Level})
	}
	if r.Rugged {
		out.Risks = append(out.Risks, risk.RiskItem{Name: "Rugged", Level: "danger"})
	}
	for _, m := range r.Markets {
		if m.LP != nil && m.LP.LPLockedPct >= LockedLPPct {
			out.LiquidityLocked = true
			break
		}
	}
	return out
}
