// Package gatekeeper decides whether a newly observed asset is safe for
// trading. Stages run in a fixed order and the first failure ends the run.
package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/cache"
	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/storage"
	"github.com/liamashdown/tokengate/internal/trade"
)

// Store is the persistent side of the pipeline.
type Store interface {
	IsBlacklisted(ctx context.Context, address string) (bool, *storage.BlacklistEntry, error)
	AddToBlacklist(ctx context.Context, address, category, reason string) error
	InsertSnapshotIfAbsent(ctx context.Context, snap *storage.AssetSnapshot) (bool, error)
	InsertSecurityCheck(ctx context.Context, check *storage.SecurityCheck) error
	InsertVolumeCheck(ctx context.Context, check *storage.VolumeCheck) error
}

// Deps are the collaborators a Pipeline is built from.
type Deps struct {
	Store Store
	Cache cache.Cache

	// Primary wins field-by-field; Secondary fills gaps.
	Primary   risk.MarketSource
	Secondary risk.MarketSource

	Holders      risk.HolderSource
	Contracts    risk.ContractReporter
	Corroborator risk.VolumeCorroborator // nil means local heuristic only
	Anomaly      *risk.AnomalyDetector

	// Chains the providers above can vet. Empty means solana only.
	Chains []risk.Chain
}

// Options alter a single evaluation.
type Options struct {
	// SkipFilters bypasses the caller-tunable trading filter stage only.
	SkipFilters bool

	// Chain the address belongs to. Empty means solana.
	Chain risk.Chain
}

// Pipeline runs the staged risk evaluation
type Pipeline struct {
	store         Store
	cache         cache.Cache
	primary       risk.MarketSource
	secondary     risk.MarketSource
	contract      *risk.ContractSafetyAnalyzer
	concentration *risk.ConcentrationAnalyzer
	fakeVolume    *risk.FakeVolumeDetector
	pump          risk.PumpDetector
	anomaly       *risk.AnomalyDetector
	chains        map[risk.Chain]bool

	profitThreshold float64
	autoTrade       bool
	tradeAmount     float64
	tradeSlippage   float64
	scamPolicy      config.ScamPolicy
	cacheTTL        time.Duration

	log *logrus.Logger
	now func() time.Time
}

// New creates a pipeline with thresholds taken from cfg.
func New(cfg *config.Config, deps Deps, log *logrus.Logger) *Pipeline {
	anomaly := deps.Anomaly
	if anomaly == nil {
		anomaly = risk.NewAnomalyDetector(risk.AnomalyConfig{
			Window:      cfg.AnomalyWindow,
			MinSamples:  cfg.AnomalyMinSamples,
			ZThreshold:  cfg.AnomalyZThreshold,
			TurnoverMax: cfg.AnomalyTurnoverMax,
		})
	}

	chains := map[risk.Chain]bool{}
	for _, c := range deps.Chains {
		chains[c] = true
	}
	if len(chains) == 0 {
		chains[risk.ChainSolana] = true
	}

	return &Pipeline{
		store:     deps.Store,
		cache:     deps.Cache,
		primary:   deps.Primary,
		secondary: deps.Secondary,
		contract: &risk.ContractSafetyAnalyzer{
			Reporter: deps.Contracts,
			MinScore: cfg.MinRiskScore,
		},
		concentration: &risk.ConcentrationAnalyzer{
			Source:           deps.Holders,
			MaxConcentration: cfg.MaxConcentration,
			TopN:             cfg.TopHolders,
		},
		fakeVolume: &risk.FakeVolumeDetector{
			VolumeThreshold: cfg.FakeVolumeThreshold,
			PriceChangeMax:  cfg.FakePriceChangeMax,
			MinMakers:       cfg.FakeMinMakers,
			Remote:          deps.Corroborator,
		},
		pump:            risk.PumpDetector{Threshold: cfg.PumpThreshold},
		anomaly:         anomaly,
		chains:          chains,
		profitThreshold: cfg.ProfitThreshold,
		autoTrade:       cfg.AutoTradeEnabled,
		tradeAmount:     cfg.TradeAmount,
		tradeSlippage:   cfg.TradeSlippage,
		scamPolicy:      cfg.ScamPolicy,
		cacheTTL:        cfg.CacheTTL,
		log:             log,
		now:             time.Now,
	}
}

// Anomaly exposes the detector so the scheduler can reseed it.
func (p *Pipeline) Anomaly() *risk.AnomalyDetector {
	return p.anomaly
}

// evaluation carries per-run state between stages.
type evaluation struct {
	address       string
	verdict       risk.ContractVerdict
	concentration risk.ConcentrationResult
	market        risk.MarketData
	effects       []Effect
	signals       Signals
}

// Evaluate runs every stage for address. Rejections come back as an Outcome;
// the error is reserved for persistent-store failures.
func (p *Pipeline) Evaluate(ctx context.Context, address string, filters risk.FilterConfig, opts Options) (*Outcome, error) {
	start := time.Now()
	ev := &evaluation{address: address}

	outcome, err := p.run(ctx, ev, filters, opts)

	result := "error"
	if err == nil {
		result = string(outcome.Decision.Status)
		if !outcome.Decision.Passed() {
			result = string(outcome.Decision.Rejection)
		}
	}
	metrics.RecordEvaluation(result, time.Since(start))

	if err != nil {
		p.log.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Evaluation failed")
		return nil, err
	}

	fields := logrus.Fields{
		"address":     address,
		"status":      outcome.Decision.Status,
		"effects":     len(outcome.Effects),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if !outcome.Decision.Passed() {
		fields["reason"] = outcome.Decision.Rejection
		fields["message"] = outcome.Decision.Message
	}
	p.log.WithFields(fields).Info("Evaluation complete")
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, ev *evaluation, filters risk.FilterConfig, opts Options) (*Outcome, error) {
	// 1. blacklist
	stageStart := time.Now()
	listed, entry, err := p.store.IsBlacklisted(ctx, ev.address)
	metrics.RecordStage("blacklist", time.Since(stageStart))
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if listed {
		msg := "address is blacklisted"
		if entry != nil {
			msg = fmt.Sprintf("address is blacklisted: %s", entry.Reason)
		}
		return p.reject(ev, RejectBlacklisted, msg), nil
	}

	// Unsupported chains stop before any provider call.
	chain := opts.Chain
	if chain == "" {
		chain = risk.ChainSolana
	}
	if !p.chains[chain] {
		return p.reject(ev, RejectUnsupportedChain, fmt.Sprintf("no risk providers configured for chain %s", chain)), nil
	}

	// 2. contract safety
	stageStart = time.Now()
	ev.verdict = p.contract.Analyze(ctx, ev.address)
	metrics.RecordStage("contract", time.Since(stageStart))
	if !ev.verdict.Safe {
		return p.disqualify(ctx, ev, RejectUnsafeContract, "unsafe contract: "+strings.Join(ev.verdict.Reasons, "; "))
	}

	// 3. concentration
	stageStart = time.Now()
	ev.concentration = p.concentration.Analyze(ctx, ev.address)
	metrics.RecordStage("concentration", time.Since(stageStart))
	if !ev.concentration.Passed {
		msg := fmt.Sprintf("top %d holders own %.1f%% of supply (max %.1f%%)",
			ev.concentration.TopN, ev.concentration.Concentration*100, p.concentration.MaxConcentration*100)
		return p.disqualify(ctx, ev, RejectConcentratedSupply, msg)
	}

	// 4. trading filters
	stageStart = time.Now()
	ev.market = p.fetchMarket(ctx, ev.address)
	if !opts.SkipFilters {
		res := filters.Check(ev.market, ev.verdict.LiquidityLocked, p.now())
		metrics.RecordStage("filters", time.Since(stageStart))
		if !res.Passed {
			return p.reject(ev, RejectFiltered, "filtered: "+strings.Join(res.Failures, "; ")), nil
		}
	} else {
		metrics.RecordStage("filters", time.Since(stageStart))
	}

	// 5. fake activity
	stageStart = time.Now()
	fake := p.fakeVolume.Detect(ctx, ev.address, ev.market)
	metrics.RecordStage("fake_volume", time.Since(stageStart))
	if fake.IsFake {
		if err := p.store.InsertVolumeCheck(ctx, &storage.VolumeCheck{
			Address:   ev.address,
			VolumeUSD: ev.market.Volume24h,
			IsFake:    true,
			Source:    fake.Source,
		}); err != nil {
			return nil, fmt.Errorf("insert volume check: %w", err)
		}
		msg := fmt.Sprintf("fake volume (%s): volume %.2f, price change %.2f%%, makers %d",
			fake.Source, ev.market.Volume24h, ev.market.PriceChange24h, ev.market.Makers24h)
		return p.disqualify(ctx, ev, RejectFakeVolume, msg)
	}

	// 6. signals
	stageStart = time.Now()
	blocked := p.analyzeSignals(ev)
	metrics.RecordStage("signals", time.Since(stageStart))
	if blocked {
		return p.reject(ev, RejectSuspectedScam, "suspected scam: "+ev.signals.Anomaly.Details), nil
	}

	// 7. persist
	stageStart = time.Now()
	err = p.persist(ctx, ev)
	metrics.RecordStage("persist", time.Since(stageStart))
	if err != nil {
		return nil, err
	}

	market := ev.market
	ev.effects = append(ev.effects, AlertEffect(alerts.TypeSafe, ev.address,
		fmt.Sprintf("%s passed all checks (score %.0f, concentration %.1f%%)",
			ev.address, ev.verdict.Score, ev.concentration.Concentration*100)))
	return &Outcome{
		Decision: Decision{
			Address: ev.address,
			Status:  StatusSafe,
			Data:    &market,
			Signals: ev.signals,
		},
		Effects: ev.effects,
	}, nil
}

// reject ends the run with the stage's terminal alert. Informational effects
// gathered so far are dropped.
func (p *Pipeline) reject(ev *evaluation, r Rejection, message string) *Outcome {
	return &Outcome{
		Decision: Decision{
			Address:   ev.address,
			Status:    StatusRejected,
			Rejection: r,
			Message:   message,
			Signals:   ev.signals,
		},
		Effects: []Effect{AlertEffect(r.AlertType(), ev.address, message)},
	}
}

// disqualify rejects the asset and writes its blacklist entry when the
// rejection is permanent.
func (p *Pipeline) disqualify(ctx context.Context, ev *evaluation, r Rejection, message string) (*Outcome, error) {
	if entry, ok := blacklistEntries[r]; ok {
		if err := p.store.AddToBlacklist(ctx, ev.address, entry.category, entry.reason); err != nil {
			return nil, fmt.Errorf("blacklist %s: %w", entry.reason, err)
		}
	}
	return p.reject(ev, r, message), nil
}

// fetchMarket queries both market sources concurrently and merges them.
func (p *Pipeline) fetchMarket(ctx context.Context, address string) risk.MarketData {
	var primary, secondary risk.MarketData

	g, gctx := errgroup.WithContext(ctx)
	if p.primary != nil {
		g.Go(func() error {
			primary = p.primary.MarketData(gctx, address)
			return nil
		})
	}
	if p.secondary != nil {
		g.Go(func() error {
			secondary = p.secondary.MarketData(gctx, address)
			return nil
		})
	}
	_ = g.Wait()

	return risk.MergeMarketData(primary, secondary)
}

// analyzeSignals records pump and anomaly signals as effects. It returns true
// when the scam policy blocks the asset.
func (p *Pipeline) analyzeSignals(ev *evaluation) bool {
	ev.signals.Anomaly = p.anomaly.Evaluate(ev.market)
	ev.signals.Scam = ev.signals.Anomaly.IsAnomaly
	metrics.AnomalyPopulation.Set(float64(p.anomaly.Len()))

	if ev.signals.Scam {
		metrics.Signals.WithLabelValues("scam").Inc()
		if p.scamPolicy == config.ScamPolicyBlock {
			return true
		}
	}

	change := ev.market.PriceChange24h
	if p.pump.IsPump(change) {
		ev.signals.Pump = true
		metrics.Signals.WithLabelValues("pump").Inc()
		ev.effects = append(ev.effects, AlertEffect(alerts.TypePump, ev.address,
			fmt.Sprintf("%s price up %.2f%% in 24h", ev.address, change)))

		if p.autoTrade {
			ev.effects = append(ev.effects, TradeEffect(trade.ActionBuy, ev.address, p.tradeAmount, p.tradeSlippage))
			if change > p.profitThreshold {
				ev.effects = append(ev.effects, TradeEffect(trade.ActionSell, ev.address, p.tradeAmount, p.tradeSlippage))
			}
		}
	}

	if ev.signals.Scam {
		ev.effects = append(ev.effects, AlertEffect(alerts.TypeScam, ev.address,
			fmt.Sprintf("%s looks anomalous (%s, %s)", ev.address, ev.signals.Anomaly.Method, ev.signals.Anomaly.Details)))
	}
	return false
}

// snapshotMetadata is the JSON stored with the first-seen snapshot.
type snapshotMetadata struct {
	Market          risk.MarketData `json:"market"`
	RiskScore       float64         `json:"risk_score"`
	LiquidityLocked bool            `json:"liquidity_locked"`
	Verified        bool            `json:"verified"`
	Concentration   float64         `json:"concentration"`
	TopHolders      int             `json:"top_holders"`
}

func (p *Pipeline) persist(ctx context.Context, ev *evaluation) error {
	meta, err := json.Marshal(snapshotMetadata{
		Market:          ev.market,
		RiskScore:       ev.verdict.Score,
		LiquidityLocked: ev.verdict.LiquidityLocked,
		Verified:        ev.verdict.Verified,
		Concentration:   ev.concentration.Concentration,
		TopHolders:      ev.concentration.TopN,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}

	if _, err := p.store.InsertSnapshotIfAbsent(ctx, &storage.AssetSnapshot{
		Address:  ev.address,
		Metadata: meta,
	}); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := p.store.InsertSecurityCheck(ctx, &storage.SecurityCheck{
		Address:        ev.address,
		RiskScore:      ev.verdict.Score,
		IsConcentrated: !ev.concentration.Passed,
		IsSafe:         true,
	}); err != nil {
		return fmt.Errorf("insert security check: %w", err)
	}

	if p.cache != nil {
		data, err := json.Marshal(ev.market)
		if err == nil {
			err = p.cache.Set(ctx, cache.MarketKey(ev.address), data, p.cacheTTL)
		}
		if err != nil {
			p.log.WithFields(logrus.Fields{
				"address": ev.address,
				"error":   err,
			}).Warn("Failed to cache market data")
		}
	}
	return nil
}

// SnapshotMarket decodes the market view stored in a snapshot.
func SnapshotMarket(snap storage.AssetSnapshot) (risk.MarketData, error) {
	var meta snapshotMetadata
	if err := json.Unmarshal(snap.Metadata, &meta); err != nil {
		return risk.MarketData{}, fmt.Errorf("decode snapshot %s: %w", snap.Address, err)
	}
	return meta.Market, nil
}
