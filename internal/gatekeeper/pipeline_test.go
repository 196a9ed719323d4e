package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/cache"
	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/storage"
	"github.com/liamashdown/tokengate/internal/trade"
)

const testAddress = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"

type fakeMarket struct {
	data  risk.MarketData
	calls atomic.Int32
}

func (f *fakeMarket) MarketData(ctx context.Context, address string) risk.MarketData {
	f.calls.Add(1)
	return f.data
}

type fakeHolders struct {
	dist  risk.HolderDistribution
	calls atomic.Int32
}

func (f *fakeHolders) Holders(ctx context.Context, address string, limit int) risk.HolderDistribution {
	f.calls.Add(1)
	return f.dist
}

type fakeReporter struct {
	report risk.ContractReport
	calls  atomic.Int32
}

func (f *fakeReporter) ContractReport(ctx context.Context, address string) risk.ContractReport {
	f.calls.Add(1)
	return f.report
}

type fakeCorroborator struct {
	fake bool
	err  error
}

func (f *fakeCorroborator) IsFakeVolume(ctx context.Context, address string) (bool, error) {
	return f.fake, f.err
}

type spyRecorder struct {
	mu    sync.Mutex
	types []alerts.Type
}

func (s *spyRecorder) Record(ctx context.Context, t alerts.Type, address, message string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, t)
	return int64(len(s.types))
}

func (s *spyRecorder) count(t alerts.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.types {
		if got == t {
			n++
		}
	}
	return n
}

type spyTrades struct {
	mu      sync.Mutex
	actions []trade.Action
}

func (s *spyTrades) Execute(ctx context.Context, address string, action trade.Action, amount, slippage float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return fmt.Sprintf("trade-%d", len(s.actions)), true
}

type harness struct {
	conn      *gorm.DB
	db        *storage.DB
	cache     *cache.MemoryCache
	primary   *fakeMarket
	secondary *fakeMarket
	holders   *fakeHolders
	reporter  *fakeReporter
	remote    *fakeCorroborator
	recorder  *spyRecorder
	trades    *spyTrades
	cfg       *config.Config
	chains    []risk.Chain
}

func testConfig() *config.Config {
	return &config.Config{
		CacheTTL:            time.Hour,
		MinRiskScore:        50,
		MaxConcentration:    0.5,
		TopHolders:          10,
		FakeVolumeThreshold: 100000,
		FakePriceChangeMax:  5,
		FakeMinMakers:       10,
		PumpThreshold:       5,
		ProfitThreshold:     10,
		AnomalyWindow:       500,
		AnomalyMinSamples:   30,
		AnomalyZThreshold:   3.5,
		AnomalyTurnoverMax:  50,
		ScamPolicy:          config.ScamPolicyAlert,
		AutoTradeEnabled:    true,
		TradeAmount:         0.05,
		TradeSlippage:       0.11,
	}
}

// newHarness wires a pipeline whose providers describe a healthy asset.
func newHarness(t *testing.T) *harness {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	log := logrus.New()
	log.SetOutput(io.Discard)

	db := storage.NewWithConn(conn, log)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return &harness{
		conn:  conn,
		db:    db,
		cache: cache.NewMemory(),
		primary: &fakeMarket{data: risk.MarketData{
			PriceUSD:       0.002,
			PriceChange24h: 3,
			Volume24h:      60000,
			LiquidityUSD:   50000,
			PairCreatedAt:  time.Now().Add(-48 * time.Hour),
			Sources:        []string{"dexscreener"},
		}},
		secondary: &fakeMarket{data: risk.MarketData{
			Makers24h: 150,
			Sources:   []string{"birdeye"},
		}},
		holders: &fakeHolders{dist: risk.HolderDistribution{
			Holders:     []risk.Holder{{Address: "a", Amount: 100}, {Address: "b", Amount: 50}},
			TotalSupply: 1000,
		}},
		reporter: &fakeReporter{report: risk.ContractReport{
			Available:       true,
			Score:           80,
			LiquidityLocked: true,
			Verified:        true,
		}},
		remote:   &fakeCorroborator{},
		recorder: &spyRecorder{},
		trades:   &spyTrades{},
		cfg:      testConfig(),
	}
}

func (h *harness) gate() *Gate {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := New(h.cfg, Deps{
		Store:        h.db,
		Cache:        h.cache,
		Primary:      h.primary,
		Secondary:    h.secondary,
		Holders:      h.holders,
		Contracts:    h.reporter,
		Corroborator: h.remote,
		Chains:       h.chains,
	}, log)
	return NewGate(p, NewDispatcher(h.recorder, h.trades, log))
}

func (h *harness) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Count(&n).Error)
	return n
}

var defaultFilters = risk.FilterConfig{MinLiquidity: 5000, MinVolume: 1000}

func TestCheckPumpEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.primary.data.PriceChange24h = 12
	ctx := context.Background()

	res, err := h.gate().Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.True(t, res.Decision.Passed())
	assert.True(t, res.Decision.Signals.Pump)
	require.NotNil(t, res.Decision.Data)
	assert.Equal(t, 150, res.Decision.Data.Makers24h)

	assert.Equal(t, 1, h.recorder.count(alerts.TypePump))
	assert.Equal(t, 1, h.recorder.count(alerts.TypeSafe))
	assert.Equal(t, []trade.Action{trade.ActionBuy, trade.ActionSell}, h.trades.actions)
	assert.Equal(t, []string{"trade-1", "trade-2"}, res.Dispatch.TradeIDs)

	assert.Equal(t, int64(1), h.count(t, &storage.SecurityCheck{}))
	assert.Equal(t, int64(1), h.count(t, &storage.AssetSnapshot{}))
	assert.Equal(t, int64(0), h.count(t, &storage.BlacklistEntry{}))

	cached, ok, err := h.cache.Get(ctx, cache.MarketKey(testAddress))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(cached), `"price_change_24h":12`)
}

func TestCheckPumpBelowProfitBuysOnly(t *testing.T) {
	h := newHarness(t)
	h.primary.data.PriceChange24h = 7

	_, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.Equal(t, []trade.Action{trade.ActionBuy}, h.trades.actions)
}

func TestCheckAutoTradeDisabled(t *testing.T) {
	h := newHarness(t)
	h.primary.data.PriceChange24h = 12
	h.cfg.AutoTradeEnabled = false

	_, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, h.recorder.count(alerts.TypePump))
	assert.Empty(t, h.trades.actions)
}

func TestCheckTwiceKeepsFirstSnapshot(t *testing.T) {
	h := newHarness(t)
	g := h.gate()
	ctx := context.Background()

	_, err := g.Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)
	first, err := h.db.GetSnapshot(ctx, testAddress)
	require.NoError(t, err)

	h.primary.data.PriceUSD = 99
	_, err = g.Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	second, err := h.db.GetSnapshot(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, first.Metadata, second.Metadata)
	assert.Equal(t, int64(1), h.count(t, &storage.AssetSnapshot{}))
	assert.Equal(t, int64(2), h.count(t, &storage.SecurityCheck{}))
}

func TestCheckBlacklistedMakesNoProviderCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.AddToBlacklist(ctx, testAddress, storage.CategoryContract, "unsafe contract"))

	res, err := h.gate().Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.Equal(t, RejectBlacklisted, res.Decision.Rejection)
	assert.Contains(t, res.Decision.Message, "unsafe contract")
	assert.Zero(t, h.reporter.calls.Load())
	assert.Zero(t, h.holders.calls.Load())
	assert.Zero(t, h.primary.calls.Load())
	assert.Zero(t, h.secondary.calls.Load())
	assert.Equal(t, []alerts.Type{alerts.TypeBlacklisted}, h.recorder.types)
	assert.Equal(t, int64(1), h.count(t, &storage.BlacklistEntry{}))
}

func TestCheckUnsafeContractConcurrent(t *testing.T) {
	h := newHarness(t)
	h.reporter.report.Verified = false
	g := h.gate()

	const n = 10
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Check(context.Background(), testAddress, defaultFilters, Options{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, results[i].Decision.Passed())
		assert.Contains(t, []Rejection{RejectUnsafeContract, RejectBlacklisted}, results[i].Decision.Rejection)
	}
	assert.Equal(t, int64(1), h.count(t, &storage.BlacklistEntry{}))
	assert.Len(t, h.recorder.types, n)
	assert.Zero(t, h.count(t, &storage.SecurityCheck{}))
}

func TestCheckZeroSupplyIsConcentrated(t *testing.T) {
	h := newHarness(t)
	h.holders.dist = risk.HolderDistribution{}
	ctx := context.Background()

	res, err := h.gate().Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.Equal(t, RejectConcentratedSupply, res.Decision.Rejection)
	listed, entry, err := h.db.IsBlacklisted(ctx, testAddress)
	require.NoError(t, err)
	assert.True(t, listed)
	assert.Equal(t, storage.CategoryConcentration, entry.Category)
	assert.Equal(t, "concentrated supply", entry.Reason)
	assert.Equal(t, []alerts.Type{alerts.TypeConcentratedSupply}, h.recorder.types)
}

func TestCheckFilteredIsNotBlacklisted(t *testing.T) {
	h := newHarness(t)
	h.primary.data.LiquidityUSD = 1000

	res, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	assert.Equal(t, RejectFiltered, res.Decision.Rejection)
	assert.Contains(t, res.Decision.Message, "liquidity")
	assert.Zero(t, h.count(t, &storage.BlacklistEntry{}))
	assert.Equal(t, []alerts.Type{alerts.TypeFiltered}, h.recorder.types)
}

func TestCheckSkipFilters(t *testing.T) {
	h := newHarness(t)
	h.primary.data.LiquidityUSD = 1000

	res, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{SkipFilters: true})
	require.NoError(t, err)
	assert.True(t, res.Decision.Passed())
}

func TestCheckFakeVolume(t *testing.T) {
	tests := []struct {
		name       string
		market     func(*risk.MarketData)
		remote     fakeCorroborator
		wantSource string
	}{
		{
			name: "local heuristic",
			market: func(m *risk.MarketData) {
				m.Volume24h = 150000
				m.PriceChange24h = 2
				m.LiquidityUSD = 100000
			},
			wantSource: "local",
		},
		{
			name:       "remote unavailable fails closed",
			market:     func(m *risk.MarketData) {},
			remote:     fakeCorroborator{err: context.DeadlineExceeded},
			wantSource: "remote_unavailable",
		},
		{
			name:       "remote flag",
			market:     func(m *risk.MarketData) {},
			remote:     fakeCorroborator{fake: true},
			wantSource: "remote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.market(&h.primary.data)
			*h.remote = tt.remote
			ctx := context.Background()

			res, err := h.gate().Check(ctx, testAddress, defaultFilters, Options{})
			require.NoError(t, err)

			assert.Equal(t, RejectFakeVolume, res.Decision.Rejection)
			var check storage.VolumeCheck
			require.NoError(t, h.conn.First(&check).Error)
			assert.True(t, check.IsFake)
			assert.Equal(t, tt.wantSource, check.Source)

			listed, entry, err := h.db.IsBlacklisted(ctx, testAddress)
			require.NoError(t, err)
			assert.True(t, listed)
			assert.Equal(t, "fake volume", entry.Reason)
		})
	}
}

func TestCheckScamPolicy(t *testing.T) {
	tests := []struct {
		policy     config.ScamPolicy
		wantPassed bool
		wantAlerts []alerts.Type
	}{
		{config.ScamPolicyAlert, true, []alerts.Type{alerts.TypeScam, alerts.TypeSafe}},
		{config.ScamPolicyBlock, false, []alerts.Type{alerts.TypeSuspectedScam}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			h := newHarness(t)
			h.cfg.ScamPolicy = tt.policy
			// turnover 80x on an empty population
			h.primary.data.Volume24h = 80000
			h.primary.data.LiquidityUSD = 1000

			res, err := h.gate().Check(context.Background(), testAddress, risk.FilterConfig{}, Options{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPassed, res.Decision.Passed())
			assert.True(t, res.Decision.Signals.Scam)
			assert.Equal(t, tt.wantAlerts, h.recorder.types)
			assert.Zero(t, h.count(t, &storage.BlacklistEntry{}))
		})
	}
}

func TestCheckMergesSecondaryMarketData(t *testing.T) {
	h := newHarness(t)
	h.primary.data = risk.MarketData{}
	h.secondary.data = risk.MarketData{
		PriceUSD:     0.5,
		Volume24h:    20000,
		LiquidityUSD: 30000,
		Makers24h:    90,
		Sources:      []string{"birdeye"},
	}

	res, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	require.True(t, res.Decision.Passed())
	assert.Equal(t, 0.5, res.Decision.Data.PriceUSD)
	assert.Equal(t, []string{"birdeye"}, res.Decision.Data.Sources)
}

func TestCheckReportedZeroChangeDoesNotPump(t *testing.T) {
	h := newHarness(t)
	h.primary.data.PriceChange24h = 0
	h.primary.data.Reported = risk.FieldPrice | risk.FieldPriceChange | risk.FieldVolume |
		risk.FieldLiquidity | risk.FieldPairCreatedAt
	h.secondary.data.PriceChange24h = 12
	h.secondary.data.Reported = risk.FieldPriceChange | risk.FieldMakers

	res, err := h.gate().Check(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	require.True(t, res.Decision.Passed())
	assert.Equal(t, 0.0, res.Decision.Data.PriceChange24h)
	assert.False(t, res.Decision.Signals.Pump)
	assert.Empty(t, h.trades.actions)
}

type failingStore struct {
	Store
}

func (failingStore) IsBlacklisted(ctx context.Context, address string) (bool, *storage.BlacklistEntry, error) {
	return false, nil, errors.New("connection refused")
}

func TestCheckStoreFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := New(h.cfg, Deps{
		Store:     failingStore{Store: h.db},
		Primary:   h.primary,
		Holders:   h.holders,
		Contracts: h.reporter,
	}, log)
	g := NewGate(p, NewDispatcher(h.recorder, h.trades, log))

	res, err := g.Check(context.Background(), testAddress, defaultFilters, Options{})
	assert.Error(t, err)
	assert.Nil(t, res)
	assert.Empty(t, h.recorder.types)
}

func TestEvaluateReturnsEffectsWithoutDispatching(t *testing.T) {
	h := newHarness(t)
	h.primary.data.PriceChange24h = 12
	g := h.gate()

	outcome, err := g.Pipeline().Evaluate(context.Background(), testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	kinds := make([]EffectKind, 0, len(outcome.Effects))
	for _, e := range outcome.Effects {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EffectKind{EffectAlert, EffectTrade, EffectTrade, EffectAlert}, kinds)
	assert.Equal(t, alerts.TypeSafe, outcome.Effects[3].AlertType)
	assert.Empty(t, h.recorder.types)
	assert.Empty(t, h.trades.actions)
}

func TestRejectionPermanent(t *testing.T) {
	assert.True(t, RejectUnsafeContract.Permanent())
	assert.True(t, RejectConcentratedSupply.Permanent())
	assert.True(t, RejectFakeVolume.Permanent())
	assert.False(t, RejectBlacklisted.Permanent())
	assert.False(t, RejectFiltered.Permanent())
	assert.False(t, RejectSuspectedScam.Permanent())
	assert.False(t, RejectUnsupportedChain.Permanent())
}

const evmAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

func TestCheckUnsupportedChainIsNotBlacklisted(t *testing.T) {
	h := newHarness(t)
	h.reporter.report = risk.ContractReport{}
	ctx := context.Background()

	res, err := h.gate().Check(ctx, evmAddress, defaultFilters, Options{Chain: risk.ChainEVM})
	require.NoError(t, err)

	assert.Equal(t, RejectUnsupportedChain, res.Decision.Rejection)
	assert.Zero(t, h.reporter.calls.Load())
	assert.Zero(t, h.holders.calls.Load())
	assert.Zero(t, h.primary.calls.Load())
	assert.Zero(t, h.count(t, &storage.BlacklistEntry{}))
	assert.Zero(t, h.count(t, &storage.SecurityCheck{}))
	assert.Equal(t, []alerts.Type{alerts.TypeUnsupportedChain}, h.recorder.types)
}

func TestCheckConfiguredChainRunsStages(t *testing.T) {
	h := newHarness(t)
	h.chains = []risk.Chain{risk.ChainSolana, risk.ChainEVM}
	h.reporter.report = risk.ContractReport{}
	ctx := context.Background()

	res, err := h.gate().Check(ctx, evmAddress, defaultFilters, Options{Chain: risk.ChainEVM})
	require.NoError(t, err)

	assert.Equal(t, RejectUnsafeContract, res.Decision.Rejection)
	assert.Equal(t, int32(1), h.reporter.calls.Load())
	assert.Equal(t, int64(1), h.count(t, &storage.BlacklistEntry{}))
}

func TestSnapshotMarketRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gate().Check(ctx, testAddress, defaultFilters, Options{})
	require.NoError(t, err)

	snap, err := h.db.GetSnapshot(ctx, testAddress)
	require.NoError(t, err)
	m, err := SnapshotMarket(*snap)
	require.NoError(t, err)
	assert.Equal(t, 60000.0, m.Volume24h)
}
