package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/risk"
)

func newTestClient(baseURL string) *Client {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewClient(&config.Config{
		DexScreenerBaseURL: baseURL,
		ProviderTimeout:    time.Second,
		DexScreenerRPS:     100,
	}, log)
}

func TestMarketDataPicksMostLiquidPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/mint1", r.URL.Path)
		w.Write([]byte(`{"pairs":[
			{"priceUsd":"0.5","priceChange":{"h24":3},"volume":{"h24":100},"liquidity":{"usd":1000},"pairCreatedAt":1700000000000},
			{"priceUsd":"0.6","priceChange":{"h24":12},"volume":{"h24":400},"liquidity":{"usd":9000},"marketCap":250000,"pairCreatedAt":1710000000000}
		]}`))
	}))
	defer server.Close()

	m := newTestClient(server.URL).MarketData(context.Background(), "mint1")

	assert.Equal(t, 0.6, m.PriceUSD)
	assert.Equal(t, 12.0, m.PriceChange24h)
	assert.Equal(t, 500.0, m.Volume24h)
	assert.Equal(t, 9000.0, m.LiquidityUSD)
	assert.Equal(t, 250000.0, m.MarketCapUSD)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), m.PairCreatedAt)
	assert.Equal(t, []string{"dexscreener"}, m.Sources)
}

func TestMarketDataFailureIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestClient(server.URL).MarketData(context.Background(), "mint1")
	assert.True(t, m.IsEmpty())
}

func TestToMarketDataNoPairs(t *testing.T) {
	assert.True(t, ToMarketData(nil).IsEmpty())
}

func TestToMarketDataReportsZeroChange(t *testing.T) {
	m := ToMarketData([]Pair{{
		PriceUSD:    "0.5",
		PriceChange: map[string]float64{"h24": 0},
		Volume:      map[string]float64{"h24": 100},
	}})

	assert.True(t, m.Has(risk.FieldPrice))
	assert.True(t, m.Has(risk.FieldPriceChange))
	assert.True(t, m.Has(risk.FieldVolume))
	assert.False(t, m.Has(risk.FieldLiquidity))
	assert.False(t, m.Has(risk.FieldMakers))
	assert.False(t, m.Has(risk.FieldPairCreatedAt))
}
