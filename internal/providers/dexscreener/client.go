// Package dexscreener reads pair-level market data from the DexScreener API.
package dexscreener

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/providers/httpjson"
	"github.com/liamashdown/tokengate/internal/risk"
)

const providerName = "dexscreener"

// Client handles communication with the DexScreener API
type Client struct {
	http *httpjson.Client
	log  *logrus.Logger
}

// NewClient creates a new DexScreener client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		http: httpjson.New(providerName, cfg.DexScreenerBaseURL, cfg.ProviderTimeout, cfg.DexScreenerRPS, nil),
		log:  log,
	}
}

// GetTokenPairs fetches every pair that trades the token.
func (c *Client) GetTokenPairs(ctx context.Context, address string) (*TokenPairsResponse, error) {
	var resp TokenPairsResponse
	if err := c.http.Get(ctx, "token_pairs", "/latest/dex/tokens/"+url.PathEscape(address), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarketData implements risk.MarketSource. Price, change, liquidity and
// market cap come from the most liquid pair; volume is summed over all
// pairs. Failures yield empty data.
func (c *Client) MarketData(ctx context.Context, address string) risk.MarketData {
	resp, err := c.GetTokenPairs(ctx, address)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"provider": providerName,
			"address":  address,
			"error":    err,
		}).Warn("Market data fetch failed")
		return risk.MarketData{}
	}
	return ToMarketData(resp.Pairs)
}

// ToMarketData folds a pair list into one market view.
func ToMarketData(pairs []Pair) risk.MarketData {
	if len(pairs) == 0 {
		return risk.MarketData{}
	}

	best := 0
	var volume float64
	var oldest int64
	var reported risk.Field
	for i, p := range pairs {
		if v, ok := p.Volume["h24"]; ok {
			volume += v
			reported |= risk.FieldVolume
		}
		if liquidityUSD(p) > liquidityUSD(pairs[best]) {
			best = i
		}
		if p.PairCreatedAt > 0 && (oldest == 0 || p.PairCreatedAt < oldest) {
			oldest = p.PairCreatedAt
		}
	}

	top := pairs[best]
	price, err := strconv.ParseFloat(top.PriceUSD, 64)
	if err == nil {
		reported |= risk.FieldPrice
	}
	if _, ok := top.PriceChange["h24"]; ok {
		reported |= risk.FieldPriceChange
	}
	if top.Liquidity != nil {
		reported |= risk.FieldLiquidity
	}
	marketCap := top.MarketCap
	if marketCap == 0 {
		marketCap = top.FDV
	}
	if marketCap > 0 {
		reported |= risk.FieldMarketCap
	}

	m := risk.MarketData{
		PriceUSD:       price,
		PriceChange24h: top.PriceChange["h24"],
		Volume24h:      volume,
		LiquidityUSD:   liquidityUSD(top),
		MarketCapUSD:   marketCap,
		Sources:        []string{providerName},
		Reported:       reported,
	}
	if oldest > 0 {
		m.PairCreatedAt = time.UnixMilli(oldest).UTC()
		m.Reported |= risk.FieldPairCreatedAt
	}
	return m
}

func liquidityUSD(p Pair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}
