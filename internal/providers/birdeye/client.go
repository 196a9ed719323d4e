// Package birdeye reads token overview and holder data from the Birdeye API.
package birdeye

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/providers/httpjson"
	"github.com/liamashdown/tokengate/internal/risk"
)

const providerName = "birdeye"

var errUnsuccessful = errors.New("birdeye returned success=false")

// Client handles communication with the Birdeye API
type Client struct {
	http *httpjson.Client
	log  *logrus.Logger
}

// NewClient creates a new Birdeye client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	headers := map[string]string{"x-chain": "solana"}
	if cfg.BirdeyeAPIKey != "" {
		headers["X-API-KEY"] = cfg.BirdeyeAPIKey
	}
	return &Client{
		http: httpjson.New(providerName, cfg.BirdeyeBaseURL, cfg.ProviderTimeout, cfg.BirdeyeRPS, headers),
		log:  log,
	}
}

// GetTokenOverview fetches price, volume, liquidity and supply for a token.
func (c *Client) GetTokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	var resp Envelope[TokenOverview]
	q := url.Values{"address": {address}}
	if err := c.http.Get(ctx, "token_overview", "/defi/token_overview", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errUnsuccessful
	}
	return &resp.Data, nil
}

// GetHolders fetches the largest holders of a token.
func (c *Client) GetHolders(ctx context.Context, address string, limit int) ([]HolderItem, error) {
	var resp Envelope[HolderList]
	q := url.Values{
		"address": {address},
		"offset":  {"0"},
		"limit":   {strconv.Itoa(limit)},
	}
	if err := c.http.Get(ctx, "token_holders", "/defi/v3/token/holder", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errUnsuccessful
	}
	return resp.Data.Items, nil
}

// MarketData implements risk.MarketSource.
func (c *Client) MarketData(ctx context.Context, address string) risk.MarketData {
	overview, err := c.GetTokenOverview(ctx, address)
	if err != nil {
		c.warn(address, "token_overview", err)
		return risk.MarketData{}
	}
	return ToMarketData(overview)
}

// ToMarketData maps an overview onto a market view, marking only the fields
// the API returned.
func ToMarketData(o *TokenOverview) risk.MarketData {
	m := risk.MarketData{Sources: []string{providerName}}
	if o.Price != nil {
		m.PriceUSD = *o.Price
		m.Reported |= risk.FieldPrice
	}
	if o.PriceChange24hPercent != nil {
		m.PriceChange24h = *o.PriceChange24hPercent
		m.Reported |= risk.FieldPriceChange
	}
	if o.V24hUSD != nil {
		m.Volume24h = *o.V24hUSD
		m.Reported |= risk.FieldVolume
	}
	if o.Liquidity != nil {
		m.LiquidityUSD = *o.Liquidity
		m.Reported |= risk.FieldLiquidity
	}
	if o.MC != nil {
		m.MarketCapUSD = *o.MC
		m.Reported |= risk.FieldMarketCap
	}
	if o.UniqueWallet24h != nil {
		m.Makers24h = *o.UniqueWallet24h
		m.Reported |= risk.FieldMakers
	}
	return m
}

// Holders implements risk.HolderSource. Both the holder list and the supply
// must be fetched; otherwise the distribution is empty.
func (c *Client) Holders(ctx context.Context, address string, limit int) risk.HolderDistribution {
	items, err := c.GetHolders(ctx, address, limit)
	if err != nil {
		c.warn(address, "token_holders", err)
		return risk.HolderDistribution{}
	}
	overview, err := c.GetTokenOverview(ctx, address)
	if err != nil {
		c.warn(address, "token_overview", err)
		return risk.HolderDistribution{}
	}

	holders := make([]risk.Holder, 0, len(items))
	for _, item := range items {
		holders = append(holders, risk.Holder{Address: item.Owner, Amount: item.UIAmount})
	}
	return risk.HolderDistribution{Holders: holders, TotalSupply: overview.Supply}
}

func (c *Client) warn(address, endpoint string, err error) {
	c.log.WithFields(logrus.Fields{
		"provider": providerName,
		"endpoint": endpoint,
		"address":  address,
		"error":    err,
	}).Warn("Provider request failed")
}
