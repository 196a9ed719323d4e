package dexscreener

// TokenPairsResponse is the body of GET /latest/dex/tokens/{address}.
type TokenPairsResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// Pair is one trading pair containing the token
type Pair struct {
	ChainID       string             `json:"chainId"`
	DexID         string             `json:"dexId"`
	PairAddress   string             `json:"pairAddress"`
	BaseToken     Token              `json:"baseToken"`
	QuoteToken    Token              `json:"quoteToken"`
	PriceUSD      string             `json:"priceUsd"`
	PriceChange   map[string]float64 `json:"priceChange"`
	Volume        map[string]float64 `json:"volume"`
	Txns          map[string]Txns    `json:"txns"`
	Liquidity     *Liquidity         `json:"liquidity"`
	MarketCap     float64            `json:"marketCap"`
	FDV           float64            `json:"fdv"`
	PairCreatedAt int64              `json:"pairCreatedAt"` // unix millis
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Txns struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
