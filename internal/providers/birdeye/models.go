package birdeye

// Envelope wraps every Birdeye response
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// TokenOverview is the subset of /defi/token_overview the gatekeeper reads.
// Market fields are pointers because the API omits or nulls what it does not
// know.
type TokenOverview struct {
	Address               string   `json:"address"`
	Symbol                string   `json:"symbol"`
	Price                 *float64 `json:"price"`
	PriceChange24hPercent *float64 `json:"priceChange24hPercent"`
	V24hUSD               *float64 `json:"v24hUSD"`
	Liquidity             *float64 `json:"liquidity"`
	MC                    *float64 `json:"mc"`
	Supply                float64  `json:"supply"`
	UniqueWallet24h       *int     `json:"uniqueWallet24h"`
}

// HolderList is the body of /defi/v3/token/holder
type HolderList struct {
	Items []HolderItem `json:"items"`
}

type HolderItem struct {
	Owner    string  `json:"owner"`
	UIAmount float64 `json:"ui_amount"`
}
