package rugcheck

// Report is the subset of GET /v1/tokens/{mint}/report the gatekeeper reads.
type Report struct {
	Mint            string        `json:"mint"`
	Score           int           `json:"score"`
	ScoreNormalised int           `json:"score_normalised"` // 0 safest, 100 riskiest
	Risks           []Risk        `json:"risks"`
	Markets         []Market      `json:"markets"`
	Verification    *Verification `json:"verification"`
	Rugged          bool          `json:"rugged"`
}

type Risk struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Score       int    `json:"score"`
	Level       string `json:"level"`
}

type Market struct {
	Pubkey     string    `json:"pubkey"`
	MarketType string    `json:"marketType"`
	LP         *MarketLP `json:"lp"`
}

type MarketLP struct {
	LPLockedPct float64 `json:"lpLockedPct"`
	LPLockedUSD float64 `json:"lpLockedUSD"`
}

type Verification struct {
	Mint        string `json:"mint"`
	JupVerified bool   `json:"jup_verified"`
	JupStrict   bool   `json:"jup_strict"`
}
