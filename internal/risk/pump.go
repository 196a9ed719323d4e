package risk

// DefaultPumpThreshold is the 24h price change (percent) above which an asset
// is considered pumping.
const DefaultPumpThreshold = 5.0

// PumpDetector flags rapid positive price movement.
type PumpDetector struct {
	Threshold float64
}

// IsPump is a strict comparison: a change equal to the threshold is not a pump.
func (d PumpDetector) IsPump(priceChange24h float64) bool {
	return priceChange24h > d.Threshold
}
