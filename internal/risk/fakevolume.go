package risk

import (
	"context"
	"math"
)

const (
	DefaultFakeVolumeThreshold = 100000.0
	DefaultFakePriceChangeMax  = 5.0
	DefaultFakeMinMakers       = 10
)

// VolumeCorroborator asks a remote service whether the asset's volume is fake.
type VolumeCorroborator interface {
	IsFakeVolume(ctx context.Context, address string) (bool, error)
}

// FakeVolumeResult explains how the detector reached its answer.
type FakeVolumeResult struct {
	IsFake       bool
	Local        bool
	Remote       bool
	RemoteFailed bool
	Source       string
}

// FakeVolumeDetector combines a local heuristic with remote corroboration.
// A failed remote call counts as fake.
type FakeVolumeDetector struct {
	VolumeThreshold float64
	PriceChangeMax  float64
	MinMakers       int
	Remote          VolumeCorroborator // nil disables corroboration
}

// LocalHeuristic flags high volume that neither moves the price nor comes
// from many distinct makers.
func (d *FakeVolumeDetector) LocalHeuristic(m MarketData) bool {
	if m.Volume24h <= d.VolumeThreshold {
		return false
	}
	return math.Abs(m.PriceChange24h) < d.PriceChangeMax || m.Makers24h < d.MinMakers
}

// Detect runs both checks; either flag marks the asset as fake.
func (d *FakeVolumeDetector) Detect(ctx context.Context, address string, m MarketData) FakeVolumeResult {
	res := FakeVolumeResult{Local: d.LocalHeuristic(m)}

	if d.Remote != nil {
		fake, err := d.Remote.IsFakeVolume(ctx, address)
		if err != nil {
			res.RemoteFailed = true
			fake = true
		}
		res.Remote = fake
	}

	res.IsFake = res.Local || res.Remote
	switch {
	case res.Local && res.Remote:
		res.Source = "local+remote"
	case res.Local:
		res.Source = "local"
	case res.RemoteFailed:
		res.Source = "remote_unavailable"
	case res.Remote:
		res.Source = "remote"
	}
	return res
}
