// Package volumecheck asks a remote wash-trading service whether an asset's
// volume is fabricated.
package volumecheck

import (
	"context"
	"net/url"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/providers/httpjson"
)

const providerName = "volumecheck"

// Verdict is the service response
type Verdict struct {
	Address    string  `json:"address"`
	IsFake     bool    `json:"is_fake"`
	Confidence float64 `json:"confidence"`
}

// Client implements risk.VolumeCorroborator. Unlike the other providers it
// surfaces errors so the detector can fail closed.
type Client struct {
	http *httpjson.Client
}

// NewClient creates a new volume check client
func NewClient(cfg *config.Config) *Client {
	var headers map[string]string
	if cfg.VolumeCheckAPIKey != "" {
		headers = map[string]string{"X-API-Key": cfg.VolumeCheckAPIKey}
	}
	return &Client{
		http: httpjson.New(providerName, cfg.VolumeCheckURL, cfg.ProviderTimeout, cfg.VolumeCheckRPS, headers),
	}
}

// IsFakeVolume returns the remote verdict.
func (c *Client) IsFakeVolume(ctx context.Context, address string) (bool, error) {
	var v Verdict
	if err := c.http.Get(ctx, "volume", "/v1/volume/"+url.PathEscape(address), nil, &v); err != nil {
		return false, err
	}
	return v.IsFake, nil
}
