package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/cache"
	"github.com/liamashdown/tokengate/internal/gatekeeper"
	"github.com/liamashdown/tokengate/internal/ingest"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/risk"
)

const overrideHeader = "X-Override-Key"

type checkRequest struct {
	Filters *risk.FilterConfig `json:"filters"`
	Preset  string             `json:"preset"`
}

type checkResponse struct {
	Status   gatekeeper.Status    `json:"status"`
	Data     *risk.MarketData     `json:"data,omitempty"`
	Signals  *gatekeeper.Signals  `json:"signals,omitempty"`
	TradeIDs []string             `json:"trade_ids,omitempty"`
	Reason   gatekeeper.Rejection `json:"reason,omitempty"`
	Message  string               `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// addressChain returns the chain an address format belongs to.
func addressChain(addr string) (risk.Chain, bool) {
	switch {
	case ingest.IsSolanaAddress(addr):
		return risk.ChainSolana, true
	case common.IsHexAddress(addr):
		return risk.ChainEVM, true
	}
	return "", false
}

func (s *Server) check(c *gin.Context) {
	address := c.Param("address")
	chain, ok := addressChain(address)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid address"})
		return
	}

	var req checkRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	filters := s.settings.DefaultFilters
	if req.Preset != "" {
		preset, ok := s.settings.FilterPresets[req.Preset]
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown filter preset"})
			return
		}
		filters = preset
	}
	if req.Filters != nil {
		filters = *req.Filters
	}

	opts := gatekeeper.Options{Chain: chain}
	if key := c.GetHeader(overrideHeader); key != "" {
		if s.settings.OverrideKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.settings.OverrideKey)) != 1 {
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid override key"})
			return
		}
		opts.SkipFilters = true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.settings.RequestTimeout)
	defer cancel()

	res, err := s.checker.Check(ctx, address, filters, opts)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"address":    address,
			"error":      err,
		}).Error("Check failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	d := res.Decision
	if !d.Passed() {
		status := http.StatusForbidden
		switch d.Rejection {
		case gatekeeper.RejectFiltered, gatekeeper.RejectUnsupportedChain:
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, checkResponse{
			Status:  d.Status,
			Reason:  d.Rejection,
			Message: d.Message,
		})
		return
	}

	c.JSON(http.StatusOK, checkResponse{
		Status:   d.Status,
		Data:     d.Data,
		Signals:  &d.Signals,
		TradeIDs: res.Dispatch.TradeIDs,
	})
}

func (s *Server) blacklist(c *gin.Context) {
	address := c.Param("address")
	entry, err := s.store.GetBlacklistEntry(c.Request.Context(), address)
	if err != nil {
		s.log.WithError(err).WithField("address", address).Error("Blacklist lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"address": address, "blacklisted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":     address,
		"blacklisted": true,
		"category":    entry.Category,
		"reason":      entry.Reason,
		"added_ts":    entry.AddedTS,
	})
}

// market serves the cached merged market data. The cache is advisory; a miss
// is a 404, not a fresh fetch.
func (s *Server) market(c *gin.Context) {
	address := c.Param("address")
	if s.cache == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not cached"})
		return
	}
	raw, ok, err := s.cache.Get(c.Request.Context(), cache.MarketKey(address))
	if err != nil {
		s.log.WithError(err).WithField("address", address).Warn("Cache read failed")
	}
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not cached"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (s *Server) alerts(c *gin.Context) {
	address := c.Param("address")
	records, err := s.store.AlertsForAddress(c.Request.Context(), address)
	if err != nil {
		s.log.WithError(err).WithField("address", address).Error("Alert lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"id":         r.ID,
			"alert_type": r.AlertType,
			"message":    r.Message,
			"created_ts": r.CreatedTS,
		})
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "alerts": out})
}

func (s *Server) health(c *gin.Context) {
	metrics.RecordHealthCheck(true)
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) ready(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		metrics.RecordHealthCheck(false)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	metrics.RecordHealthCheck(true)
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
