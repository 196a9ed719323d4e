package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// Type is the stable alert_type written to the audit log.
type Type string

const (
	TypeSafe               Type = "safe"
	TypeBlacklisted        Type = "blacklisted"
	TypeUnsafeContract     Type = "unsafe_contract"
	TypeConcentratedSupply Type = "concentrated_supply"
	TypeFiltered           Type = "filtered"
	TypeFakeVolume         Type = "fake_volume"
	TypeSuspectedScam      Type = "suspected_scam"
	TypeUnsupportedChain   Type = "unsupported_chain"
	TypePump               Type = "pump"
	TypeScam               Type = "scam"
	TypeTrade              Type = "trade"
	TypeTradeError         Type = "trade_error"
)

// Severity maps an alert type onto its delivery severity.
func (t Type) Severity() Severity {
	switch t {
	case TypeFakeVolume, TypeScam, TypeSuspectedScam, TypeTradeError:
		return SeverityAlert
	case TypeBlacklisted, TypeUnsafeContract, TypeConcentratedSupply, TypeFiltered, TypeUnsupportedChain:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// AlertPayload contains all information for an alert
type AlertPayload struct {
	ID           int64
	Type         Type
	Severity     Severity
	Address      string
	AddressShort string
	Message      string
	Timestamp    time.Time
	Environment  string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

// ShortAddress abbreviates an address for display.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// stripURL drops the request URL from transport errors. Bot tokens and
// webhook secrets live in the URL and these errors are logged.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
