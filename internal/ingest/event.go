// Package ingest subscribes to ledger event streams and feeds every newly
// observed asset into the gate.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/liamashdown/tokengate/internal/risk"
)

// Chain identifies the address format carried by an event.
type Chain = risk.Chain

const (
	ChainSolana = risk.ChainSolana
	ChainEVM    = risk.ChainEVM
)

var (
	ErrNoAddress      = errors.New("event carries no address")
	ErrInvalidAddress = errors.New("invalid address")
)

// Event is one raw message from a source. Solana sources set Raw; EVM
// sources decode the log themselves and set Address.
type Event struct {
	Source  string
	Chain   Chain
	Raw     []byte
	Address string
}

// newTokenMessage is the subset of a PumpPortal create event we read.
type newTokenMessage struct {
	Mint    string `json:"mint"`
	TxType  string `json:"txType"`
	Message string `json:"message"`
}

// ExtractAddress returns the validated asset address carried by ev.
func ExtractAddress(ev Event) (string, error) {
	switch ev.Chain {
	case ChainEVM:
		if ev.Address == "" {
			return "", ErrNoAddress
		}
		if !common.IsHexAddress(ev.Address) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, ev.Address)
		}
		return common.HexToAddress(ev.Address).Hex(), nil
	default:
		addr := ev.Address
		if addr == "" {
			var msg newTokenMessage
			if err := json.Unmarshal(ev.Raw, &msg); err != nil {
				return "", fmt.Errorf("decode event: %w", err)
			}
			addr = strings.TrimSpace(msg.Mint)
		}
		if addr == "" {
			return "", ErrNoAddress
		}
		if !IsSolanaAddress(addr) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		return addr, nil
	}
}

// IsSolanaAddress reports whether s is a base58-encoded 32-byte public key.
func IsSolanaAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
