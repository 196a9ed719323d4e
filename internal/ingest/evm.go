package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const evmName = "evm"

var errSubscriptionClosed = errors.New("subscription closed")

// PairCreatedTopic is keccak256 of the UniswapV2 factory PairCreated event.
var PairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))

// LogSubscriber is the part of ethclient.Client the source uses.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Dialer opens a LogSubscriber and returns a func that closes it.
type Dialer func(ctx context.Context) (LogSubscriber, func(), error)

// EthDialer dials a websocket RPC endpoint with ethclient.
func EthDialer(rpcURL string) Dialer {
	return func(ctx context.Context) (LogSubscriber, func(), error) {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return nil, nil, fmt.Errorf("dial rpc: %w", err)
		}
		return client, client.Close, nil
	}
}

// EVMSource watches a DEX factory for new pairs and emits the non-quote token
// of each pair.
type EVMSource struct {
	dial     Dialer
	factory  common.Address
	quotes   map[common.Address]bool
	minDelay time.Duration
	maxDelay time.Duration
	log      *logrus.Logger
}

// NewEVMSource creates a PairCreated log source. quoteTokens are the
// addresses (WETH, stablecoins) never treated as the new asset.
func NewEVMSource(dial Dialer, factory string, quoteTokens []string, minDelay, maxDelay time.Duration, log *logrus.Logger) *EVMSource {
	quotes := make(map[common.Address]bool, len(quoteTokens))
	for _, q := range quoteTokens {
		q = strings.TrimSpace(q)
		if common.IsHexAddress(q) {
			quotes[common.HexToAddress(q)] = true
		}
	}
	return &EVMSource{
		dial:     dial,
		factory:  common.HexToAddress(factory),
		quotes:   quotes,
		minDelay: minDelay,
		maxDelay: maxDelay,
		log:      log,
	}
}

func (s *EVMSource) Name() string {
	return evmName
}

// Run delivers new-pair tokens to out until ctx is done.
func (s *EVMSource) Run(ctx context.Context, out chan<- Event) error {
	return reconnectLoop(ctx, evmName, s.minDelay, s.maxDelay, s.log, func(ctx context.Context) (bool, error) {
		return s.session(ctx, out)
	})
}

func (s *EVMSource) session(ctx context.Context, out chan<- Event) (bool, error) {
	client, closeFn, err := s.dial(ctx)
	if err != nil {
		return false, err
	}
	defer closeFn()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{s.factory},
		Topics:    [][]common.Hash{{PairCreatedTopic}},
	}
	logsChan := make(chan types.Log)
	sub, err := client.SubscribeFilterLogs(ctx, query, logsChan)
	if err != nil {
		return false, fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()
	s.log.WithField("factory", s.factory.Hex()).Info("Subscribed to PairCreated logs")

	received := false
	for {
		select {
		case <-ctx.Done():
			return received, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return received, errSubscriptionClosed
			}
			return received, fmt.Errorf("subscription: %w", err)
		case vLog := <-logsChan:
			received = true
			for _, token := range s.newTokens(vLog) {
				if !emit(ctx, out, Event{Source: evmName, Chain: ChainEVM, Address: token.Hex()}) {
					return received, ctx.Err()
				}
			}
		}
	}
}

// newTokens returns the non-quote side(s) of a PairCreated log.
func (s *EVMSource) newTokens(vLog types.Log) []common.Address {
	if len(vLog.Topics) < 3 || vLog.Topics[0] != PairCreatedTopic {
		return nil
	}
	token0 := common.BytesToAddress(vLog.Topics[1].Bytes())
	token1 := common.BytesToAddress(vLog.Topics[2].Bytes())

	var tokens []common.Address
	if !s.quotes[token0] {
		tokens = append(tokens, token0)
	}
	if !s.quotes[token1] {
		tokens = append(tokens, token1)
	}
	return tokens
}
