package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

const weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

type fakeSub struct {
	errc chan error
	once sync.Once
}

func (f *fakeSub) Unsubscribe() { f.once.Do(func() { close(f.errc) }) }

func (f *fakeSub) Err() <-chan error { return f.errc }

type fakeSubscriber struct {
	calls atomic.Int32
	logs  []types.Log
}

func (f *fakeSubscriber) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	n := f.calls.Add(1)
	sub := &fakeSub{errc: make(chan error, 1)}
	go func() {
		for _, l := range f.logs {
			select {
			case ch <- l:
			case <-ctx.Done():
				return
			}
		}
		if n == 1 {
			sub.errc <- errors.New("connection reset")
		}
	}()
	return sub, nil
}

func pairCreated(token0, token1 string) types.Log {
	return types.Log{
		Topics: []common.Hash{
			PairCreatedTopic,
			common.BytesToHash(common.HexToAddress(token0).Bytes()),
			common.BytesToHash(common.HexToAddress(token1).Bytes()),
		},
	}
}

func TestEVMSourceEmitsNonQuoteToken(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sub := &fakeSubscriber{logs: []types.Log{
		pairCreated(token.Hex(), weth),
		pairCreated(weth, weth),
	}}
	dial := func(ctx context.Context) (LogSubscriber, func(), error) {
		return sub, func() {}, nil
	}
	src := NewEVMSource(dial, "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", []string{weth}, 10*time.Millisecond, 20*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Event, 4)
	go src.Run(ctx, out)

	// one event per session; the first session fails and is redialled
	for i := 0; i < 2; i++ {
		select {
		case ev := <-out:
			assert.Equal(t, ChainEVM, ev.Chain)
			assert.Equal(t, token.Hex(), ev.Address)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.GreaterOrEqual(t, sub.calls.Load(), int32(2))
}

func TestEVMSourceNewTokens(t *testing.T) {
	src := NewEVMSource(nil, "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", []string{weth}, 0, 0, quietLogger())
	a := "0x1111111111111111111111111111111111111111"
	b := "0x2222222222222222222222222222222222222222"

	assert.Len(t, src.newTokens(pairCreated(a, b)), 2)
	assert.Empty(t, src.newTokens(pairCreated(weth, weth)))
	assert.Empty(t, src.newTokens(types.Log{Topics: []common.Hash{PairCreatedTopic}}))
}
