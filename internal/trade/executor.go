package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action is the trade direction
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Order is one trade request
type Order struct {
	Address  string
	Action   Action
	Amount   decimal.Decimal
	Slippage decimal.Decimal // fraction, 0.11 = 11%
}

// Executor submits orders and returns an execution id.
type Executor interface {
	Execute(ctx context.Context, order Order) (string, error)
}

// tradeRequest is the body of a PumpPortal-style /api/trade call.
type tradeRequest struct {
	Action           Action          `json:"action"`
	Mint             string          `json:"mint"`
	Amount           decimal.Decimal `json:"amount"`
	DenominatedInSol string          `json:"denominatedInSol"`
	Slippage         decimal.Decimal `json:"slippage"` // percent
	PriorityFee      decimal.Decimal `json:"priorityFee"`
	Pool             string          `json:"pool"`
}

type tradeResponse struct {
	Signature string   `json:"signature"`
	Errors    []string `json:"errors"`
}

// HTTPExecutor posts orders to a trade API
type HTTPExecutor struct {
	endpoint    string
	apiKey      string
	priorityFee decimal.Decimal
	pool        string
	httpClient  *http.Client
}

// NewHTTPExecutor creates an executor for the given endpoint.
func NewHTTPExecutor(endpoint, apiKey string, priorityFee float64, pool string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPExecutor{
		endpoint:    endpoint,
		apiKey:      apiKey,
		priorityFee: decimal.NewFromFloat(priorityFee),
		pool:        pool,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Execute submits the order and returns the transaction signature.
func (e *HTTPExecutor) Execute(ctx context.Context, order Order) (string, error) {
	body, err := json.Marshal(tradeRequest{
		Action:           order.Action,
		Mint:             order.Address,
		Amount:           order.Amount,
		DenominatedInSol: "true",
		Slippage:         order.Slippage.Mul(decimal.NewFromInt(100)),
		PriorityFee:      e.priorityFee,
		Pool:             e.pool,
	})
	if err != nil {
		return "", fmt.Errorf("marshal trade request: %w", err)
	}

	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if e.apiKey != "" {
		q := u.Query()
		q.Set("api-key", e.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out tradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return "", errors.New(strings.Join(out.Errors, "; "))
	}
	if out.Signature == "" {
		return "", errors.New("trade response has no signature")
	}
	return out.Signature, nil
}

// stripURL drops the request URL from transport errors. The URL carries the
// api key, and these errors end up in trade records and alerts.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// DryRunExecutor accepts every order without submitting it.
type DryRunExecutor struct{}

func (DryRunExecutor) Execute(ctx context.Context, order Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "dryrun-" + uuid.NewString(), nil
}
