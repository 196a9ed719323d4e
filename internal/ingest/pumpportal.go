package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const pumpPortalName = "pumpportal"

type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// PumpPortalSource streams token creation events over a websocket and
// resubscribes after every reconnect.
type PumpPortalSource struct {
	url      string
	minDelay time.Duration
	maxDelay time.Duration
	dialer   *websocket.Dialer
	log      *logrus.Logger
}

// NewPumpPortalSource creates a websocket source
func NewPumpPortalSource(url string, minDelay, maxDelay time.Duration, log *logrus.Logger) *PumpPortalSource {
	return &PumpPortalSource{
		url:      url,
		minDelay: minDelay,
		maxDelay: maxDelay,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
	}
}

func (s *PumpPortalSource) Name() string {
	return pumpPortalName
}

// Run delivers raw messages to out until ctx is done.
func (s *PumpPortalSource) Run(ctx context.Context, out chan<- Event) error {
	return reconnectLoop(ctx, pumpPortalName, s.minDelay, s.maxDelay, s.log, func(ctx context.Context) (bool, error) {
		return s.session(ctx, out)
	})
}

func (s *PumpPortalSource) session(ctx context.Context, out chan<- Event) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{Method: "subscribeNewToken"}); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}
	s.log.WithField("url", s.url).Info("Subscribed to new token stream")

	// ReadMessage only unblocks when the connection closes.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	received := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("websocket read: %w", err)
		}
		received = true
		if !emit(ctx, out, Event{Source: pumpPortalName, Chain: ChainSolana, Raw: msg}) {
			return received, ctx.Err()
		}
	}
}
