package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/mfadel/solarbot/internal/domain"
)

// SampleHandler receives each streamed price sample.
type SampleHandler func(ctx context.Context, sample domain.PriceSample)

// priceMessage is the wire format of one streamed price update.
type priceMessage struct {
	Venue     string  `json:"venue"`
	Token     string  `json:"token"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"`
}

// VenueStream subscribes to a streaming price feed over WebSocket and invokes
// the handler for every update. It reconnects with exponential backoff.
type VenueStream struct {
	wsURL   string
	tokens  []string
	onPrice SampleHandler
	logger  *slog.Logger
}

// NewVenueStream creates a stream subscribed to the given token symbols.
func NewVenueStream(wsURL string, tokens []string, onPrice SampleHandler, logger *slog.Logger) *VenueStream {
	return &VenueStream{
		wsURL:   wsURL,
		tokens:  tokens,
		onPrice: onPrice,
		logger:  logger.With(slog.String("component", "venue_stream")),
	}
}

// Run connects and consumes messages until ctx is cancelled.
func (s *VenueStream) Run(ctx context.Context) error {
	if len(s.tokens) == 0 {
		s.logger.Info("no tokens to subscribe, exiting")
		return nil
	}

	boff := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := boff.Duration()
		s.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *VenueStream) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	sub := map[string]any{"op": "subscribe", "channel": "prices", "tokens": s.tokens}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	s.logger.Info("stream subscribed", slog.Int("tokens", len(s.tokens)))

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}

		var msg priceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("unparseable stream message", slog.String("error", err.Error()))
			continue
		}
		if msg.Venue == "" || msg.Token == "" || msg.Price <= 0 {
			continue
		}
		s.onPrice(ctx, domain.PriceSample{
			Venue:     msg.Venue,
			Token:     msg.Token,
			Price:     msg.Price,
			Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
		})
	}
}
