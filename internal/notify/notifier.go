// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). Alerts are filtered by event kind so operators only
// receive what they subscribed to; critical events bypass the filter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfadel/solarbot/internal/domain"
)

// Event kinds emitted by the trading core.
const (
	EventOpportunity   = "opportunity"
	EventTradeExecuted = "trade_executed"
	EventTradeFailed   = "trade_failed"
	EventSellLegFailed = "sell_leg_failed"
	EventError         = "error"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to all configured senders. Notify applies the
// event-kind filter; NotifyAll bypasses it and is reserved for events that
// require operator attention regardless of subscription, such as a failed
// sell leg leaving token exposure open.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only event
// kinds listed in events pass the Notify filter; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert if its event kind passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers the alert to every sender regardless of event kind.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender, collecting failures so one broken channel
// never blocks the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// TradeAlert renders a trade record into an event kind, alert title, and
// message body.
func TradeAlert(rec domain.TradeRecord) (event, title, message string) {
	route := fmt.Sprintf("%s: buy %s / sell %s", rec.Token, rec.BuyVenue, rec.SellVenue)

	switch {
	case rec.Success:
		return EventTradeExecuted,
			"Trade executed",
			fmt.Sprintf("%s\nsize $%.2f, profit $%.2f", route, rec.RequestedSizeUSD, rec.RealizedProfitUSD)
	case rec.FailureKind == domain.FailureSellLeg:
		return EventSellLegFailed,
			"Sell leg failed, exposure open",
			fmt.Sprintf("%s\nholding %.6f %s: %s", route, rec.HeldTokenAmount, rec.Token, rec.FailureDetail)
	default:
		return EventTradeFailed,
			"Trade failed",
			fmt.Sprintf("%s\n%s: %s", route, rec.FailureKind, rec.FailureDetail)
	}
}

// OpportunityAlert renders a detected candidate into an alert title and body.
func OpportunityAlert(cand domain.ArbitrageCandidate) (title, message string) {
	return "Arbitrage opportunity",
		fmt.Sprintf("%s: buy %s @ %.4f / sell %s @ %.4f\ngross %.2f%%, net %.2f%%, size $%.2f",
			cand.Token, cand.BuyVenue, cand.BuyPrice, cand.SellVenue, cand.SellPrice,
			cand.GrossSpreadPct, cand.NetSpreadPct, cand.NotionalSizeUSD)
}
