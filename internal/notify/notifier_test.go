package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/solarbot/internal/domain"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyFiltersByEventKind(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventTradeExecuted}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(ctx, EventOpportunity, "opp", "body"))
	require.NoError(t, n.Notify(ctx, EventTradeExecuted, "trade", "body"))

	assert.Equal(t, []string{"trade"}, sender.titles)
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventTradeExecuted}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.NotifyAll(ctx, "urgent", "body"))
	assert.Equal(t, []string{"urgent"}, sender.titles)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	ctx := context.Background()
	broken := &fakeSender{name: "broken", err: errors.New("down")}
	ok := &fakeSender{name: "ok"}
	n := NewNotifier([]Sender{broken, ok}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.NotifyAll(ctx, "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"title"}, ok.titles)
}

func TestTradeAlertClassification(t *testing.T) {
	base := domain.TradeRecord{Token: "SOL", BuyVenue: "jupiter", SellVenue: "raydium"}

	success := base
	success.Success = true
	success.RealizedProfitUSD = 0.28
	event, title, _ := TradeAlert(success)
	assert.Equal(t, EventTradeExecuted, event)
	assert.Equal(t, "Trade executed", title)

	held := base
	held.FailureKind = domain.FailureSellLeg
	held.HeldTokenAmount = 0.2
	event, _, msg := TradeAlert(held)
	assert.Equal(t, EventSellLegFailed, event)
	assert.Contains(t, msg, "0.2")

	failed := base
	failed.FailureKind = domain.FailureQuote
	failed.FailureDetail = "quote timeout"
	event, _, msg = TradeAlert(failed)
	assert.Equal(t, EventTradeFailed, event)
	assert.Contains(t, msg, "quote_failure")
}
