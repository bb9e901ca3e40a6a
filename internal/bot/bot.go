// Package bot runs autonomous traders that keep the market moving. Bots
// go through the same trade-execution facade as everyone else, so they
// are subject to the manipulation guard, funds checks, and short rules.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/trade"
)

// Instruments is the default opinion pool bots trade against.
var Instruments = []string{
	"pineapple belongs on pizza",
	"cats are better than dogs",
	"mornings are overrated",
	"cereal is a soup",
	"the book is always better than the movie",
	"hot dogs are sandwiches",
	"winter is the best season",
	"aliens have visited earth",
}

// Bot is one autonomous trader.
type Bot struct {
	actorID     string
	svc         *trade.Service
	instruments []string
	interval    time.Duration
	rng         *rand.Rand
}

// New creates a bot trading the given instruments on a jittered interval.
func New(actorID string, svc *trade.Service, instruments []string, interval time.Duration) *Bot {
	if len(instruments) == 0 {
		instruments = Instruments
	}
	return &Bot{
		actorID:     actorID,
		svc:         svc,
		instruments: instruments,
		interval:    interval,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Run trades until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	slog.Info("bot started", "actor", b.actorID, "interval", b.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.jitter()):
			b.act(ctx)
		}
	}
}

// jitter spreads bots out so they do not trip the rapid-trading guard in
// lockstep: 50%..150% of the base interval.
func (b *Bot) jitter() time.Duration {
	half := b.interval / 2
	return half + time.Duration(b.rng.Int64N(int64(b.interval)))
}

// act performs one randomized action: mostly buys, some sells, the
// occasional short. Rejections (guard blocks, insufficient funds or
// holdings) are expected and only logged at debug.
func (b *Bot) act(ctx context.Context) {
	text := b.instruments[b.rng.IntN(len(b.instruments))]
	qty := uint64(1 + b.rng.IntN(3))

	var err error
	switch roll := b.rng.Float64(); {
	case roll < 0.60:
		_, err = b.svc.Buy(ctx, b.actorID, text, qty)
	case roll < 0.90:
		_, err = b.svc.Sell(ctx, b.actorID, text, qty)
	default:
		bet := decimal.NewFromInt(int64(1 + b.rng.IntN(10)))
		targetPct := decimal.NewFromInt(int64(5 + b.rng.IntN(26)))
		hours := float64(1 + b.rng.IntN(24))
		_, err = b.svc.PlaceShort(ctx, b.actorID, text, bet, targetPct, hours)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("bot action rejected", "actor", b.actorID, "instrument", text, "err", err)
	}
}

// StartFleet launches count bots with staggered start offsets and returns
// immediately.
func StartFleet(ctx context.Context, svc *trade.Service, count int, interval time.Duration) {
	for i := 0; i < count; i++ {
		b := New(botName(i), svc, nil, interval)
		offset := time.Duration(i) * interval / time.Duration(max(count, 1))
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(offset):
				b.Run(ctx)
			}
		}()
	}
	if count > 0 {
		slog.Info("bot fleet started", "count", count, "interval", interval)
	}
}

var botNames = []string{
	"marketmaven", "contrarian", "trendchaser", "bargainbot",
	"bullrunner", "bearwatch", "dipbuyer", "momentum",
}

func botName(i int) string {
	if i < len(botNames) {
		return "bot:" + botNames[i]
	}
	return "bot:" + botNames[i%len(botNames)] + "-" + strconv.Itoa(i/len(botNames)+1)
}
