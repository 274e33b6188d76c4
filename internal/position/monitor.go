package position

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trading-orchestrator/internal/market"
)

// Monitor polls the price feed for one open position and closes it when a
// stop-loss or take-profit level is hit. Each monitor runs in its own
// goroutine, independent of all others, until the position closes or the
// context is cancelled.
type Monitor struct {
	symbol   string
	feed     market.PriceFeed
	store    *Store
	interval time.Duration
	onClose  func(*Position)
	logger   zerolog.Logger
}

// NewMonitor creates a monitor for the position currently open on symbol.
// onClose is invoked exactly once if the monitor closes the position.
func NewMonitor(symbol string, feed market.PriceFeed, store *Store, interval time.Duration, onClose func(*Position), logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Monitor{
		symbol:   symbol,
		feed:     feed,
		store:    store,
		interval: interval,
		onClose:  onClose,
		logger:   logger.With().Str("component", "monitor").Str("symbol", symbol).Logger(),
	}
}

// Run polls until the position closes or ctx is cancelled. A failed price
// fetch only skips the tick; the next tick retries with no backoff growth.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("Monitor started")

	for {
		select {
		case <-ticker.C:
			if m.tick(ctx) {
				return
			}
		case <-ctx.Done():
			m.logger.Info().Msg("Monitor stopped")
			return
		}
	}
}

// tick checks the position once and reports whether the monitor is done.
func (m *Monitor) tick(ctx context.Context) bool {
	pos, ok := m.store.Get(m.symbol)
	if !ok {
		// Closed elsewhere; nothing left to watch.
		return true
	}

	price, err := m.feed.GetPrice(ctx, m.symbol)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Price fetch failed, skipping tick")
		return false
	}

	reason, hit := pos.EvaluateClose(price)
	if !hit {
		m.logger.Debug().Float64("price", price).Msg("No exit level hit")
		return false
	}

	closed := m.store.Close(m.symbol, price, reason)
	if closed == nil {
		// Lost the race with another closer; either way the position is gone.
		return true
	}

	if m.onClose != nil {
		m.onClose(closed)
	}
	return true
}
