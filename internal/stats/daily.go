// Package stats aggregates trade count and P&L for the current trading day.
package stats

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Daily holds the counters for one trading day. TradeCount reflects positions
// opened that day; Profit and Loss accumulate on close.
type Daily struct {
	Date         time.Time `json:"date"`
	TradeCount   int       `json:"trade_count"`
	Profit       float64   `json:"profit"`
	Loss         float64   `json:"loss"`
	StartBalance float64   `json:"start_balance"`
}

// NetPnL returns profit minus loss for the day.
func (d Daily) NetPnL() float64 {
	return d.Profit - d.Loss
}

// Engine owns the mutable daily counters. It is written by the scheduler
// (trade count on open) and by position monitors (P&L on close), so every
// update runs under the engine lock.
type Engine struct {
	mu      sync.Mutex
	current Daily
	logger  zerolog.Logger
}

// NewEngine creates a daily stats engine for today starting from the
// configured account balance.
func NewEngine(startBalance float64, logger zerolog.Logger) *Engine {
	return &Engine{
		current: Daily{
			Date:         utcDate(time.Now()),
			StartBalance: startBalance,
		},
		logger: logger.With().Str("component", "daily_stats").Logger(),
	}
}

// RecordOpen increments the trade count. Called when a position opens.
func (e *Engine) RecordOpen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current.TradeCount++
}

// Update applies a realized P&L from a closed position: gains add to profit,
// losses add their magnitude to loss.
func (e *Engine) Update(pnl float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pnl > 0 {
		e.current.Profit += pnl
	} else {
		e.current.Loss += -pnl
	}
}

// Reset starts a fresh day from the given balance and returns the completed
// day's counters for archival. The start balance is the static configured
// balance, not live equity; that simplification is deliberate.
func (e *Engine) Reset(startBalance float64) Daily {
	e.mu.Lock()
	defer e.mu.Unlock()

	finished := e.current
	e.current = Daily{
		Date:         utcDate(time.Now()),
		StartBalance: startBalance,
	}

	e.logger.Info().
		Int("trades", finished.TradeCount).
		Float64("profit", finished.Profit).
		Float64("loss", finished.Loss).
		Msg("Daily stats reset")

	return finished
}

// Snapshot returns a copy of the current day's counters.
func (e *Engine) Snapshot() Daily {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func utcDate(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
