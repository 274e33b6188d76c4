package signal

import (
	"context"
	"time"
)

// Type is the direction a signal recommends.
type Type string

const (
	TypeBuy     Type = "BUY"
	TypeSell    Type = "SELL"
	TypeNeutral Type = "NEUTRAL"
)

// Signal is a directional recommendation for a symbol and timeframe.
// Signals are immutable once received and consumed once by the scheduler.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Type       Type      `json:"signal_type"`
	Confidence float64   `json:"confidence"` // 0-100
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Provider fetches trading signals from the external signal engine.
type Provider interface {
	GetSignal(ctx context.Context, symbol, timeframe string) (*Signal, error)
}
