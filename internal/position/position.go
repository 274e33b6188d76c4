// Package position owns open trades: the model, the authoritative store and
// the per-position monitors that decide when to close.
package position

import (
	"fmt"
	"time"
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Status of a position. A position transitions ACTIVE to CLOSED exactly once.
const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

// CloseReason records which exit level a position closed at.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
)

// Position is a single open-or-closed trade tied to one symbol.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Size       float64   `json:"size"`
	OpenedAt   time.Time `json:"opened_at"`
	Timeframe  string    `json:"timeframe"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`

	// Set on close.
	ExitPrice   float64     `json:"exit_price,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	ClosedAt    time.Time   `json:"closed_at,omitempty"`
	RealizedPnL float64     `json:"realized_pnl,omitempty"`
}

// New creates an ACTIVE position. The ID combines symbol and open timestamp
// and is unique as long as a symbol opens at most one position per nanosecond.
func New(symbol string, dir Direction, entry, stopLoss, takeProfit, size float64, timeframe string, confidence float64) *Position {
	openedAt := time.Now()
	return &Position{
		ID:         fmt.Sprintf("%s-%d", symbol, openedAt.UnixNano()),
		Symbol:     symbol,
		Direction:  dir,
		EntryPrice: entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Size:       size,
		OpenedAt:   openedAt,
		Timeframe:  timeframe,
		Confidence: confidence,
		Status:     StatusActive,
	}
}

// PnLAt returns the realized P&L if the position exited at the given price.
func (p *Position) PnLAt(exitPrice float64) float64 {
	if p.Direction == Buy {
		return (exitPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - exitPrice) * p.Size
}

// EvaluateClose decides whether the current price triggers an exit.
// Stop loss is checked before take profit so a tie favors capital
// preservation.
func (p *Position) EvaluateClose(price float64) (CloseReason, bool) {
	if p.Direction == Buy {
		if price <= p.StopLoss {
			return CloseStopLoss, true
		}
		if price >= p.TakeProfit {
			return CloseTakeProfit, true
		}
		return "", false
	}
	if price >= p.StopLoss {
		return CloseStopLoss, true
	}
	if price <= p.TakeProfit {
		return CloseTakeProfit, true
	}
	return "", false
}
