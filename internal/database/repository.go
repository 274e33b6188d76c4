package database

import (
	"context"
	"fmt"
	"time"

	"trading-orchestrator/internal/position"
	"trading-orchestrator/internal/stats"
)

// Repository provides archive data access methods.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// Trade is an archived closed position.
type Trade struct {
	ID          int64     `json:"id"`
	PositionID  string    `json:"position_id"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Size        float64   `json:"size"`
	Timeframe   string    `json:"timeframe"`
	Confidence  float64   `json:"confidence"`
	CloseReason string    `json:"close_reason"`
	PnL         float64   `json:"pnl"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
}

// ArchiveClosedPosition inserts a closed position into the trades table.
func (r *Repository) ArchiveClosedPosition(ctx context.Context, pos *position.Position) error {
	query := `
		INSERT INTO trades (position_id, symbol, direction, entry_price, exit_price,
			stop_loss, take_profit, size, timeframe, confidence, close_reason, pnl,
			opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (position_id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		pos.ID, pos.Symbol, string(pos.Direction), pos.EntryPrice, pos.ExitPrice,
		pos.StopLoss, pos.TakeProfit, pos.Size, pos.Timeframe, pos.Confidence,
		string(pos.CloseReason), pos.RealizedPnL, pos.OpenedAt, pos.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("error archiving position %s: %w", pos.ID, err)
	}
	return nil
}

// SaveDailySummary upserts the day's aggregated counters at day rollover.
func (r *Repository) SaveDailySummary(ctx context.Context, day stats.Daily) error {
	query := `
		INSERT INTO daily_summaries (summary_date, trade_count, profit, loss, start_balance)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (summary_date) DO UPDATE SET
			trade_count = EXCLUDED.trade_count,
			profit = EXCLUDED.profit,
			loss = EXCLUDED.loss,
			start_balance = EXCLUDED.start_balance
	`
	_, err := r.db.Pool.Exec(ctx, query,
		day.Date, day.TradeCount, day.Profit, day.Loss, day.StartBalance,
	)
	if err != nil {
		return fmt.Errorf("error saving daily summary: %w", err)
	}
	return nil
}

// GetRecentTrades returns the most recently closed trades, newest first.
func (r *Repository) GetRecentTrades(ctx context.Context, limit int) ([]*Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, position_id, symbol, direction, entry_price, exit_price,
		       stop_loss, take_profit, size, timeframe, confidence, close_reason,
		       pnl, opened_at, closed_at
		FROM trades
		ORDER BY closed_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying trades: %w", err)
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		t := &Trade{}
		if err := rows.Scan(
			&t.ID, &t.PositionID, &t.Symbol, &t.Direction, &t.EntryPrice, &t.ExitPrice,
			&t.StopLoss, &t.TakeProfit, &t.Size, &t.Timeframe, &t.Confidence,
			&t.CloseReason, &t.PnL, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
