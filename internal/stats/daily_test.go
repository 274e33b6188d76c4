package stats

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// ============================================================================
// TEST: P&L accumulation
// ============================================================================

func TestEngine_Update(t *testing.T) {
	engine := NewEngine(10000.0, zerolog.Nop())

	engine.Update(25.0)
	engine.Update(-10.0)
	engine.Update(5.0)

	day := engine.Snapshot()
	if !floatEquals(day.Profit, 30.0, 1e-9) {
		t.Errorf("Expected profit 30.0, got %.2f", day.Profit)
	}
	if !floatEquals(day.Loss, 10.0, 1e-9) {
		t.Errorf("Expected loss 10.0, got %.2f", day.Loss)
	}
	if !floatEquals(day.NetPnL(), 20.0, 1e-9) {
		t.Errorf("Expected net PnL 20.0, got %.2f", day.NetPnL())
	}
}

func TestEngine_RecordOpen(t *testing.T) {
	engine := NewEngine(10000.0, zerolog.Nop())

	engine.RecordOpen()
	engine.RecordOpen()

	if got := engine.Snapshot().TradeCount; got != 2 {
		t.Errorf("Expected trade count 2, got %d", got)
	}
}

// ============================================================================
// TEST: Daily reset
// ============================================================================

func TestEngine_Reset(t *testing.T) {
	engine := NewEngine(10000.0, zerolog.Nop())
	engine.RecordOpen()
	engine.Update(50.0)
	engine.Update(-20.0)

	finished := engine.Reset(12000.0)

	if finished.TradeCount != 1 {
		t.Errorf("Expected finished day with 1 trade, got %d", finished.TradeCount)
	}
	if !floatEquals(finished.Profit, 50.0, 1e-9) {
		t.Errorf("Expected finished profit 50.0, got %.2f", finished.Profit)
	}
	if !floatEquals(finished.Loss, 20.0, 1e-9) {
		t.Errorf("Expected finished loss 20.0, got %.2f", finished.Loss)
	}

	fresh := engine.Snapshot()
	if fresh.TradeCount != 0 || fresh.Profit != 0 || fresh.Loss != 0 {
		t.Error("Expected fresh counters after reset")
	}
	if !floatEquals(fresh.StartBalance, 12000.0, 1e-9) {
		t.Errorf("Expected new start balance 12000.0, got %.2f", fresh.StartBalance)
	}
}
