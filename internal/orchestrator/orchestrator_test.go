package orchestrator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-orchestrator/config"
	"trading-orchestrator/internal/events"
	"trading-orchestrator/internal/market"
	"trading-orchestrator/internal/notification"
	"trading-orchestrator/internal/position"
	"trading-orchestrator/internal/signal"
	"trading-orchestrator/internal/stats"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func testConfig(pairs ...config.Pair) *config.Config {
	return &config.Config{
		TradingConfig: config.TradingConfig{
			Pairs:                 pairs,
			AccountBalance:        10000.0,
			RiskPerTradePercent:   2.0,
			DailyLossLimitPercent: 5.0,
			MaxConcurrentTrades:   2,
			ScheduleIntervalMins:  15,
			MonitorIntervalSecs:   1,
			AnalysisDelaySecs:     2,
			MinConfidence:         70,
		},
	}
}

func pair(symbol string, timeframes ...string) config.Pair {
	return config.Pair{
		Symbol:     symbol,
		Market:     config.MarketForex,
		Timeframes: timeframes,
		Enabled:    true,
	}
}

// testOrchestrator wires an orchestrator with mock collaborators and a no-op
// sleep so ticks run without real delays.
func testOrchestrator(cfg *config.Config) (*Orchestrator, *signal.MockClient, *market.MockClient) {
	signals := signal.NewMockClient()
	feed := market.NewMockClient()

	orch := New(cfg, Deps{
		Store:     position.NewStore(zerolog.Nop()),
		Stats:     stats.NewEngine(cfg.TradingConfig.AccountBalance, zerolog.Nop()),
		PriceFeed: feed,
		Signals:   signals,
		Notify:    notification.NewManager(zerolog.Nop()),
		Bus:       events.NewEventBus(),
		Logger:    zerolog.Nop(),
	})
	orch.sleep = func(ctx context.Context, d time.Duration) {}
	return orch, signals, feed
}

func buySignal(symbol, timeframe string, confidence float64) *signal.Signal {
	return &signal.Signal{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Type:       signal.TypeBuy,
		Confidence: confidence,
		EntryPrice: 1.1000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
		Timestamp:  time.Now(),
	}
}

// ============================================================================
// TEST: Tick opens a position for a qualifying signal
// ============================================================================

func TestRunTick_OpensPosition(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, feed := testOrchestrator(cfg)
	feed.SetPrice("EUR/USD", 1.1050) // between the exit levels

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 85))

	orch.runTick(context.Background())

	pos, open := orch.store.Get("EUR/USD")
	if !open {
		t.Fatal("Expected a position to be opened")
	}
	if pos.Direction != position.Buy {
		t.Errorf("Expected BUY, got %s", pos.Direction)
	}
	if !floatEquals(pos.Size, 200.0, 1e-9) {
		t.Errorf("Expected size 200.0 (2%% of 10000), got %.2f", pos.Size)
	}
	if got := orch.stats.Snapshot().TradeCount; got != 1 {
		t.Errorf("Expected trade count 1, got %d", got)
	}
}

// ============================================================================
// TEST: Signals below the confidence threshold are ignored
// ============================================================================

func TestRunTick_RejectsLowConfidence(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, _ := testOrchestrator(cfg)

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 69.9))

	orch.runTick(context.Background())

	if orch.store.Count() != 0 {
		t.Error("Expected no position for a below-threshold signal")
	}
	if got := orch.stats.Snapshot().TradeCount; got != 0 {
		t.Errorf("Expected trade count 0, got %d", got)
	}
}

func TestRunTick_ConfidenceBoundaryOpens(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, feed := testOrchestrator(cfg)
	feed.SetPrice("EUR/USD", 1.1050)

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 70))

	orch.runTick(context.Background())

	if orch.store.Count() != 1 {
		t.Error("Expected a position at exactly the confidence threshold")
	}
}

// ============================================================================
// TEST: Neutral signals never open positions
// ============================================================================

func TestRunTick_NeutralSignalSkipped(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, _ := testOrchestrator(cfg)

	signals.Script("EUR/USD", &signal.Signal{
		Symbol:     "EUR/USD",
		Timeframe:  "1h",
		Type:       signal.TypeNeutral,
		Confidence: 95,
	})

	orch.runTick(context.Background())

	if orch.store.Count() != 0 {
		t.Error("Expected no position for a neutral signal")
	}
}

// ============================================================================
// TEST: Concurrent trade cap rejects qualifying signals
// ============================================================================

// countingNotifier records deliveries so tests can assert on them.
type countingNotifier struct {
	sent []*notification.Notification
}

func (n *countingNotifier) Send(msg *notification.Notification) error {
	n.sent = append(n.sent, msg)
	return nil
}
func (n *countingNotifier) Name() string    { return "counting" }
func (n *countingNotifier) IsEnabled() bool { return true }

func TestRunTick_ConcurrentTradeCap(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"), pair("GBP/USD", "1h"), pair("USD/JPY", "1h"))
	orch, signals, feed := testOrchestrator(cfg)
	feed.SetPrice("EUR/USD", 1.1050)
	feed.SetPrice("GBP/USD", 1.2750)

	counter := &countingNotifier{}
	orch.notify.AddNotifier(counter)

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 95))
	signals.Script("GBP/USD", buySignal("GBP/USD", "1h", 95))
	signals.Script("USD/JPY", buySignal("USD/JPY", "1h", 95)) // over the cap of 2

	orch.runTick(context.Background())

	if orch.store.Count() != 2 {
		t.Fatalf("Expected exactly 2 positions under the cap, got %d", orch.store.Count())
	}
	if _, open := orch.store.Get("USD/JPY"); open {
		t.Error("Expected the third signal to be rejected by the cap")
	}
	if got := orch.stats.Snapshot().TradeCount; got != 2 {
		t.Errorf("Expected trade count 2, got %d", got)
	}
	// Only the two opens notify; the rejected signal must not.
	if len(counter.sent) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(counter.sent))
	}
}

// ============================================================================
// TEST: Symbols with an open position are skipped entirely
// ============================================================================

func TestRunTick_SkipsOpenSymbol(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, _ := testOrchestrator(cfg)

	existing := position.New("EUR/USD", position.Sell, 1.1000, 1.1050, 1.0900, 200, "4h", 90)
	if err := orch.store.Open(existing); err != nil {
		t.Fatalf("Seed open failed: %v", err)
	}

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 95))

	orch.runTick(context.Background())

	pos, _ := orch.store.Get("EUR/USD")
	if pos.ID != existing.ID {
		t.Error("Expected the existing position to be untouched")
	}
	if orch.store.Count() != 1 {
		t.Errorf("Expected 1 position, got %d", orch.store.Count())
	}
}

// ============================================================================
// TEST: Daily loss limit halts the whole tick
// ============================================================================

func TestRunTick_DailyLossHalt(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, signals, _ := testOrchestrator(cfg)

	// 5% of 10000 is exactly 500; the boundary halts.
	orch.stats.Update(-500.0)

	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 95))

	orch.runTick(context.Background())

	if orch.store.Count() != 0 {
		t.Error("Expected no positions after the daily loss limit is hit")
	}
}

// ============================================================================
// TEST: Signal fetch failures skip the timeframe, never crash
// ============================================================================

type failingSignals struct{}

func (failingSignals) GetSignal(ctx context.Context, symbol, timeframe string) (*signal.Signal, error) {
	return nil, context.DeadlineExceeded
}

func TestRunTick_SignalFailureSkipped(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h", "4h"))
	orch, _, _ := testOrchestrator(cfg)
	orch.signals = failingSignals{}

	orch.runTick(context.Background())

	if orch.store.Count() != 0 {
		t.Error("Expected no positions when every signal fetch fails")
	}
}

// ============================================================================
// TEST: Open then close through the monitor updates daily stats
// ============================================================================

func TestOrchestrator_OpenThenTakeProfitClose(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	cfg.TradingConfig.MonitorIntervalSecs = 1
	orch, signals, feed := testOrchestrator(cfg)

	feed.SetPrice("EUR/USD", 1.1050)
	signals.Script("EUR/USD", buySignal("EUR/USD", "1h", 85))

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer orch.Shutdown()

	orch.runTick(context.Background())
	if orch.store.Count() != 1 {
		t.Fatal("Expected an open position")
	}

	// Push the price through take profit and wait for the monitor.
	feed.SetPrice("EUR/USD", 1.1105)

	deadline := time.After(5 * time.Second)
	for orch.store.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("Monitor did not close the position in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Monitor callback runs in its goroutine; give the stats update a moment.
	var day stats.Daily
	for i := 0; i < 100; i++ {
		day = orch.stats.Snapshot()
		if day.Profit > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// (1.1105 - 1.1000) * 200
	if !floatEquals(day.Profit, 2.1, 1e-6) {
		t.Errorf("Expected daily profit 2.1, got %.4f", day.Profit)
	}
	if day.TradeCount != 1 {
		t.Errorf("Expected trade count 1, got %d", day.TradeCount)
	}
}

// ============================================================================
// TEST: Stop halts monitors, Start respawns them
// ============================================================================

func TestOrchestrator_StopAndStart(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, _, feed := testOrchestrator(cfg)
	feed.SetPrice("EUR/USD", 1.1050)

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer orch.Shutdown()

	pos := position.New("EUR/USD", position.Buy, 1.1000, 1.0950, 1.1100, 200, "1h", 85)
	if err := orch.store.Open(pos); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	orch.spawnMonitor("EUR/USD")

	orch.Stop()
	if orch.IsRunning() {
		t.Error("Expected running=false after Stop")
	}

	// While stopped, the position stays open even past take profit.
	feed.SetPrice("EUR/USD", 1.1200)
	time.Sleep(50 * time.Millisecond)
	if orch.store.Count() != 1 {
		t.Fatal("Expected position to stay open while stopped")
	}

	cfg.TradingConfig.MonitorIntervalSecs = 1
	orch.Start()
	if !orch.IsRunning() {
		t.Error("Expected running=true after Start")
	}

	deadline := time.After(5 * time.Second)
	for orch.store.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("Respawned monitor did not close the position")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// ============================================================================
// TEST: Config updates validate before applying
// ============================================================================

func TestUpdateConfig_RejectsInvalid(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, _, _ := testOrchestrator(cfg)

	bad := *cfg
	bad.TradingConfig.AccountBalance = -1

	if err := orch.UpdateConfig(&bad); err == nil {
		t.Error("Expected invalid config to be rejected")
	}
	if orch.Config().TradingConfig.AccountBalance != 10000.0 {
		t.Error("Expected the previous config to survive a rejected update")
	}
}

func TestUpdateConfig_Applies(t *testing.T) {
	cfg := testConfig(pair("EUR/USD", "1h"))
	orch, _, _ := testOrchestrator(cfg)

	updated := *cfg
	updated.TradingConfig.MaxConcurrentTrades = 5

	if err := orch.UpdateConfig(&updated); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if orch.Config().TradingConfig.MaxConcurrentTrades != 5 {
		t.Error("Expected the updated config to be active")
	}
}
