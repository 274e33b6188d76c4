package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"trading-orchestrator/config"
	"trading-orchestrator/internal/events"
	"trading-orchestrator/internal/market"
	"trading-orchestrator/internal/notification"
	"trading-orchestrator/internal/orchestrator"
	"trading-orchestrator/internal/position"
	"trading-orchestrator/internal/signal"
	"trading-orchestrator/internal/stats"
)

func testServer() (*Server, *orchestrator.Orchestrator) {
	cfg := &config.Config{
		TradingConfig: config.TradingConfig{
			Pairs: []config.Pair{
				{Symbol: "EUR/USD", Market: config.MarketForex, Timeframes: []string{"1h", "4h"}, Enabled: true},
			},
			AccountBalance:        10000,
			RiskPerTradePercent:   2,
			DailyLossLimitPercent: 5,
			MaxConcurrentTrades:   3,
			ScheduleIntervalMins:  15,
		},
	}

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Store:     position.NewStore(zerolog.Nop()),
		Stats:     stats.NewEngine(cfg.TradingConfig.AccountBalance, zerolog.Nop()),
		PriceFeed: market.NewMockClient(),
		Signals:   signal.NewMockClient(),
		Notify:    notification.NewManager(zerolog.Nop()),
		Bus:       events.NewEventBus(),
		Logger:    zerolog.Nop(),
	})

	server := NewServer(ServerConfig{ProductionMode: true}, orch, nil, events.NewEventBus(), zerolog.Nop())
	return server, orch
}

// ============================================================================
// TEST: Rejected config updates never touch the live config
// ============================================================================

func TestHandleUpdateConfig_RejectedUpdateLeavesLiveConfigUntouched(t *testing.T) {
	server, orch := testServer()

	// Invalid balance forces a 400; the pair in the body must not bleed
	// into the running config through a shared backing array.
	body := []byte(`{"trading":{"account_balance":-1,"pairs":[{"symbol":"XXX/YYY","market":"forex","timeframes":["5m"],"enabled":true}]}}`)
	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	live := orch.Config().TradingConfig
	if len(live.Pairs) != 1 || live.Pairs[0].Symbol != "EUR/USD" {
		t.Fatalf("Expected live pairs untouched after rejected update, got %+v", live.Pairs)
	}
	if tf := live.Pairs[0].Timeframes; len(tf) != 2 || tf[0] != "1h" || tf[1] != "4h" {
		t.Errorf("Expected live timeframes untouched after rejected update, got %v", tf)
	}
	if live.AccountBalance != 10000 {
		t.Errorf("Expected live balance untouched after rejected update, got %.2f", live.AccountBalance)
	}
}

func TestHandleUpdateConfig_PartialUpdateMerges(t *testing.T) {
	server, orch := testServer()

	body := []byte(`{"trading":{"max_concurrent_trades":5}}`)
	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	live := orch.Config().TradingConfig
	if live.MaxConcurrentTrades != 5 {
		t.Errorf("Expected max concurrent trades 5, got %d", live.MaxConcurrentTrades)
	}
	if live.AccountBalance != 10000 {
		t.Errorf("Expected omitted balance to keep its value, got %.2f", live.AccountBalance)
	}
	if len(live.Pairs) != 1 || live.Pairs[0].Symbol != "EUR/USD" {
		t.Errorf("Expected omitted pairs to keep their values, got %+v", live.Pairs)
	}
}

func TestHandleUpdateConfig_MalformedBody(t *testing.T) {
	server, orch := testServer()

	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader([]byte(`{not json`)))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if orch.Config().TradingConfig.AccountBalance != 10000 {
		t.Error("Expected live config untouched after malformed body")
	}
}
