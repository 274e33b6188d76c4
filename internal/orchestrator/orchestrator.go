// Package orchestrator runs the automated trading loop: periodic analysis of
// configured pairs, risk gating, position opening and per-position monitoring.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trading-orchestrator/config"
	"trading-orchestrator/internal/events"
	"trading-orchestrator/internal/market"
	"trading-orchestrator/internal/notification"
	"trading-orchestrator/internal/position"
	"trading-orchestrator/internal/risk"
	"trading-orchestrator/internal/signal"
	"trading-orchestrator/internal/stats"
)

// Archiver persists closed positions and daily summaries. Optional.
type Archiver interface {
	ArchiveClosedPosition(ctx context.Context, pos *position.Position) error
	SaveDailySummary(ctx context.Context, day stats.Daily) error
}

// StateStore persists open-position snapshots across restarts. Optional.
type StateStore interface {
	SavePosition(ctx context.Context, pos *position.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	LoadPositions(ctx context.Context) ([]*position.Position, error)
}

// Deps are the collaborators the orchestrator is wired with.
type Deps struct {
	ConfigStore *config.Store
	Store       *position.Store
	Stats       *stats.Engine
	PriceFeed   market.PriceFeed
	Signals     signal.Provider
	Notify      *notification.Manager
	Bus         *events.EventBus
	Archive     Archiver   // may be nil
	State       StateStore // may be nil
	Logger      zerolog.Logger
}

// Orchestrator drives the analysis scheduler and supervises position
// monitors. The running flag only gates whether a tick performs work; the
// timers themselves run from Start until Shutdown.
type Orchestrator struct {
	cfgStore *config.Store
	store    *position.Store
	stats    *stats.Engine
	feed     market.PriceFeed
	signals  signal.Provider
	notify   *notification.Manager
	bus      *events.EventBus
	archive  Archiver
	state    StateStore
	logger   zerolog.Logger

	running atomic.Bool

	mu  sync.RWMutex // guards cfg and monitorCtx/monitorCancel
	cfg *config.Config

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	monitorCtx    context.Context
	monitorCancel context.CancelFunc

	// sleep is injectable so tests run without real delays.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an orchestrator. cfg must already be validated.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		monitorCtx: context.Background(),
		cfgStore: deps.ConfigStore,
		store:    deps.Store,
		stats:    deps.Stats,
		feed:     deps.PriceFeed,
		signals:  deps.Signals,
		notify:   deps.Notify,
		bus:      deps.Bus,
		archive:  deps.Archive,
		state:    deps.State,
		logger:   deps.Logger.With().Str("component", "orchestrator").Logger(),
		cfg:      cfg,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// Run starts the scheduler and daily-reset timers, restores persisted
// positions, and begins trading. It returns immediately; call Shutdown to
// stop everything.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.rootCtx != nil {
		return errors.New("orchestrator already running")
	}
	o.rootCtx, o.rootCancel = context.WithCancel(ctx)

	o.mu.Lock()
	o.monitorCtx, o.monitorCancel = context.WithCancel(o.rootCtx)
	o.mu.Unlock()

	o.restorePositions()
	o.running.Store(true)

	o.wg.Add(2)
	go o.scheduleLoop()
	go o.dailyResetLoop()

	o.bus.Publish(events.Event{Type: events.EventOrchestratorStarted, Data: map[string]interface{}{}})
	o.logger.Info().
		Dur("interval", o.config().ScheduleInterval()).
		Int("pairs", len(o.config().TradingConfig.Pairs)).
		Msg("Orchestrator started")
	return nil
}

// Shutdown stops the timers and all monitors and waits for them to exit.
func (o *Orchestrator) Shutdown() {
	if o.rootCancel != nil {
		o.rootCancel()
	}
	o.wg.Wait()
	o.logger.Info().Msg("Orchestrator shut down")
}

// Start enables trading and respawns monitors for any open positions whose
// monitors were halted by Stop.
func (o *Orchestrator) Start() {
	if o.running.Swap(true) {
		return
	}

	o.mu.Lock()
	o.monitorCtx, o.monitorCancel = context.WithCancel(o.rootCtx)
	o.mu.Unlock()

	for _, pos := range o.store.Snapshot() {
		o.spawnMonitor(pos.Symbol)
	}

	o.bus.Publish(events.Event{Type: events.EventOrchestratorStarted, Data: map[string]interface{}{}})
	o.logger.Info().Msg("Trading started")
}

// Stop disables trading and cancels all running monitors. Open positions
// stay in the store; Start resumes watching them.
func (o *Orchestrator) Stop() {
	if !o.running.Swap(false) {
		return
	}

	o.mu.RLock()
	cancel := o.monitorCancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	o.bus.Publish(events.Event{Type: events.EventOrchestratorStopped, Data: map[string]interface{}{}})
	o.logger.Info().Msg("Trading stopped")
}

// IsRunning reports whether ticks currently perform work.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// Status is the control-surface view of the orchestrator.
type Status struct {
	Running         bool                `json:"running"`
	ActivePositions []position.Position `json:"active_positions"`
	DailyStats      stats.Daily         `json:"daily_stats"`
}

// GetStatus returns the current status snapshot.
func (o *Orchestrator) GetStatus() Status {
	return Status{
		Running:         o.running.Load(),
		ActivePositions: o.store.Snapshot(),
		DailyStats:      o.stats.Snapshot(),
	}
}

// Config returns the active configuration.
func (o *Orchestrator) Config() *config.Config {
	return o.config()
}

// UpdateConfig swaps in a new validated configuration and persists it.
func (o *Orchestrator) UpdateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()

	if o.cfgStore != nil {
		if err := o.cfgStore.Save(cfg); err != nil {
			return err
		}
	}
	o.logger.Info().Msg("Configuration updated")
	return nil
}

func (o *Orchestrator) config() *config.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// restorePositions reloads persisted open positions and spawns monitors for
// them. Snapshots that conflict with an already-open symbol are dropped.
func (o *Orchestrator) restorePositions() {
	if o.state == nil {
		return
	}

	ctx, cancel := context.WithTimeout(o.rootCtx, 10*time.Second)
	defer cancel()

	positions, err := o.state.LoadPositions(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Could not restore persisted positions")
		return
	}
	for _, pos := range positions {
		if pos.Status != position.StatusActive {
			continue
		}
		if err := o.store.Open(pos); err != nil {
			continue
		}
		o.spawnMonitor(pos.Symbol)
	}
	if len(positions) > 0 {
		o.logger.Info().Int("count", len(positions)).Msg("Restored persisted positions")
	}
}

func (o *Orchestrator) scheduleLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config().ScheduleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !o.running.Load() {
				o.logger.Debug().Msg("Tick skipped, trading stopped")
				continue
			}
			o.runTick(o.rootCtx)
		case <-o.rootCtx.Done():
			return
		}
	}
}

// runTick analyzes every enabled pair once. Pair and timeframe analysis is
// sequential with a fixed inter-call delay to respect upstream rate limits.
func (o *Orchestrator) runTick(ctx context.Context) {
	cfg := o.config()
	day := o.stats.Snapshot()

	if risk.DailyLossLimitReached(day.Loss, day.StartBalance, cfg.TradingConfig.DailyLossLimitPercent) {
		o.logger.Warn().
			Float64("loss", day.Loss).
			Float64("limit_percent", cfg.TradingConfig.DailyLossLimitPercent).
			Msg("Daily loss limit reached, halting analysis for the day")
		return
	}

	first := true
	for _, pair := range cfg.TradingConfig.Pairs {
		if !pair.Enabled {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if _, open := o.store.Get(pair.Symbol); open {
			o.logger.Debug().Str("symbol", pair.Symbol).Msg("Position already open, skipping pair")
			continue
		}
		if !risk.CanOpenPosition(o.store.Count(), cfg.TradingConfig.MaxConcurrentTrades) {
			o.logger.Info().
				Int("active", o.store.Count()).
				Int("max", cfg.TradingConfig.MaxConcurrentTrades).
				Msg("Concurrent trade cap reached, skipping pair")
			continue
		}

		for _, timeframe := range pair.Timeframes {
			if !first {
				o.sleep(ctx, cfg.AnalysisDelay())
			}
			first = false
			if ctx.Err() != nil {
				return
			}

			if opened := o.analyze(ctx, cfg, pair, timeframe); opened {
				break
			}
		}
	}
}

// analyze requests one signal and opens a position when it qualifies.
// Returns true when a position was opened for the pair.
func (o *Orchestrator) analyze(ctx context.Context, cfg *config.Config, pair config.Pair, timeframe string) bool {
	sigCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	sig, err := o.signals.GetSignal(sigCtx, pair.Symbol, timeframe)
	cancel()
	if err != nil {
		o.logger.Warn().Err(err).
			Str("symbol", pair.Symbol).
			Str("timeframe", timeframe).
			Msg("Signal fetch failed, treating as no signal")
		o.bus.Publish(events.Event{
			Type: events.EventError,
			Data: map[string]interface{}{"symbol": pair.Symbol, "error": err.Error()},
		})
		return false
	}

	if sig.Type == signal.TypeNeutral {
		return false
	}
	if sig.Confidence < cfg.TradingConfig.MinConfidence {
		o.logger.Debug().
			Str("symbol", pair.Symbol).
			Float64("confidence", sig.Confidence).
			Msg("Signal below confidence threshold")
		o.publishRejected(pair.Symbol, timeframe, sig.Confidence, "below_confidence_threshold")
		return false
	}

	// Cap re-check: monitors may have closed or the store filled up while
	// this pair's earlier timeframes were being analyzed.
	if !risk.CanOpenPosition(o.store.Count(), cfg.TradingConfig.MaxConcurrentTrades) {
		o.logger.Info().Str("symbol", pair.Symbol).Msg("Concurrent trade cap reached, signal dropped")
		o.publishRejected(pair.Symbol, timeframe, sig.Confidence, "concurrent_trade_cap")
		return false
	}

	return o.openPosition(cfg, pair, sig)
}

func (o *Orchestrator) publishRejected(symbol, timeframe string, confidence float64, reason string) {
	o.bus.Publish(events.Event{
		Type: events.EventSignalRejected,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"timeframe":  timeframe,
			"confidence": confidence,
			"reason":     reason,
		},
	})
}

// openPosition sizes, stores and starts monitoring a new position.
func (o *Orchestrator) openPosition(cfg *config.Config, pair config.Pair, sig *signal.Signal) bool {
	direction := position.Buy
	if sig.Type == signal.TypeSell {
		direction = position.Sell
	}

	size := risk.PositionSize(cfg.TradingConfig.AccountBalance, cfg.RiskPercentFor(pair))
	pos := position.New(pair.Symbol, direction, sig.EntryPrice, sig.StopLoss, sig.TakeProfit, size, sig.Timeframe, sig.Confidence)

	if err := o.store.Open(pos); err != nil {
		// Invariant rejection: another actor opened this symbol first.
		o.logger.Warn().Err(err).Str("symbol", pair.Symbol).Msg("Open rejected")
		return false
	}

	if o.state != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.state.SavePosition(ctx, pos); err != nil {
			o.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Could not persist position state")
		}
		cancel()
	}

	o.stats.RecordOpen()
	o.spawnMonitor(pos.Symbol)
	o.notify.SendTradeOpen(pos.Symbol, string(pos.Direction), pos.EntryPrice, pos.StopLoss, pos.TakeProfit, pos.Size)
	o.bus.PublishTradeOpened(pos.Symbol, string(pos.Direction), pos.EntryPrice, pos.Size)
	return true
}

func (o *Orchestrator) spawnMonitor(symbol string) {
	o.mu.RLock()
	ctx := o.monitorCtx
	o.mu.RUnlock()

	monitor := position.NewMonitor(symbol, o.feed, o.store, o.config().MonitorInterval(), o.onPositionClosed, o.logger)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		monitor.Run(ctx)
	}()
}

// onPositionClosed runs in the closing monitor's goroutine after the store
// transition; everything here is downstream bookkeeping.
func (o *Orchestrator) onPositionClosed(closed *position.Position) {
	o.stats.Update(closed.RealizedPnL)
	o.notify.SendTradeClose(closed.Symbol, closed.EntryPrice, closed.ExitPrice, closed.RealizedPnL, string(closed.CloseReason))
	o.bus.PublishTradeClosed(closed.Symbol, string(closed.CloseReason), closed.ExitPrice, closed.RealizedPnL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.state != nil {
		if err := o.state.DeletePosition(ctx, closed.Symbol); err != nil {
			o.logger.Warn().Err(err).Str("symbol", closed.Symbol).Msg("Could not delete position state")
		}
	}
	if o.archive != nil {
		if err := o.archive.ArchiveClosedPosition(ctx, closed); err != nil {
			o.logger.Warn().Err(err).Str("symbol", closed.Symbol).Msg("Could not archive closed position")
		}
	}
}

// dailyResetLoop resets the daily stats at each 00:00 UTC boundary and
// archives the finished day.
func (o *Orchestrator) dailyResetLoop() {
	defer o.wg.Done()

	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			finished := o.stats.Reset(o.config().TradingConfig.AccountBalance)
			o.bus.Publish(events.Event{
				Type: events.EventDailyReset,
				Data: map[string]interface{}{
					"trade_count": finished.TradeCount,
					"profit":      finished.Profit,
					"loss":        finished.Loss,
				},
			})
			if o.archive != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := o.archive.SaveDailySummary(ctx, finished); err != nil {
					o.logger.Warn().Err(err).Msg("Could not save daily summary")
				}
				cancel()
			}
		case <-o.rootCtx.Done():
			timer.Stop()
			return
		}
	}
}
