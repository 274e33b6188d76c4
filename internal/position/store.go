package position

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPositionAlreadyOpen is returned by Open when the symbol already has an
// ACTIVE position. Callers skip the signal; this is not a fault.
var ErrPositionAlreadyOpen = errors.New("position already open for symbol")

// Store is the single source of truth for open positions. Open and Close are
// atomic critical sections so the one-ACTIVE-position-per-symbol invariant
// holds under concurrent scheduler ticks and monitor closes.
type Store struct {
	mu        sync.RWMutex
	positions map[string]*Position
	logger    zerolog.Logger
}

// NewStore creates an empty position store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		positions: make(map[string]*Position),
		logger:    logger.With().Str("component", "position_store").Logger(),
	}
}

// Open inserts a position, failing with ErrPositionAlreadyOpen if the symbol
// already has one. The check and insert happen under a single lock.
func (s *Store) Open(pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[pos.Symbol]; exists {
		return ErrPositionAlreadyOpen
	}
	s.positions[pos.Symbol] = pos

	s.logger.Info().
		Str("id", pos.ID).
		Str("symbol", pos.Symbol).
		Str("direction", string(pos.Direction)).
		Float64("entry", pos.EntryPrice).
		Float64("size", pos.Size).
		Msg("Position opened")
	return nil
}

// Close removes the position for a symbol, marks it CLOSED with the given
// exit, and returns it. Returns nil if the symbol has no open position, so a
// second Close for the same symbol is a no-op.
func (s *Store) Close(symbol string, exitPrice float64, reason CloseReason) *Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.positions[symbol]
	if !exists {
		return nil
	}
	delete(s.positions, symbol)

	pos.Status = StatusClosed
	pos.ExitPrice = exitPrice
	pos.CloseReason = reason
	pos.ClosedAt = time.Now()
	pos.RealizedPnL = pos.PnLAt(exitPrice)

	s.logger.Info().
		Str("id", pos.ID).
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("exit", exitPrice).
		Float64("pnl", pos.RealizedPnL).
		Msg("Position closed")
	return pos
}

// Get returns the open position for a symbol, if any.
func (s *Store) Get(symbol string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[symbol]
	return pos, ok
}

// Count returns the number of open positions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Snapshot returns copies of all open positions.
func (s *Store) Snapshot() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}
	return out
}
