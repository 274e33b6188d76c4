package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trading-orchestrator/internal/position"
)

const (
	// positionKeyPrefix is the prefix for individual position state keys.
	// Format: orchestrator:position:{symbol}
	positionKeyPrefix = "orchestrator:position"

	// positionStateTTL keeps stale snapshots from accumulating if a close
	// is never recorded.
	positionStateTTL = 7 * 24 * time.Hour
)

// PositionStateStore persists open-position snapshots so monitors can be
// restored after a restart. When Redis is unavailable it falls back to an
// in-memory map so trading continues uninterrupted.
type PositionStateStore struct {
	client         *redis.Client
	inMemory       map[string]*position.Position
	mu             sync.RWMutex
	redisAvailable atomic.Bool
	logger         zerolog.Logger
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewPositionStateStore connects to Redis; when the connection fails the
// store starts in fallback mode and keeps probing on each operation.
func NewPositionStateStore(cfg RedisConfig, logger zerolog.Logger) *PositionStateStore {
	s := &PositionStateStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		inMemory: make(map[string]*position.Position),
		logger:   logger.With().Str("component", "position_state").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Redis unavailable, using in-memory fallback")
		s.redisAvailable.Store(false)
	} else {
		s.redisAvailable.Store(true)
	}
	return s
}

func positionKey(symbol string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, symbol)
}

// SavePosition stores a snapshot of an open position.
func (s *PositionStateStore) SavePosition(ctx context.Context, pos *position.Position) error {
	s.mu.Lock()
	s.inMemory[pos.Symbol] = pos
	s.mu.Unlock()

	if !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("error marshaling position state: %w", err)
	}
	if err := s.client.Set(ctx, positionKey(pos.Symbol), data, positionStateTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Redis save failed, in-memory copy kept")
		s.redisAvailable.Store(false)
	}
	return nil
}

// DeletePosition removes the snapshot after a position closes.
func (s *PositionStateStore) DeletePosition(ctx context.Context, symbol string) error {
	s.mu.Lock()
	delete(s.inMemory, symbol)
	s.mu.Unlock()

	if !s.redisAvailable.Load() {
		return nil
	}
	if err := s.client.Del(ctx, positionKey(symbol)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Redis delete failed")
		s.redisAvailable.Store(false)
	}
	return nil
}

// LoadPositions returns all persisted open positions. Used once at startup
// to restore monitors.
func (s *PositionStateStore) LoadPositions(ctx context.Context) ([]*position.Position, error) {
	if s.redisAvailable.Load() {
		keys, err := s.client.Keys(ctx, positionKeyPrefix+":*").Result()
		if err == nil {
			positions := make([]*position.Position, 0, len(keys))
			for _, key := range keys {
				data, err := s.client.Get(ctx, key).Bytes()
				if err != nil {
					continue
				}
				var pos position.Position
				if err := json.Unmarshal(data, &pos); err != nil {
					s.logger.Warn().Err(err).Str("key", key).Msg("Skipping corrupt position state")
					continue
				}
				positions = append(positions, &pos)
			}
			return positions, nil
		}
		s.logger.Warn().Err(err).Msg("Redis scan failed, using in-memory fallback")
		s.redisAvailable.Store(false)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	positions := make([]*position.Position, 0, len(s.inMemory))
	for _, pos := range s.inMemory {
		positions = append(positions, pos)
	}
	return positions, nil
}

// Close closes the Redis connection.
func (s *PositionStateStore) Close() error {
	return s.client.Close()
}
