package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockClient provides simulated prices for development and testing.
type MockClient struct {
	mu         sync.RWMutex
	prices     map[string]float64
	lastUpdate time.Time
	rng        *rand.Rand
	drift      bool
}

// NewMockClient creates a mock price feed seeded with realistic base prices.
func NewMockClient() *MockClient {
	return &MockClient{
		prices: map[string]float64{
			"EUR/USD": 1.1000,
			"GBP/USD": 1.2700,
			"USD/JPY": 148.50,
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
		},
		lastUpdate: time.Now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		drift:      true,
	}
}

// SetPrice pins a symbol to a fixed price and disables the random walk for it.
func (mc *MockClient) SetPrice(symbol string, price float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.prices[symbol] = price
	mc.drift = false
}

// updatePrices applies a small random walk to simulate market movement.
func (mc *MockClient) updatePrices() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.drift || time.Since(mc.lastUpdate) < time.Second {
		return
	}
	for symbol, price := range mc.prices {
		change := (mc.rng.Float64() - 0.5) * 0.01
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

// GetPrice returns the simulated price for a symbol.
func (mc *MockClient) GetPrice(_ context.Context, symbol string) (float64, error) {
	mc.updatePrices()

	mc.mu.RLock()
	price, ok := mc.prices[symbol]
	mc.mu.RUnlock()
	if !ok {
		price = 100.0
	}
	return price, nil
}
