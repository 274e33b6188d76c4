package signal

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockClient produces simulated signals for development and testing.
type MockClient struct {
	mu      sync.Mutex
	rng     *rand.Rand
	scripts map[string][]*Signal // optional scripted responses per symbol
}

// NewMockClient creates a new mock signal client.
func NewMockClient() *MockClient {
	return &MockClient{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		scripts: make(map[string][]*Signal),
	}
}

// Script queues signals to return for a symbol, in order. Once the script is
// exhausted the client falls back to random signals.
func (mc *MockClient) Script(symbol string, signals ...*Signal) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.scripts[symbol] = append(mc.scripts[symbol], signals...)
}

// GetSignal returns the next scripted signal for the symbol, or a random one.
func (mc *MockClient) GetSignal(_ context.Context, symbol, timeframe string) (*Signal, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if queued := mc.scripts[symbol]; len(queued) > 0 {
		sig := queued[0]
		mc.scripts[symbol] = queued[1:]
		return sig, nil
	}

	basePrice := 1.0 + mc.rng.Float64()
	types := []Type{TypeBuy, TypeSell, TypeNeutral, TypeNeutral}
	sigType := types[mc.rng.Intn(len(types))]

	sig := &Signal{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Type:       sigType,
		Confidence: 40 + mc.rng.Float64()*60,
		EntryPrice: basePrice,
		Timestamp:  time.Now(),
	}
	if sigType == TypeBuy {
		sig.StopLoss = basePrice * 0.995
		sig.TakeProfit = basePrice * 1.01
	} else if sigType == TypeSell {
		sig.StopLoss = basePrice * 1.005
		sig.TakeProfit = basePrice * 0.99
	}
	return sig, nil
}
