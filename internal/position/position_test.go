package position

import (
	"math"
	"testing"
)

// floatEquals compares two floats with tolerance
func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// ============================================================================
// TEST: Realized P&L signs
// ============================================================================

func TestPnLAt(t *testing.T) {
	tests := []struct {
		name  string
		dir   Direction
		entry float64
		exit  float64
		size  float64
		want  float64
	}{
		{"buy profit", Buy, 1.1000, 1.1050, 1000, 5.0},
		{"buy loss", Buy, 1.1000, 1.0950, 1000, -5.0},
		{"sell profit", Sell, 1.1000, 1.0950, 1000, 5.0},
		{"sell loss", Sell, 1.1000, 1.1050, 1000, -5.0},
		{"flat", Buy, 1.1000, 1.1000, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := New("EUR/USD", tt.dir, tt.entry, 0, 0, tt.size, "1h", 80)
			got := pos.PnLAt(tt.exit)
			if !floatEquals(got, tt.want, 1e-9) {
				t.Errorf("PnLAt(%.4f) = %.4f, want %.4f", tt.exit, got, tt.want)
			}
		})
	}
}

// ============================================================================
// TEST: Exit evaluation, stop loss checked first
// ============================================================================

func TestEvaluateClose_Buy(t *testing.T) {
	pos := New("EUR/USD", Buy, 1.1000, 1.0950, 1.1100, 1000, "1h", 80)

	tests := []struct {
		name    string
		price   float64
		reason  CloseReason
		wantHit bool
	}{
		{"below stop loss", 1.0949, CloseStopLoss, true},
		{"at stop loss", 1.0950, CloseStopLoss, true},
		{"between levels", 1.1050, "", false},
		{"at take profit", 1.1100, CloseTakeProfit, true},
		{"above take profit", 1.1150, CloseTakeProfit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := pos.EvaluateClose(tt.price)
			if hit != tt.wantHit {
				t.Fatalf("EvaluateClose(%.4f) hit = %v, want %v", tt.price, hit, tt.wantHit)
			}
			if reason != tt.reason {
				t.Errorf("EvaluateClose(%.4f) reason = %s, want %s", tt.price, reason, tt.reason)
			}
		})
	}
}

func TestEvaluateClose_Sell(t *testing.T) {
	pos := New("EUR/USD", Sell, 1.1000, 1.1050, 1.0900, 1000, "1h", 80)

	tests := []struct {
		name    string
		price   float64
		reason  CloseReason
		wantHit bool
	}{
		{"above stop loss", 1.1051, CloseStopLoss, true},
		{"at stop loss", 1.1050, CloseStopLoss, true},
		{"between levels", 1.0950, "", false},
		{"at take profit", 1.0900, CloseTakeProfit, true},
		{"below take profit", 1.0850, CloseTakeProfit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := pos.EvaluateClose(tt.price)
			if hit != tt.wantHit {
				t.Fatalf("EvaluateClose(%.4f) hit = %v, want %v", tt.price, hit, tt.wantHit)
			}
			if reason != tt.reason {
				t.Errorf("EvaluateClose(%.4f) reason = %s, want %s", tt.price, reason, tt.reason)
			}
		})
	}
}

// Degenerate levels where stop loss and take profit collide: the stop loss
// wins on both sides.
func TestEvaluateClose_StopLossPriority(t *testing.T) {
	pos := New("EUR/USD", Buy, 1.1000, 1.1000, 1.1000, 1000, "1h", 80)

	reason, hit := pos.EvaluateClose(1.1000)
	if !hit {
		t.Fatal("Expected a close at the collided level")
	}
	if reason != CloseStopLoss {
		t.Errorf("Expected STOP_LOSS to win the tie, got %s", reason)
	}
}

func TestNew_StartsActive(t *testing.T) {
	pos := New("EUR/USD", Buy, 1.1000, 1.0950, 1.1100, 1000, "1h", 80)
	if pos.Status != StatusActive {
		t.Errorf("Expected new position to be ACTIVE, got %s", pos.Status)
	}
	if pos.ID == "" {
		t.Error("Expected a non-empty position ID")
	}
}
