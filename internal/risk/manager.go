// Package risk holds the pure risk checks consulted before opening positions.
package risk

// DailyLossLimitReached reports whether trading must halt for the rest of the
// day: cumulative loss has reached the configured percentage of the day's
// starting balance. The boundary counts as reached.
func DailyLossLimitReached(loss, startBalance, limitPercent float64) bool {
	if startBalance <= 0 {
		return false
	}
	return loss >= startBalance*limitPercent/100
}

// CanOpenPosition reports whether another position may be opened under the
// concurrent-trade cap.
func CanOpenPosition(activeCount, maxConcurrentTrades int) bool {
	return activeCount < maxConcurrentTrades
}

// PositionSize returns the position size for a trade risking riskPercent of
// the account balance. Sizing is balance-proportional, not stop-distance
// based; the distance-based refinement is intentionally out of scope.
func PositionSize(accountBalance, riskPercent float64) float64 {
	if accountBalance <= 0 || riskPercent <= 0 {
		return 0
	}
	return accountBalance * riskPercent / 100
}
