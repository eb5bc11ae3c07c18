package tournamentdomain

import "math"

// AddAmounts adds two non-negative amounts. ok is false when the sum does
// not fit in an int64.
func AddAmounts(a, b int64) (sum int64, ok bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// MulAmount multiplies a non-negative amount by a non-negative count. ok is
// false when the product does not fit in an int64.
func MulAmount(amount, n int64) (product int64, ok bool) {
	if amount < 0 || n < 0 {
		return 0, false
	}
	if amount == 0 || n == 0 {
		return 0, true
	}
	if amount > math.MaxInt64/n {
		return 0, false
	}
	return amount * n, true
}
