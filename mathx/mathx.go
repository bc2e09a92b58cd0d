// Package mathx provides small numerical helpers shared by the timing code.
package mathx

import "math"

// Round rounds a float to the nearest "unit" (0.1 for tenth, 2 for an even
// number of nanoseconds, and so on).  Halfway cases go to the even multiple.
func Round(x, unit float64) float64 {
	return math.RoundToEven(x/unit) * unit
}

// Steps returns the number of whole units nearest to x, halfway cases to even.
func Steps(x, unit float64) int64 {
	return int64(math.RoundToEven(x / unit))
}
