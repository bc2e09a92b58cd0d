// Package util contains misc internal utilities.
package util

// GetBit returns the value of a given bit in a word
func GetBit(w uint64, bitIndex uint) bool {
	return w&(1<<bitIndex) != 0
}

// Limiter describes an allowed range.  The zero value allows everything.
type Limiter struct {
	Min float64 `yaml:"Min" json:"min"`
	Max float64 `yaml:"Max" json:"max"`
}

// Check returns true if the value is within the limits.
// a Limiter with Min == Max imposes no limit.
func (l Limiter) Check(f float64) bool {
	if l.Min == l.Max {
		return true
	}
	return f >= l.Min && f <= l.Max
}
