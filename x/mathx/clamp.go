package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OrDefault returns def when v is the zero value, else v clamped to [lo, hi].
// Config fields use it so that an omitted key picks the default.
func OrDefault[T constraints.Ordered](v, def, lo, hi T) T {
	var zero T
	if v == zero {
		return def
	}
	return Clamp(v, lo, hi)
}

// HalfSum averages two samples without widening: a/2 + b/2.
// Matches the mono downmix the codec expects (loses the shared LSB).
func HalfSum[T constraints.Signed](a, b T) T {
	return a/2 + b/2
}
