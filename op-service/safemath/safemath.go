package safemath

import "golang.org/x/exp/constraints"

// SafeAdd adds two unsigned integers of the same type, and reports whether it overflowed.
func SafeAdd[V constraints.Unsigned](a, b V) (out V, overflow bool) {
	out = a + b
	overflow = out < a
	return
}

// SafeSub subtracts two unsigned integers of the same type, and reports whether it underflowed.
func SafeSub[V constraints.Unsigned](a, b V) (out V, underflow bool) {
	out = a - b
	underflow = out > a
	return
}

// SaturatingSub floors the difference at zero.
func SaturatingSub[V constraints.Unsigned](a, b V) V {
	out, underflow := SafeSub(a, b)
	if underflow {
		return 0
	}
	return out
}

// SafeMul multiplies two unsigned integers of the same type, and reports whether it overflowed.
func SafeMul[V constraints.Unsigned](a, b V) (out V, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	out = a * b
	overflow = out/b != a
	return
}
