// Package safemath provides overflow-checked arithmetic for ledger balances.
// Every balance mutation in the registry goes through these helpers so that
// an out-of-range result fails the call instead of wrapping.
package safemath

import (
	"errors"
	"math"
)

var ErrOverflow = errors.New("arithmetic overflow")

// Add returns a+b, or ErrOverflow if the sum does not fit in uint64.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b, or ErrOverflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// AddUint32 returns a+b, or ErrOverflow if the sum does not fit in uint32.
func AddUint32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// ToUint32 narrows v to uint32, or ErrOverflow if it does not fit.
func ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, ErrOverflow
	}
	return uint32(v), nil
}
