package steps

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrNotNumeric     = errors.New("value is not numeric")
	ErrUnknownOp      = errors.New("unknown operator")
)

var arithOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}

// toInt64 reports the integral value of v for every Go integer type.
// Unsigned values above math.MaxInt64 are not integral here and fall back
// to float64 arithmetic
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		if i, ok := toInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// applyOp combines two numbers. Integral operands use int64 arithmetic with
// truncating division, anything else is computed in float64
func applyOp(op string, left, right any) (any, error) {
	if l, ok := toInt64(left); ok {
		if r, ok := toInt64(right); ok {
			return applyInt(op, l, r)
		}
	}

	l, ok := toFloat64(left)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T)", ErrNotNumeric, left, left)
	}
	r, ok := toFloat64(right)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T)", ErrNotNumeric, right, right)
	}
	return applyFloat(op, l, r)
}

func applyInt(op string, l, r int64) (any, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return l / r, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
}

func applyFloat(op string, l, r float64) (any, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return l / r, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
}
