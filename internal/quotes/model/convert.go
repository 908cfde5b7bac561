package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/segmentio/encoding/json"
)

var errNotFinite = errors.New("is not a finite number")

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, errors.New("overflows int64")
		}
		return int64(n), nil
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("is not an integer: %s", n)
		}
		return i, nil
	case float64:
		// 上游用 float 表示的整数（例如 1000.0）可以接受，带小数不行
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errNotFinite
		}
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("is not an integer: %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("has type %T, want integer", v)
	}
}

func asFloat(v any) (float64, error) {
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int64:
		x = float64(n)
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, fmt.Errorf("is not a number: %s", n)
		}
		x = f
	default:
		return 0, fmt.Errorf("has type %T, want number", v)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, errNotFinite
	}
	return x, nil
}
