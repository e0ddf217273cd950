package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TxnRow is one raw trade/fill record as produced by an exchange adapter.
// Keys are canonical lowercase snake_case where the adapter could map them,
// but rows arriving through the generic JSON import endpoint keep whatever
// names the upstream export used, so readers must tolerate naming variation.
type TxnRow map[string]any

// String returns the first non-empty string value among the given keys.
func (r TxnRow) String(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Number returns the first numeric value among the given keys.
// JSON decoding yields float64 for numbers; CSV adapters may leave
// numeric fields as strings, so those are parsed too.
func (r TxnRow) Number(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			s := strings.TrimSpace(n)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// Ref identifies a row for error messages: trade id, then order id,
// then instrument, whichever is present first.
func (r TxnRow) Ref() string {
	if v := r.String("trade_id", "tradeId", "tradeID", "tradeid"); v != "" {
		return "trade " + v
	}
	if v := r.String("order_id", "orderId", "orderID", "orderid"); v != "" {
		return "order " + v
	}
	if v := r.String("instrument", "instrument_name", "symbol"); v != "" {
		return "instrument " + v
	}
	return "unidentified row"
}
