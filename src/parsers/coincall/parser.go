package coincall

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/username/optifolio/src/models"
)

// CoincallParser reads a Coincall trade-history JSON export: either a bare
// array of fill objects or the API envelope {"data": {"list": [...]}}.
type CoincallParser struct{}

func NewParser() *CoincallParser {
	return &CoincallParser{}
}

type exportEnvelope struct {
	Data struct {
		List []map[string]any `json:"list"`
	} `json:"data"`
}

func (p *CoincallParser) Parse(file io.Reader) ([]models.TxnRow, error) {
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("coincall parser: failed to read export: %w", err)
	}

	var objects []map[string]any
	if err := json.Unmarshal(body, &objects); err != nil {
		var envelope exportEnvelope
		if err2 := json.Unmarshal(body, &envelope); err2 != nil || envelope.Data.List == nil {
			return nil, fmt.Errorf("coincall parser: unrecognized export shape: %w", err)
		}
		objects = envelope.Data.List
	}

	rows := make([]models.TxnRow, 0, len(objects))
	for _, obj := range objects {
		row := models.TxnRow{"exchange": "coincall"}
		for key, value := range obj {
			canonical, transform := mapField(key)
			if canonical == "" {
				row[key] = value
				continue
			}
			if transform != nil {
				value = transform(value)
			}
			if value == nil {
				continue
			}
			row[canonical] = value
		}
		if len(row) > 1 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// mapField translates Coincall API field names to canonical TxnRow keys.
func mapField(key string) (string, func(any) any) {
	switch key {
	case "symbol", "symbolName":
		return "instrument", nil
	case "tradeSide", "side":
		return "side", sideName
	case "qty", "quantity", "size":
		return "amount", nil
	case "price", "tradePrice":
		return "price", nil
	case "fee":
		return "fee", nil
	case "tradeId":
		return "trade_id", nil
	case "orderId":
		return "order_id", nil
	case "tradeTime", "createTime":
		return "timestamp", epochToRFC3339
	case "tradeType":
		return "type", nil
	case "remark":
		return "notes", nil
	default:
		return "", nil
	}
}

// sideName translates Coincall's numeric side codes (1 buy, 2 sell).
func sideName(v any) any {
	switch s := v.(type) {
	case float64:
		if s == 1 {
			return "buy"
		}
		if s == 2 {
			return "sell"
		}
	case string:
		if s == "1" {
			return "buy"
		}
		if s == "2" {
			return "sell"
		}
		return s
	}
	return v
}

// epochToRFC3339 converts millisecond (or second) epoch timestamps.
func epochToRFC3339(v any) any {
	var ms int64
	switch t := v.(type) {
	case float64:
		ms = int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return v
		}
		ms = n
	default:
		return v
	}
	if ms == 0 {
		return nil
	}
	if ms < 1e12 { // seconds, not millis
		ms *= 1000
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
