package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/username/optifolio/src/models"
)

// ExtractID pulls a trade or order identifier out of an arbitrarily-shaped
// row. kind is "trade" or "order". Exact-name variants are tried first, then
// every key is compared with punctuation stripped and case folded, so
// "Trade_ID", "tradeid" and "TRADE-ID" all resolve to the same field.
// Returns "" when nothing matches.
func ExtractID(row models.TxnRow, kind string) string {
	exact := []string{kind + "_id", kind + "Id", kind + "ID", kind + "id"}
	for _, key := range exact {
		if v, ok := row[key]; ok {
			if s := idValue(v); s != "" {
				return s
			}
		}
	}

	want := kind + "id"
	for key, v := range row {
		if normalizeKey(key) != want {
			continue
		}
		if s := idValue(v); s != "" {
			return s
		}
	}
	return ""
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r >= 'A' && r <= 'Z' {
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

func idValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		r := models.TxnRow{"v": v}
		return r.String("v")
	}
}

// deliverySignatureParts, in signature order. Absent fields are skipped rather
// than encoded as empty segments so that the same logical event hashes the
// same regardless of which optional columns the export carried.
var deliverySignatureParts = []struct {
	keys []string
	fold func(string) string
}{
	{[]string{"instrument", "instrument_name", "symbol"}, strings.ToUpper},
	{[]string{"timestamp", "time", "date"}, nil},
	{[]string{"side"}, strings.ToLower},
	{[]string{"action"}, strings.ToLower},
	{[]string{"amount", "quantity", "size"}, nil},
	{[]string{"price"}, nil},
	{[]string{"exchange"}, strings.ToLower},
}

// IsDelivery reports whether a row describes a settlement/delivery event.
// Those are generated by the exchange without a native trade id.
func IsDelivery(row models.TxnRow) bool {
	for _, key := range []string{"type", "delivery_type", "action"} {
		if strings.EqualFold(row.String(key), "delivery") {
			return true
		}
	}
	return false
}

// DeliveryID fabricates a stable identifier for a delivery event. If the
// exchange assigned a delivery id, that wins; otherwise a deterministic hash
// over the row's signature fields is used. Returns "" when the row has no
// usable signature at all.
func DeliveryID(row models.TxnRow) string {
	if !IsDelivery(row) {
		return ""
	}

	if id := row.String("delivery_id", "deliveryId", "deliveryID"); id != "" {
		return "D" + id
	}

	var parts []string
	for _, p := range deliverySignatureParts {
		v := row.String(p.keys...)
		if v == "" {
			continue
		}
		if p.fold != nil {
			v = p.fold(v)
		}
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return ""
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "D" + hex.EncodeToString(sum[:])[:16]
}

// ResolveTradeID applies the identifier fallback chain used by both the
// leg/fill path and the unprocessed archive: extracted trade id, synthetic
// delivery id, then order id.
func ResolveTradeID(row models.TxnRow) string {
	if id := ExtractID(row, "trade"); id != "" {
		return id
	}
	if id := DeliveryID(row); id != "" {
		return id
	}
	return ExtractID(row, "order")
}
