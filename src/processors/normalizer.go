package processors

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/parsers/coincall"
	"github.com/username/optifolio/src/parsers/deribit"
	"github.com/username/optifolio/src/utils"
)

// ErrValidation marks a raw row that is missing a required field or carries
// an unusable value. Callers branch on it with errors.Is.
var ErrValidation = errors.New("validation failed")

// NormalizeBatch validates and converts raw rows into canonical trades.
// The batch is all-or-nothing: the first row that fails validation aborts
// the whole batch, identified by trade id, order id or instrument.
func NormalizeBatch(rows []models.TxnRow, exchange string) ([]models.NormalizedTrade, error) {
	trades := make([]models.NormalizedTrade, 0, len(rows))
	for _, row := range rows {
		trade, err := NormalizeRow(row, exchange)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// NormalizeRow converts one raw row. Required fields (quantity, price, side,
// expiry, strike, option type) that cannot be resolved from the row or the
// instrument symbol are hard validation failures.
func NormalizeRow(row models.TxnRow, exchange string) (models.NormalizedTrade, error) {
	var trade models.NormalizedTrade

	quantity, ok := row.Number("amount", "quantity", "size")
	if !ok {
		return trade, rejectRow(row, "missing or non-numeric quantity")
	}
	if quantity == 0 {
		return trade, rejectRow(row, "zero quantity")
	}
	trade.Quantity = math.Abs(quantity)

	price, ok := row.Number("price")
	if !ok {
		return trade, rejectRow(row, "missing or non-numeric price")
	}
	trade.Price = price

	side, ok := normalizeSide(row.String("side"))
	if !ok {
		return trade, rejectRow(row, fmt.Sprintf("unrecognized side %q", row.String("side")))
	}
	trade.Side = side

	instrument := row.String("instrument", "instrument_name", "symbol")
	parsed, parsedOK := parseInstrument(instrument, exchange)

	expiry, ok := resolveExpiry(row, parsed, parsedOK)
	if !ok {
		return trade, rejectRow(row, "missing expiry")
	}
	trade.Expiry = expiry

	strike, strikeOK := row.Number("strike")
	if !strikeOK && parsedOK {
		strike, strikeOK = parsed.Strike, true
	}
	if !strikeOK || strike <= 0 {
		return trade, rejectRow(row, "missing strike")
	}
	trade.Strike = strike

	optType, ok := normalizeOptionType(row.String("option_type", "type"))
	if !ok && parsedOK {
		optType, ok = parsed.OptionType, true
	}
	if !ok {
		return trade, rejectRow(row, "missing option type")
	}
	trade.OptionType = optType

	trade.Timestamp = resolveTimestamp(row)
	trade.OpenClose = normalizeOpenClose(row.String("open_close", "direction", "position"))
	trade.TradeID = ExtractID(row, "trade")
	trade.OrderID = ExtractID(row, "order")
	if fee, ok := row.Number("fee"); ok {
		trade.Fee = &fee
	}
	trade.Notes = row.String("notes", "info")

	return trade, nil
}

func rejectRow(row models.TxnRow, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, row.Ref(), reason)
}

func normalizeSide(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "b" || strings.HasPrefix(s, "buy"):
		return "buy", true
	case s == "s" || strings.HasPrefix(s, "sell"):
		return "sell", true
	default:
		return "", false
	}
}

func normalizeOptionType(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "c", "call":
		return "call", true
	case "p", "put":
		return "put", true
	default:
		return "", false
	}
}

func normalizeOpenClose(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "open"):
		return "open"
	case strings.HasPrefix(s, "close"):
		return "close"
	default:
		return ""
	}
}

// parsedInstrument is the exchange-agnostic view of an option symbol.
type parsedInstrument struct {
	Ticker     string
	Expiry     string
	Strike     float64
	OptionType string
}

// parseInstrument delegates to the adapter that understands the exchange's
// symbol format. Unknown exchanges try both.
func parseInstrument(symbol, exchange string) (parsedInstrument, bool) {
	if symbol == "" {
		return parsedInstrument{}, false
	}
	switch exchange {
	case "deribit":
		if in, err := deribit.ParseInstrument(symbol); err == nil {
			return parsedInstrument(in), true
		}
	case "coincall":
		if in, err := coincall.ParseInstrument(symbol); err == nil {
			return parsedInstrument(in), true
		}
	default:
		if in, err := deribit.ParseInstrument(symbol); err == nil {
			return parsedInstrument(in), true
		}
		if in, err := coincall.ParseInstrument(symbol); err == nil {
			return parsedInstrument(in), true
		}
	}
	return parsedInstrument{}, false
}

// resolveExpiry prefers the row's explicit expiry field over the instrument
// symbol. Date-prefixed strings are truncated to their first 10 characters.
func resolveExpiry(row models.TxnRow, parsed parsedInstrument, parsedOK bool) (string, bool) {
	if raw := row.String("expiry", "expiration", "expiry_date"); raw != "" {
		if d, ok := utils.ParseDateOnly(raw); ok {
			return d, true
		}
	}
	if parsedOK && parsed.Expiry != "" {
		return parsed.Expiry, true
	}
	return "", false
}

// RowExpiry resolves a date-only expiry from a raw row, falling back to the
// instrument symbol. The expiry backfiller uses it on rows that may not
// survive full normalization.
func RowExpiry(row models.TxnRow) (string, bool) {
	symbol := row.String("instrument", "instrument_name", "symbol")
	parsed, parsedOK := parseInstrument(symbol, row.String("exchange"))
	return resolveExpiry(row, parsed, parsedOK)
}

// RowStrike resolves a positive strike from the row, falling back to the
// instrument symbol.
func RowStrike(row models.TxnRow) (float64, bool) {
	if strike, ok := row.Number("strike"); ok && strike > 0 {
		return strike, true
	}
	symbol := row.String("instrument", "instrument_name", "symbol")
	if parsed, ok := parseInstrument(symbol, row.String("exchange")); ok && parsed.Strike > 0 {
		return parsed.Strike, true
	}
	return 0, false
}

// RowOptionType resolves "call" or "put" from the row, falling back to the
// instrument symbol.
func RowOptionType(row models.TxnRow) (string, bool) {
	if t, ok := normalizeOptionType(row.String("option_type", "type")); ok {
		return t, true
	}
	symbol := row.String("instrument", "instrument_name", "symbol")
	if parsed, ok := parseInstrument(symbol, row.String("exchange")); ok && parsed.OptionType != "" {
		return parsed.OptionType, true
	}
	return "", false
}

// resolveTimestamp parses the row timestamp to RFC3339; unparseable values
// pass through unchanged, absent values default to now.
func resolveTimestamp(row models.TxnRow) string {
	raw := row.String("timestamp", "time", "date")
	if raw == "" {
		return time.Now().UTC().Format(time.RFC3339)
	}
	if ts, ok := utils.ParseTimestamp(raw); ok {
		return ts
	}
	return raw
}
