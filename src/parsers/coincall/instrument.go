package coincall

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/username/optifolio/src/parsers/deribit"
)

// Instrument is the option contract encoded in a Coincall symbol.
type Instrument struct {
	Ticker     string
	Expiry     string // YYYY-MM-DD
	Strike     float64
	OptionType string // "call" or "put"
}

// quoteSuffixes are stripped from the symbol's first segment to recover the
// underlying ticker ("BTCUSD" -> "BTC").
var quoteSuffixes = []string{"USDT", "USDC", "USD"}

// ParseInstrument decodes symbols like "BTCUSD-27DEC24-100000-C".
// The expiry token shares Deribit's DDMONYY format.
func ParseInstrument(symbol string) (Instrument, error) {
	parts := strings.Split(strings.TrimSpace(symbol), "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("coincall: not an option symbol: %q", symbol)
	}

	ticker := strings.ToUpper(parts[0])
	for _, suffix := range quoteSuffixes {
		if len(ticker) > len(suffix) && strings.HasSuffix(ticker, suffix) {
			ticker = strings.TrimSuffix(ticker, suffix)
			break
		}
	}

	expiry, err := deribit.ParseExpiryToken(parts[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("coincall: bad expiry in %q: %w", symbol, err)
	}

	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return Instrument{}, fmt.Errorf("coincall: bad strike in %q", symbol)
	}

	var optType string
	switch strings.ToUpper(parts[3]) {
	case "C":
		optType = "call"
	case "P":
		optType = "put"
	default:
		return Instrument{}, fmt.Errorf("coincall: bad option type in %q", symbol)
	}

	return Instrument{Ticker: ticker, Expiry: expiry, Strike: strike, OptionType: optType}, nil
}
