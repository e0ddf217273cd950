package deribit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Instrument is the option contract encoded in a Deribit instrument name.
type Instrument struct {
	Ticker     string
	Expiry     string // YYYY-MM-DD
	Strike     float64
	OptionType string // "call" or "put"
}

// ParseInstrument decodes names like "BTC-27DEC24-100000-C".
// Decimal strikes use "d" as the separator ("XRP_USDC-27DEC24-2d6-P").
func ParseInstrument(name string) (Instrument, error) {
	parts := strings.Split(strings.TrimSpace(name), "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("deribit: not an option instrument: %q", name)
	}

	expiry, err := ParseExpiryToken(parts[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("deribit: bad expiry in %q: %w", name, err)
	}

	strikeStr := strings.ReplaceAll(parts[2], "d", ".")
	strike, err := strconv.ParseFloat(strikeStr, 64)
	if err != nil || strike <= 0 {
		return Instrument{}, fmt.Errorf("deribit: bad strike in %q", name)
	}

	var optType string
	switch strings.ToUpper(parts[3]) {
	case "C":
		optType = "call"
	case "P":
		optType = "put"
	default:
		return Instrument{}, fmt.Errorf("deribit: bad option type in %q", name)
	}

	return Instrument{
		Ticker:     parts[0],
		Expiry:     expiry,
		Strike:     strike,
		OptionType: optType,
	}, nil
}

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseExpiryToken decodes "27DEC24" to "2024-12-27".
func ParseExpiryToken(token string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if len(t) < 6 {
		return "", fmt.Errorf("expiry token too short: %q", token)
	}

	yearStr := t[len(t)-2:]
	monthStr := t[len(t)-5 : len(t)-2]
	dayStr := t[:len(t)-5]

	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("bad day in expiry token: %q", token)
	}
	month, ok := months[monthStr]
	if !ok {
		return "", fmt.Errorf("bad month in expiry token: %q", token)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", fmt.Errorf("bad year in expiry token: %q", token)
	}

	d := time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC)
	return d.Format("2006-01-02"), nil
}
