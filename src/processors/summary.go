package processors

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/username/optifolio/src/models"
)

// Summary is the compact display form of a position, derived entirely from
// its legs. Pure formatting: no storage access.
type Summary struct {
	Ticker       string   `json:"ticker"`
	ExpiryLabel  string   `json:"expiry_label"`
	StrategyCode string   `json:"strategy_code"`
	LegTokens    []string `json:"leg_tokens"`
	Label        string   `json:"label"`
}

// Summarize renders a position's legs into a Summary,
// e.g. "BTC 27DEC24 VERT +100000C/-110000C".
func Summarize(ticker string, legs []models.Leg) Summary {
	s := Summary{
		Ticker:       ticker,
		ExpiryLabel:  expiryLabel(legs),
		StrategyCode: StrategyCode(legs),
	}
	for _, leg := range legs {
		s.LegTokens = append(s.LegTokens, LegToken(leg))
	}

	var parts []string
	for _, p := range []string{s.Ticker, s.ExpiryLabel, s.StrategyCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(s.LegTokens) > 0 {
		parts = append(parts, strings.Join(s.LegTokens, "/"))
	}
	s.Label = strings.Join(parts, " ")
	return s
}

// LegToken renders one leg as e.g. "+100000C" (bought call at 100000) or
// "-95000P" (sold put at 95000).
func LegToken(leg models.Leg) string {
	sign := "+"
	if leg.Side == "sell" {
		sign = "-"
	}
	letter := "?"
	switch leg.OptionType {
	case "call":
		letter = "C"
	case "put":
		letter = "P"
	}
	return sign + strconv.FormatFloat(leg.Strike, 'f', -1, 64) + letter
}

// expiryLabel renders "27DEC24" for a single shared expiry, or the distinct
// expiries joined with "/" for diagonal/calendar structures.
func expiryLabel(legs []models.Leg) string {
	seen := make(map[string]bool)
	var expiries []string
	for _, leg := range legs {
		if leg.Expiry == "" || seen[leg.Expiry] {
			continue
		}
		seen[leg.Expiry] = true
		expiries = append(expiries, leg.Expiry)
	}
	// ISO dates sort chronologically; the display form "27DEC24" does not.
	sort.Strings(expiries)
	labels := make([]string, 0, len(expiries))
	for _, expiry := range expiries {
		labels = append(labels, formatExpiry(expiry))
	}
	return strings.Join(labels, "/")
}

func formatExpiry(expiry string) string {
	t, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return expiry
	}
	return strings.ToUpper(t.Format("02Jan06"))
}

// StrategyCode classifies a leg set into a short playbook code.
func StrategyCode(legs []models.Leg) string {
	if len(legs) == 0 {
		return ""
	}
	if len(legs) == 1 {
		return "SINGLE"
	}

	expiries := make(map[string]bool)
	strikes := make(map[float64]bool)
	types := make(map[string]bool)
	sides := make(map[string]bool)
	calls, puts := 0, 0
	for _, leg := range legs {
		expiries[leg.Expiry] = true
		strikes[leg.Strike] = true
		types[leg.OptionType] = true
		sides[leg.Side] = true
		if leg.OptionType == "call" {
			calls++
		} else if leg.OptionType == "put" {
			puts++
		}
	}

	if len(legs) == 2 {
		switch {
		case len(expiries) > 1 && len(types) == 1:
			return "CAL"
		case len(types) == 1 && len(strikes) == 2 && len(sides) == 2:
			return "VERT"
		case len(types) == 2 && len(strikes) == 1 && len(sides) == 1:
			return "STRADDLE"
		case len(types) == 2 && len(strikes) == 2 && len(sides) == 1:
			return "STRANGLE"
		}
	}
	if len(legs) == 4 && calls == 2 && puts == 2 && len(expiries) == 1 && len(sides) == 2 {
		return "IC"
	}
	return "CUSTOM"
}
