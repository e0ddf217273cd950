package deribit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrument(t *testing.T) {
	t.Parallel()

	in, err := ParseInstrument("BTC-27DEC24-100000-C")
	require.NoError(t, err)
	assert.Equal(t, "BTC", in.Ticker)
	assert.Equal(t, "2024-12-27", in.Expiry)
	assert.Equal(t, 100000.0, in.Strike)
	assert.Equal(t, "call", in.OptionType)
}

func TestParseInstrumentDecimalStrike(t *testing.T) {
	t.Parallel()

	in, err := ParseInstrument("XRP_USDC-27DEC24-2d6-P")
	require.NoError(t, err)
	assert.Equal(t, 2.6, in.Strike)
	assert.Equal(t, "put", in.OptionType)
}

func TestParseInstrumentRejectsNonOptions(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"BTC-PERPETUAL", "BTC-27DEC24-100000-X", "BTC-99XYZ24-100000-C", ""} {
		_, err := ParseInstrument(name)
		assert.Error(t, err, "expected %q to be rejected", name)
	}
}

func TestParseExpiryToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"27DEC24": "2024-12-27",
		"3JAN25":  "2025-01-03",
		"31jan25": "2025-01-31",
	}
	for token, want := range cases {
		got, err := ParseExpiryToken(token)
		require.NoError(t, err, token)
		assert.Equal(t, want, got)
	}

	_, err := ParseExpiryToken("DEC24")
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		`Instrument,Side,Amount,Price,Fee,Date,Trade ID,Order ID,Info`,
		`BTC-27DEC24-100000-C,buy,2.0,0.0525,0.0003,2024-11-01 09:30:00,t-100,o-100,`,
		`BTC-27DEC24-110000-C,sell,2.0,0.0210,0.0003,2024-11-01 09:30:05,t-101,o-101,spread leg`,
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "deribit", first["exchange"])
	assert.Equal(t, "BTC-27DEC24-100000-C", first["instrument"])
	assert.Equal(t, "buy", first["side"])
	assert.Equal(t, 2.0, first["amount"])
	assert.Equal(t, 0.0525, first["price"])
	assert.Equal(t, 0.0003, first["fee"])
	assert.Equal(t, "2024-11-01 09:30:00", first["timestamp"])
	assert.Equal(t, "t-100", first["trade_id"])
	assert.Equal(t, "o-100", first["order_id"])

	assert.Equal(t, "spread leg", rows[1]["notes"])
}

func TestParseCSVSkipsBlankRowsAndUnknownColumns(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		`Instrument,Side,Amount,Mark Price`,
		`,,,`,
		`BTC-27DEC24-100000-C,buy,1,0.05`,
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// Unknown columns are carried through snake_cased.
	assert.Equal(t, "0.05", rows[0]["mark_price"])
}

func TestParseCSVMissingHeader(t *testing.T) {
	t.Parallel()

	_, err := NewParser().Parse(strings.NewReader(""))
	assert.Error(t, err)
}
