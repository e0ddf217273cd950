package coincall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrument(t *testing.T) {
	t.Parallel()

	in, err := ParseInstrument("BTCUSD-27DEC24-100000-C")
	require.NoError(t, err)
	assert.Equal(t, "BTC", in.Ticker)
	assert.Equal(t, "2024-12-27", in.Expiry)
	assert.Equal(t, 100000.0, in.Strike)
	assert.Equal(t, "call", in.OptionType)
}

func TestParseInstrumentQuoteSuffixes(t *testing.T) {
	t.Parallel()

	for symbol, ticker := range map[string]string{
		"ETHUSDT-31JAN25-3500-P": "ETH",
		"SOLUSDC-31JAN25-200-C":  "SOL",
		"BTCUSD-31JAN25-90000-P": "BTC",
	} {
		in, err := ParseInstrument(symbol)
		require.NoError(t, err, symbol)
		assert.Equal(t, ticker, in.Ticker, symbol)
	}
}

func TestParseBareArray(t *testing.T) {
	t.Parallel()

	data := `[
		{"symbol": "BTCUSD-27DEC24-100000-C", "tradeSide": 1, "qty": 2, "price": 0.0525,
		 "tradeId": "t-100", "orderId": "o-100", "tradeTime": 1730453400000, "fee": 0.0003}
	]`

	rows, err := NewParser().Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "coincall", row["exchange"])
	assert.Equal(t, "BTCUSD-27DEC24-100000-C", row["instrument"])
	assert.Equal(t, "buy", row["side"])
	assert.Equal(t, float64(2), row["amount"])
	assert.Equal(t, "t-100", row["trade_id"])
	assert.Equal(t, "o-100", row["order_id"])
	assert.Equal(t, "2024-11-01T09:30:00Z", row["timestamp"])
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	data := `{"code": 0, "data": {"list": [
		{"symbol": "ETHUSD-31JAN25-3500-P", "tradeSide": 2, "qty": 10, "price": 120.5}
	]}}`

	rows, err := NewParser().Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sell", rows[0]["side"])
}

func TestParseCarriesUnmappedFields(t *testing.T) {
	t.Parallel()

	data := `[{"symbol": "BTCUSD-27DEC24-100000-C", "tradeSide": 1, "indexPrice": 68250.5}]`

	rows, err := NewParser().Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 68250.5, rows[0]["indexPrice"])
}

func TestParseSecondEpochTimestamps(t *testing.T) {
	t.Parallel()

	data := `[{"symbol": "BTCUSD-27DEC24-100000-C", "tradeTime": 1730453400}]`

	rows, err := NewParser().Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-11-01T09:30:00Z", rows[0]["timestamp"])
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewParser().Parse(strings.NewReader("not json"))
	assert.Error(t, err)
}
