package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/models"
)

func deribitRow() models.TxnRow {
	return models.TxnRow{
		"instrument": "BTC-27DEC24-100000-C",
		"side":       "buy",
		"amount":     float64(2),
		"price":      0.0525,
		"timestamp":  "2024-11-01T09:30:00Z",
		"trade_id":   "t-100",
		"order_id":   "o-100",
		"exchange":   "deribit",
	}
}

func TestNormalizeRowFromInstrument(t *testing.T) {
	t.Parallel()

	trade, err := NormalizeRow(deribitRow(), "deribit")
	require.NoError(t, err)

	assert.Equal(t, "buy", trade.Side)
	assert.Equal(t, "call", trade.OptionType)
	assert.Equal(t, "2024-12-27", trade.Expiry)
	assert.Equal(t, 100000.0, trade.Strike)
	assert.Equal(t, 2.0, trade.Quantity)
	assert.Equal(t, 0.0525, trade.Price)
	assert.Equal(t, "2024-11-01T09:30:00Z", trade.Timestamp)
	assert.Equal(t, "t-100", trade.TradeID)
	assert.Equal(t, "o-100", trade.OrderID)
}

func TestNormalizeRowExplicitFieldsBeatInstrument(t *testing.T) {
	t.Parallel()

	row := deribitRow()
	row["expiry"] = "2025-01-31"
	row["strike"] = float64(95000)
	row["option_type"] = "P"

	trade, err := NormalizeRow(row, "deribit")
	require.NoError(t, err)

	assert.Equal(t, "2025-01-31", trade.Expiry)
	assert.Equal(t, 95000.0, trade.Strike)
	assert.Equal(t, "put", trade.OptionType)
}

func TestNormalizeRowSideAndOpenClose(t *testing.T) {
	t.Parallel()

	row := deribitRow()
	row["side"] = "SELL"
	row["open_close"] = "Close Position"

	trade, err := NormalizeRow(row, "deribit")
	require.NoError(t, err)

	assert.Equal(t, "sell", trade.Side)
	assert.Equal(t, "close", trade.OpenClose)
}

func TestNormalizeRowOpenCloseFromPositionColumn(t *testing.T) {
	t.Parallel()

	// Deribit exports carry open/close in a "Position" column.
	row := deribitRow()
	row["position"] = "open"

	trade, err := NormalizeRow(row, "deribit")
	require.NoError(t, err)
	assert.Equal(t, "open", trade.OpenClose)
}

func TestNormalizeRowNegativeQuantityBecomesMagnitude(t *testing.T) {
	t.Parallel()

	row := deribitRow()
	row["amount"] = float64(-3)

	trade, err := NormalizeRow(row, "deribit")
	require.NoError(t, err)
	assert.Equal(t, 3.0, trade.Quantity)
}

func TestNormalizeRowRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(models.TxnRow)
	}{
		{"zero_quantity", func(r models.TxnRow) { r["amount"] = float64(0) }},
		{"missing_quantity", func(r models.TxnRow) { delete(r, "amount") }},
		{"missing_price", func(r models.TxnRow) { delete(r, "price") }},
		{"bad_side", func(r models.TxnRow) { r["side"] = "hold" }},
		{"no_expiry_anywhere", func(r models.TxnRow) { r["instrument"] = "BTC-PERPETUAL" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := deribitRow()
			tc.mutate(row)
			_, err := NormalizeRow(row, "deribit")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNormalizeBatchAllOrNothing(t *testing.T) {
	t.Parallel()

	bad := deribitRow()
	bad["side"] = "hold"
	rows := []models.TxnRow{deribitRow(), bad, deribitRow()}

	trades, err := NormalizeBatch(rows, "deribit")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, trades)
}

func TestNormalizeBatchHappyPath(t *testing.T) {
	t.Parallel()

	trades, err := NormalizeBatch([]models.TxnRow{deribitRow(), deribitRow()}, "deribit")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestRowExpiry(t *testing.T) {
	t.Parallel()

	expiry, ok := RowExpiry(deribitRow())
	require.True(t, ok)
	assert.Equal(t, "2024-12-27", expiry)

	row := models.TxnRow{"expiry": "2025-03-28T08:00:00Z"}
	expiry, ok = RowExpiry(row)
	require.True(t, ok)
	assert.Equal(t, "2025-03-28", expiry)

	_, ok = RowExpiry(models.TxnRow{"instrument": "BTC-PERPETUAL"})
	assert.False(t, ok)
}

func TestRowStrikeAndOptionType(t *testing.T) {
	t.Parallel()

	strike, ok := RowStrike(deribitRow())
	require.True(t, ok)
	assert.Equal(t, 100000.0, strike)

	optType, ok := RowOptionType(deribitRow())
	require.True(t, ok)
	assert.Equal(t, "call", optType)

	row := models.TxnRow{"strike": float64(95000), "option_type": "P"}
	strike, ok = RowStrike(row)
	require.True(t, ok)
	assert.Equal(t, 95000.0, strike)
	optType, ok = RowOptionType(row)
	require.True(t, ok)
	assert.Equal(t, "put", optType)

	perp := models.TxnRow{"instrument": "BTC-PERPETUAL", "exchange": "deribit"}
	_, ok = RowStrike(perp)
	assert.False(t, ok)
	_, ok = RowOptionType(perp)
	assert.False(t, ok)
}
