package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/storage"
)

func seedLegWithFill(t *testing.T, store *storage.Store, positionID, tradeID, orderID string) int {
	t.Helper()
	firstSeq, err := store.AppendLegs(positionID, []models.Leg{
		{PositionID: positionID, Side: "buy", OptionType: "call", Strike: 100000, Quantity: 1, Price: 0.05},
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertFills([]models.Fill{
		{PositionID: positionID, LegSeq: firstSeq, Timestamp: "2024-11-01T09:30:00Z", Quantity: 1, Price: 0.05, TradeID: tradeID, OrderID: orderID},
	}))
	return firstSeq
}

func backfillRow(tradeID, orderID string) models.TxnRow {
	row := models.TxnRow{
		"instrument": "BTC-27DEC24-100000-C",
		"exchange":   "deribit",
	}
	if tradeID != "" {
		row["trade_id"] = tradeID
	}
	if orderID != "" {
		row["order_id"] = orderID
	}
	return row
}

func TestBackfillExpiriesByTradeID(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackfillService(store)
	seedPosition(t, store, "p1", "alpha")
	seedLegWithFill(t, store, "p1", "t-1", "o-1")

	updated, skipped, err := svc.BackfillExpiries([]models.TxnRow{backfillRow("t-1", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Zero(t, skipped)

	legs, err := store.LegsForPosition("p1")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-27", legs[0].Expiry)
}

func TestBackfillExpiriesByOrderIDFallback(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackfillService(store)
	seedPosition(t, store, "p1", "alpha")
	seedLegWithFill(t, store, "p1", "", "o-1")

	updated, _, err := svc.BackfillExpiries([]models.TxnRow{backfillRow("", "o-1")})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestBackfillExpiriesEachLegOnce(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackfillService(store)
	seedPosition(t, store, "p1", "alpha")

	// Two fills on the same leg, each matched by a row.
	firstSeq, err := store.AppendLegs("p1", []models.Leg{
		{PositionID: "p1", Side: "buy", OptionType: "call", Strike: 100000, Quantity: 2, Price: 0.05},
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertFills([]models.Fill{
		{PositionID: "p1", LegSeq: firstSeq, Timestamp: "2024-11-01T09:30:00Z", Quantity: 1, Price: 0.05, TradeID: "t-1"},
		{PositionID: "p1", LegSeq: firstSeq, Timestamp: "2024-11-01T09:31:00Z", Quantity: 1, Price: 0.05, TradeID: "t-2"},
	}))

	updated, skipped, err := svc.BackfillExpiries([]models.TxnRow{
		backfillRow("t-1", ""),
		backfillRow("t-2", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, skipped)
}

func TestBackfillExpiriesIgnoresUnmatchedAndUnparseable(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackfillService(store)
	seedPosition(t, store, "p1", "alpha")
	seedLegWithFill(t, store, "p1", "t-1", "")

	rows := []models.TxnRow{
		backfillRow("t-unknown", ""),
		{"instrument": "BTC-PERPETUAL", "exchange": "deribit", "trade_id": "t-1"},
	}
	updated, skipped, err := svc.BackfillExpiries(rows)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, skipped)
}

func TestBackfillExpiriesFirstOccurrenceWins(t *testing.T) {
	store := newTestStore(t)
	svc := NewBackfillService(store)
	seedPosition(t, store, "p1", "alpha")
	seedLegWithFill(t, store, "p1", "t-1", "")

	// Two rows with the same trade id but different expiries: first kept.
	later := backfillRow("t-1", "")
	later["instrument"] = "BTC-31JAN25-100000-C"
	updated, _, err := svc.BackfillExpiries([]models.TxnRow{backfillRow("t-1", ""), later})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	legs, err := store.LegsForPosition("p1")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-27", legs[0].Expiry)
}
