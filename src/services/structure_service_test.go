package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/models"
)

func TestAppendLegsAssignsSequencesAndFills(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)
	seedPosition(t, store, "p1", "alpha")

	count, err := svc.AppendLegs(alphaScope(), "p1", []models.NormalizedTrade{
		normalizedTrade("t-1", 100000),
		normalizedTrade("t-2", 110000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A later batch continues the sequence.
	count, err = svc.AppendLegs(alphaScope(), "p1", []models.NormalizedTrade{
		normalizedTrade("t-3", 120000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	legs, err := store.LegsForPosition("p1")
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{legs[0].Seq, legs[1].Seq, legs[2].Seq})

	// Each trade produced a fill on its leg.
	fills, err := store.FillsByTradeIDs([]string{"t-1", "t-2", "t-3"})
	require.NoError(t, err)
	require.Len(t, fills, 3)
	bySeq := map[string]int{}
	for _, f := range fills {
		bySeq[f.TradeID] = f.LegSeq
	}
	assert.Equal(t, map[string]int{"t-1": 1, "t-2": 2, "t-3": 3}, bySeq)
}

func TestAppendLegsUnknownPosition(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)

	_, err := svc.AppendLegs(alphaScope(), "missing", []models.NormalizedTrade{normalizedTrade("t-1", 100000)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendLegsForeignPositionLooksMissing(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)
	seedPosition(t, store, "p1", "beta")

	_, err := svc.AppendLegs(alphaScope(), "p1", []models.NormalizedTrade{normalizedTrade("t-1", 100000)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendLegsEmptyBatchIsNoop(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)
	seedPosition(t, store, "p1", "alpha")

	count, err := svc.AppendLegs(alphaScope(), "p1", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestArchivePosition(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)
	seedPosition(t, store, "p1", "alpha")

	require.NoError(t, svc.ArchivePosition(alphaScope(), "p1", "alpha"))

	views, err := svc.ListPositions(alphaScope())
	require.NoError(t, err)
	assert.Empty(t, views)

	assert.ErrorIs(t, svc.ArchivePosition(alphaScope(), "", "alpha"), ErrNotFound)
	assert.ErrorIs(t, svc.ArchivePosition(alphaScope(), "missing", "alpha"), ErrNotFound)
}

func TestListPositionsIncludesSummary(t *testing.T) {
	store := newTestStore(t)
	svc := NewStructureService(store)
	seedPosition(t, store, "p1", "alpha")

	_, err := svc.AppendLegs(alphaScope(), "p1", []models.NormalizedTrade{
		normalizedTrade("t-1", 100000),
		{Side: "sell", OptionType: "call", Expiry: "2024-12-27", Strike: 110000, Quantity: 2, Price: 0.02, Timestamp: "2024-11-01T09:30:05Z", TradeID: "t-2"},
	})
	require.NoError(t, err)

	views, err := svc.ListPositions(alphaScope())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "VERT", views[0].Summary.StrategyCode)
	assert.Equal(t, "BTC 27DEC24 VERT +100000C/-110000C", views[0].Summary.Label)
	assert.Len(t, views[0].Legs, 2)
}
