package services

import (
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/storage"
)

const deribitCSV = `Instrument,Side,Amount,Price,Fee,Date,Trade ID,Order ID,Position
BTC-27DEC24-100000-C,buy,2,0.0520,0.0001,2024-11-01 09:30:00,t-100,o-100,open
`

func newImportService(store *storage.Store) *ImportService {
	return NewImportService(store,
		NewTxLogService(store),
		NewStructureService(store),
		&LogEmailService{},
		cache.New(time.Minute, time.Minute))
}

func TestProcessUploadIntoPosition(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)
	seedPosition(t, store, "p1", "alpha")

	result, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsParsed)
	assert.Equal(t, 1, result.LogsWritten)
	assert.Zero(t, result.LogsSkipped)
	assert.Equal(t, 1, result.LegsAppended)
	assert.Zero(t, result.Unprocessed)

	legs, err := store.LegsForPosition("p1")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, 1, legs[0].Seq)
	assert.Equal(t, "buy", legs[0].Side)
	assert.Equal(t, "call", legs[0].OptionType)
	assert.Equal(t, "2024-12-27", legs[0].Expiry)
	assert.Equal(t, float64(100000), legs[0].Strike)
	assert.Equal(t, float64(2), legs[0].Quantity)

	fills, err := store.FillsByTradeIDs([]string{"t-100"})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "p1", fills[0].PositionID)
	assert.Equal(t, 1, fills[0].LegSeq)
	assert.Equal(t, "o-100", fills[0].OrderID)
	assert.Equal(t, "open", fills[0].OpenClose)
}

func TestProcessUploadValidationFailureWritesNoLogs(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)
	seedPosition(t, store, "p1", "alpha")

	badCSV := `Instrument,Side,Amount,Price,Date,Trade ID
BTC-27DEC24-100000-C,hold,2,0.05,2024-11-01 09:30:00,t-900
`
	_, err := svc.ProcessUpload(alphaScope(), strings.NewReader(badCSV), "deribit", "p1")
	require.ErrorIs(t, err, processors.ErrValidation)

	// A rejected batch must leave no audit entries behind, or the corrected
	// re-upload would be deduped away.
	known, err := store.ExistingLogTradeIDs([]string{"t-900"})
	require.NoError(t, err)
	assert.False(t, known["t-900"])

	goodCSV := strings.Replace(badCSV, "hold", "buy", 1)
	result, err := svc.ProcessUpload(alphaScope(), strings.NewReader(goodCSV), "deribit", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.LogsWritten)
	assert.Equal(t, 1, result.LegsAppended)
}

func TestProcessUploadDeduplicatesOnReupload(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	first, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.LogsWritten)

	second, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "")
	require.NoError(t, err)
	assert.Zero(t, second.LogsWritten)
	assert.Equal(t, 1, second.LogsSkipped)
}

func TestProcessUploadWithoutPositionArchives(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	result, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "")
	require.NoError(t, err)
	assert.Zero(t, result.LegsAppended)
	assert.Equal(t, 1, result.Unprocessed)

	queue, err := svc.ListUnprocessed(alphaScope())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.NotNil(t, queue[0].TradeID)
	assert.Equal(t, "t-100", *queue[0].TradeID)
	require.NotNil(t, queue[0].Expiry)
	assert.Equal(t, "2024-12-27", *queue[0].Expiry)
	require.NotNil(t, queue[0].Strike)
	assert.Equal(t, float64(100000), *queue[0].Strike)
	require.NotNil(t, queue[0].OptionType)
	assert.Equal(t, "call", *queue[0].OptionType)
	require.NotNil(t, queue[0].Price)
	assert.Equal(t, 0.052, *queue[0].Price)
}

func TestProcessUploadRejections(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	_, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "kraken", "")
	assert.ErrorIs(t, err, ErrParsingFailed)

	_, err = svc.ProcessUpload(alphaScope(), strings.NewReader("Instrument,Side\n"), "deribit", "")
	assert.ErrorIs(t, err, ErrParsingFailed)

	_, err = svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestImportResult(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	_, found := svc.LatestImportResult(alphaScope())
	assert.False(t, found)

	want, err := svc.ProcessUpload(alphaScope(), strings.NewReader(deribitCSV), "deribit", "")
	require.NoError(t, err)

	got, found := svc.LatestImportResult(alphaScope())
	require.True(t, found)
	assert.Equal(t, want, got)

	// Cached per client.
	_, found = svc.LatestImportResult(models.ClientScope{ClientName: "beta"})
	assert.False(t, found)
}

func TestArchiveUnprocessedKeepsUnknownsNull(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	rows := []models.TxnRow{{"instrument": "BTC-PERPETUAL", "exchange": "deribit"}}
	count, err := svc.ArchiveUnprocessed(alphaScope(), rows, "deribit")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	queue, err := svc.ListUnprocessed(alphaScope())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Nil(t, queue[0].TradeID)
	assert.Nil(t, queue[0].Price)
	assert.Nil(t, queue[0].Quantity)
	assert.Nil(t, queue[0].Expiry)
	assert.Nil(t, queue[0].Strike)
	assert.Nil(t, queue[0].OptionType)
	require.NotNil(t, queue[0].Instrument)
	assert.Equal(t, "BTC-PERPETUAL", *queue[0].Instrument)
}

func TestImportBundleFullGraph(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	fee := 0.0001
	bundle := Bundle{
		Venue:   &models.Venue{Name: "Deribit", Kind: "crypto-options"},
		Program: &models.Program{Name: "BTC income"},
		Strategies: []models.Strategy{
			{Code: "VERT", Name: "Vertical spread"},
		},
		Position: &models.Position{Ticker: "BTC", Venue: "deribit", Status: "open", OpenedAt: "2024-11-01T09:30:00Z"},
		Legs: []models.Leg{
			{Side: "buy", OptionType: "call", Expiry: "2024-12-27", Strike: 100000, Quantity: 1, Price: 0.05},
			{Side: "sell", OptionType: "call", Expiry: "2024-12-27", Strike: 110000, Quantity: 1, Price: 0.03},
		},
		Fills: []models.Fill{
			{LegSeq: 2, Timestamp: "2024-11-01T09:30:00Z", Quantity: 1, Price: 0.03, TradeID: "t-b2", Fee: &fee},
			{LegSeq: 1, Timestamp: "2024-11-01T09:30:00Z", Quantity: 1, Price: 0.05, TradeID: "t-b1"},
		},
		Resources: []models.ProgramResource{{Title: "Runbook", URL: "https://example.com/runbook"}},
		Playbooks: []models.ProgramPlaybook{{Title: "Roll rules", Body: "Roll at 21 DTE."}},
	}

	pos, err := svc.ImportBundle(alphaScope(), bundle)
	require.NoError(t, err)
	require.NotEmpty(t, pos.ID)
	assert.Equal(t, "alpha", pos.ClientName)

	view, err := NewStructureService(store).GetPosition(alphaScope(), pos.ID)
	require.NoError(t, err)
	require.Len(t, view.Legs, 2)
	assert.Equal(t, "BTC 27DEC24 VERT +100000C/-110000C", view.Summary.Label)

	// Fill leg references are bundle indexes remapped to stored sequences.
	fills, err := store.FillsByTradeIDs([]string{"t-b1", "t-b2"})
	require.NoError(t, err)
	seqByTrade := map[string]int{}
	for _, f := range fills {
		seqByTrade[f.TradeID] = f.LegSeq
	}
	assert.Equal(t, 1, seqByTrade["t-b1"])
	assert.Equal(t, 2, seqByTrade["t-b2"])

	programs, err := NewCatalogService(store).ListPrograms(alphaScope())
	require.NoError(t, err)
	require.Len(t, programs, 1)
	detail, err := NewCatalogService(store).GetProgramDetail(alphaScope(), programs[0].ID)
	require.NoError(t, err)
	assert.Len(t, detail.Strategies, 1)
	assert.Len(t, detail.Resources, 1)
	assert.Len(t, detail.Playbooks, 1)
}

func TestImportBundleScopesClientName(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	pos, err := svc.ImportBundle(alphaScope(), Bundle{
		Position: &models.Position{ClientName: "someone-else", Ticker: "ETH", Venue: "coincall", Status: "open"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alpha", pos.ClientName)

	admin, err := svc.ImportBundle(models.AdminScope, Bundle{
		Position: &models.Position{ClientName: "beta", Ticker: "ETH", Venue: "coincall", Status: "open"},
	})
	require.NoError(t, err)
	assert.Equal(t, "beta", admin.ClientName)
}

func TestImportBundleRejectsDanglingFills(t *testing.T) {
	store := newTestStore(t)
	svc := newImportService(store)

	_, err := svc.ImportBundle(alphaScope(), Bundle{
		Position: &models.Position{Ticker: "BTC", Venue: "deribit", Status: "open"},
		Fills:    []models.Fill{{LegSeq: 1, Quantity: 1, Price: 0.05}},
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.ImportBundle(alphaScope(), Bundle{
		Position: &models.Position{Ticker: "BTC", Venue: "deribit", Status: "open"},
		Legs:     []models.Leg{{Side: "buy", OptionType: "call", Expiry: "2024-12-27", Strike: 100000, Quantity: 1, Price: 0.05}},
		Fills:    []models.Fill{{LegSeq: 5, Quantity: 1, Price: 0.05}},
	})
	assert.ErrorIs(t, err, ErrConflict)
}
