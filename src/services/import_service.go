package services

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/optifolio/src/config"
	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/parsers"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/storage"
)

// ImportService orchestrates the import pipeline: parse an exchange export,
// record the audit log, then either append the trades to a position or park
// them in the unprocessed queue.
type ImportService struct {
	store       *storage.Store
	txLogs      *TxLogService
	structures  *StructureService
	email       EmailService
	resultCache *cache.Cache
}

func NewImportService(store *storage.Store, txLogs *TxLogService, structures *StructureService, email EmailService, resultCache *cache.Cache) *ImportService {
	return &ImportService{
		store:       store,
		txLogs:      txLogs,
		structures:  structures,
		email:       email,
		resultCache: resultCache,
	}
}

// ImportResult summarizes one upload for the caller and the latest-result
// cache.
type ImportResult struct {
	Exchange     string `json:"exchange"`
	PositionID   string `json:"position_id,omitempty"`
	RowsParsed   int    `json:"rows_parsed"`
	LogsWritten  int    `json:"logs_written"`
	LogsSkipped  int    `json:"logs_skipped"`
	LegsAppended int    `json:"legs_appended"`
	Unprocessed  int    `json:"unprocessed"`
}

// ProcessUpload runs the pipeline for one uploaded export file. When
// positionID is set the rows must all normalize and land on that position;
// when it is blank the rows are archived for manual reconciliation instead.
func (s *ImportService) ProcessUpload(scope models.ClientScope, file io.Reader, exchange, positionID string) (*ImportResult, error) {
	parser, err := parsers.GetParser(exchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	rows, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: export file contains no rows", ErrParsingFailed)
	}

	// Validate the whole batch before the audit log is touched. A rejected
	// export must leave no trace, or its trade ids would dedupe away the
	// corrected re-upload.
	var trades []models.NormalizedTrade
	if positionID != "" {
		trades, err = processors.NormalizeBatch(rows, exchange)
		if err != nil {
			return nil, err
		}
	}

	inserted, skipped, err := s.txLogs.WriteLogs(logEntries(scope, exchange, rows))
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Exchange:    exchange,
		PositionID:  positionID,
		RowsParsed:  len(rows),
		LogsWritten: inserted,
		LogsSkipped: skipped,
	}

	if positionID != "" {
		appended, err := s.structures.AppendLegs(scope, positionID, trades)
		if err != nil {
			return nil, err
		}
		result.LegsAppended = appended
	} else {
		count, err := s.ArchiveUnprocessed(scope, rows, exchange)
		if err != nil {
			return nil, err
		}
		result.Unprocessed = count
		if count > 0 && config.Cfg.AlertRecipientEmail != "" {
			if err := s.email.SendUnprocessedAlert(config.Cfg.AlertRecipientEmail, scope.ClientName, exchange, count); err != nil {
				logger.L.Error("unprocessed alert failed", "error", err)
			}
		}
	}

	s.resultCache.Set(latestResultKey(scope), result, cache.DefaultExpiration)
	logger.L.Info("upload processed",
		"clientName", scope.ClientName, "exchange", exchange,
		"rows", result.RowsParsed, "legs", result.LegsAppended, "unprocessed", result.Unprocessed)
	return result, nil
}

// LatestImportResult returns the caller's most recent upload summary while
// it is still cached.
func (s *ImportService) LatestImportResult(scope models.ClientScope) (*ImportResult, bool) {
	v, found := s.resultCache.Get(latestResultKey(scope))
	if !found {
		return nil, false
	}
	result, ok := v.(*ImportResult)
	return result, ok
}

func latestResultKey(scope models.ClientScope) string {
	return "latest_import_" + scope.ClientName
}

// logEntries converts raw rows into audit log entries. Trade ids fall back
// through the delivery and order identifiers so deliveries without a trade
// id still deduplicate.
func logEntries(scope models.ClientScope, exchange string, rows []models.TxnRow) []models.TransactionLogEntry {
	entries := make([]models.TransactionLogEntry, 0, len(rows))
	for _, row := range rows {
		raw, _ := json.Marshal(row)
		quantity, _ := row.Number("amount", "quantity", "size")
		price, _ := row.Number("price")
		entries = append(entries, models.TransactionLogEntry{
			ClientName: scope.ClientName,
			Exchange:   exchange,
			TradeID:    processors.ResolveTradeID(row),
			OrderID:    processors.ExtractID(row, "order"),
			Instrument: row.String("instrument", "instrument_name", "symbol"),
			Side:       row.String("side"),
			Quantity:   quantity,
			Price:      price,
			Timestamp:  row.String("timestamp", "time", "date"),
			Raw:        string(raw),
		})
	}
	return entries
}

// ArchiveUnprocessed stores raw rows in the unprocessed queue. Fields are
// extracted best-effort; anything unresolvable stays NULL rather than a
// made-up zero.
func (s *ImportService) ArchiveUnprocessed(scope models.ClientScope, rows []models.TxnRow, exchange string) (int, error) {
	unprocessed := make([]models.UnprocessedTrade, 0, len(rows))
	for _, row := range rows {
		raw, _ := json.Marshal(row)
		u := models.UnprocessedTrade{
			ClientName: scope.ClientName,
			Exchange:   exchange,
			TradeID:    strPtr(processors.ResolveTradeID(row)),
			OrderID:    strPtr(processors.ExtractID(row, "order")),
			Instrument: strPtr(row.String("instrument", "instrument_name", "symbol")),
			Side:       strPtr(row.String("side")),
			Timestamp:  strPtr(row.String("timestamp", "time", "date")),
			OpenClose:  strPtr(row.String("open_close", "position", "info")),
			Raw:        string(raw),
		}
		if q, ok := row.Number("amount", "quantity", "size"); ok {
			u.Quantity = &q
		}
		if p, ok := row.Number("price"); ok {
			u.Price = &p
		}
		if fee, ok := row.Number("fee", "fees", "commission"); ok {
			u.Fee = &fee
		}
		if expiry, ok := processors.RowExpiry(row); ok {
			u.Expiry = &expiry
		}
		if strike, ok := processors.RowStrike(row); ok {
			u.Strike = &strike
		}
		if optType, ok := processors.RowOptionType(row); ok {
			u.OptionType = &optType
		}
		unprocessed = append(unprocessed, u)
	}
	if err := s.store.InsertUnprocessed(unprocessed); err != nil {
		return 0, fmt.Errorf("%w: archiving unprocessed trades: %v", ErrStorage, err)
	}
	return len(unprocessed), nil
}

// ListUnprocessed returns the caller's reconciliation queue.
func (s *ImportService) ListUnprocessed(scope models.ClientScope) ([]models.UnprocessedTrade, error) {
	rows, err := s.store.ListUnprocessed(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: listing unprocessed trades: %v", ErrStorage, err)
	}
	return rows, nil
}

// Bundle is a full import payload: reference data plus one position with
// its legs and fills, applied in dependency order.
type Bundle struct {
	Venue      *models.Venue            `json:"venue,omitempty"`
	Program    *models.Program          `json:"program,omitempty"`
	Strategies []models.Strategy        `json:"strategies,omitempty"`
	Position   *models.Position         `json:"position,omitempty"`
	Legs       []models.Leg             `json:"legs,omitempty"`
	Fills      []models.Fill            `json:"fills,omitempty"`
	Resources  []models.ProgramResource `json:"resources,omitempty"`
	Playbooks  []models.ProgramPlaybook `json:"playbooks,omitempty"`
}

// ImportBundle applies a bundle sequentially: venue, program, strategies,
// position, legs, then fills. Fill leg references are 1-based indexes into
// the bundle's leg slice and are remapped onto the sequences the store
// assigns. Non-admin callers can only create under their own client name.
func (s *ImportService) ImportBundle(scope models.ClientScope, bundle Bundle) (*models.Position, error) {
	if bundle.Venue != nil {
		if bundle.Venue.ID == "" {
			bundle.Venue.ID = uuid.NewString()
		}
		if err := s.store.UpsertVenue(bundle.Venue); err != nil {
			return nil, fmt.Errorf("%w: upserting venue: %v", ErrStorage, err)
		}
	}
	if bundle.Program != nil {
		if bundle.Program.ID == "" {
			bundle.Program.ID = uuid.NewString()
		}
		if bundle.Program.ClientName == "" || !scope.IsAdmin {
			bundle.Program.ClientName = scope.ClientName
		}
		if err := s.store.UpsertProgram(bundle.Program); err != nil {
			return nil, fmt.Errorf("%w: upserting program: %v", ErrStorage, err)
		}
	}
	for i := range bundle.Strategies {
		st := &bundle.Strategies[i]
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		if err := s.store.UpsertStrategy(st); err != nil {
			return nil, fmt.Errorf("%w: upserting strategy %s: %v", ErrStorage, st.Code, err)
		}
		if bundle.Program != nil {
			if err := s.store.LinkProgramStrategy(bundle.Program.ID, st.ID); err != nil {
				return nil, fmt.Errorf("%w: linking strategy %s: %v", ErrStorage, st.Code, err)
			}
		}
	}

	if bundle.Position == nil {
		if len(bundle.Legs) > 0 || len(bundle.Fills) > 0 {
			return nil, fmt.Errorf("%w: bundle has legs or fills but no position", ErrConflict)
		}
		return nil, s.importProgramExtras(bundle)
	}

	pos := bundle.Position
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	if pos.ClientName == "" || !scope.IsAdmin {
		pos.ClientName = scope.ClientName
	}
	if bundle.Program != nil && pos.ProgramID == "" {
		pos.ProgramID = bundle.Program.ID
	}
	if err := s.store.UpsertPosition(pos); err != nil {
		return nil, fmt.Errorf("%w: upserting position %s: %v", ErrStorage, pos.ID, err)
	}

	if len(bundle.Legs) > 0 {
		for i := range bundle.Legs {
			bundle.Legs[i].PositionID = pos.ID
		}
		firstSeq, err := s.store.AppendLegs(pos.ID, bundle.Legs)
		if err != nil {
			return nil, fmt.Errorf("%w: appending bundle legs: %v", ErrStorage, err)
		}
		for i := range bundle.Fills {
			f := &bundle.Fills[i]
			if f.LegSeq < 1 || f.LegSeq > len(bundle.Legs) {
				return nil, fmt.Errorf("%w: fill references leg %d of %d", ErrConflict, f.LegSeq, len(bundle.Legs))
			}
			f.PositionID = pos.ID
			f.LegSeq = firstSeq + f.LegSeq - 1
		}
		if err := s.store.InsertFills(bundle.Fills); err != nil {
			return nil, fmt.Errorf("%w: inserting bundle fills: %v", ErrStorage, err)
		}
	} else if len(bundle.Fills) > 0 {
		return nil, fmt.Errorf("%w: bundle has fills but no legs", ErrConflict)
	}

	if err := s.importProgramExtras(bundle); err != nil {
		return nil, err
	}
	logger.L.Info("bundle imported", "positionID", pos.ID, "legs", len(bundle.Legs), "fills", len(bundle.Fills))
	return pos, nil
}

func (s *ImportService) importProgramExtras(bundle Bundle) error {
	for i := range bundle.Resources {
		r := &bundle.Resources[i]
		if r.ProgramID == "" && bundle.Program != nil {
			r.ProgramID = bundle.Program.ID
		}
		if err := s.store.InsertProgramResource(r); err != nil {
			return fmt.Errorf("%w: inserting program resource: %v", ErrStorage, err)
		}
	}
	for i := range bundle.Playbooks {
		p := &bundle.Playbooks[i]
		if p.ProgramID == "" && bundle.Program != nil {
			p.ProgramID = bundle.Program.ID
		}
		if err := s.store.UpsertPlaybook(p); err != nil {
			return fmt.Errorf("%w: upserting playbook: %v", ErrStorage, err)
		}
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
