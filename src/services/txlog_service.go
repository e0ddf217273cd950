package services

import (
	"fmt"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/storage"
	"github.com/username/optifolio/src/utils"
)

// SQLite caps bound parameters per statement, so identifier lookups stay
// under 100 bindings and inserts are batched in groups of 500.
const (
	idLookupChunkSize = 99
	insertChunkSize   = 500
)

// TxLogService writes the append-only audit log of imported trades,
// skipping anything already recorded under the same trade or order id.
type TxLogService struct {
	store *storage.Store
}

func NewTxLogService(store *storage.Store) *TxLogService {
	return &TxLogService{store: store}
}

// WriteLogs persists entries that are not already in the log. An entry is a
// duplicate when its trade id or its order id was seen before, either in
// storage or earlier in the same batch. Returns (inserted, skipped).
func (s *TxLogService) WriteLogs(entries []models.TransactionLogEntry) (int, int, error) {
	if len(entries) == 0 {
		return 0, 0, nil
	}

	tradeIDs := make([]string, 0, len(entries))
	orderIDs := make([]string, 0, len(entries))
	seenTrade := make(map[string]bool)
	seenOrder := make(map[string]bool)
	for _, e := range entries {
		if e.TradeID != "" && !seenTrade[e.TradeID] {
			seenTrade[e.TradeID] = true
			tradeIDs = append(tradeIDs, e.TradeID)
		}
		if e.OrderID != "" && !seenOrder[e.OrderID] {
			seenOrder[e.OrderID] = true
			orderIDs = append(orderIDs, e.OrderID)
		}
	}

	knownTrade := make(map[string]bool)
	for _, chunk := range utils.ChunkStrings(tradeIDs, idLookupChunkSize) {
		existing, err := s.store.ExistingLogTradeIDs(chunk)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: checking existing trade ids: %v", ErrStorage, err)
		}
		for id := range existing {
			knownTrade[id] = true
		}
	}
	knownOrder := make(map[string]bool)
	for _, chunk := range utils.ChunkStrings(orderIDs, idLookupChunkSize) {
		existing, err := s.store.ExistingLogOrderIDs(chunk)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: checking existing order ids: %v", ErrStorage, err)
		}
		for id := range existing {
			knownOrder[id] = true
		}
	}

	fresh := make([]models.TransactionLogEntry, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if (e.TradeID != "" && knownTrade[e.TradeID]) || (e.OrderID != "" && knownOrder[e.OrderID]) {
			skipped++
			continue
		}
		// In-batch duplicates count as known from here on.
		if e.TradeID != "" {
			knownTrade[e.TradeID] = true
		}
		if e.OrderID != "" {
			knownOrder[e.OrderID] = true
		}
		fresh = append(fresh, e)
	}

	inserted := 0
	for start := 0; start < len(fresh); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(fresh) {
			end = len(fresh)
		}
		if err := s.store.InsertTransactionLogs(fresh[start:end]); err != nil {
			return inserted, skipped, fmt.Errorf("%w: inserting transaction logs: %v", ErrStorage, err)
		}
		inserted += end - start
	}

	logger.L.Info("transaction logs written", "inserted", inserted, "skipped", skipped)
	return inserted, skipped, nil
}
