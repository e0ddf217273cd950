package services

import (
	"fmt"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/storage"
	"github.com/username/optifolio/src/utils"
)

// BackfillService repairs legs whose expiry was unknown at import time by
// re-reading exchange exports and keying them back to fills.
type BackfillService struct {
	store *storage.Store
}

func NewBackfillService(store *storage.Store) *BackfillService {
	return &BackfillService{store: store}
}

// BackfillExpiries maps raw rows to stored fills by trade id (preferred) or
// order id, and writes the resolved expiry onto the matched leg. Each
// (position, seq) pair is updated at most once per call. Returns
// (updated, skipped) where skipped counts fills that matched a row but
// whose leg was already covered earlier in the pass.
func (s *BackfillService) BackfillExpiries(rows []models.TxnRow) (int, int, error) {
	tradeExpiry := make(map[string]string)
	orderExpiry := make(map[string]string)
	for _, row := range rows {
		expiry, ok := processors.RowExpiry(row)
		if !ok {
			continue
		}
		if tid := processors.ExtractID(row, "trade"); tid != "" {
			if _, seen := tradeExpiry[tid]; !seen {
				tradeExpiry[tid] = expiry
			}
			continue
		}
		if oid := processors.ExtractID(row, "order"); oid != "" {
			if _, seen := orderExpiry[oid]; !seen {
				orderExpiry[oid] = expiry
			}
		}
	}

	tradeIDs := make([]string, 0, len(tradeExpiry))
	for id := range tradeExpiry {
		tradeIDs = append(tradeIDs, id)
	}
	orderIDs := make([]string, 0, len(orderExpiry))
	for id := range orderExpiry {
		orderIDs = append(orderIDs, id)
	}

	var fills []models.Fill
	for _, chunk := range utils.ChunkStrings(tradeIDs, idLookupChunkSize) {
		batch, err := s.store.FillsByTradeIDs(chunk)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: loading fills by trade id: %v", ErrStorage, err)
		}
		fills = append(fills, batch...)
	}
	for _, chunk := range utils.ChunkStrings(orderIDs, idLookupChunkSize) {
		batch, err := s.store.FillsByOrderIDs(chunk)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: loading fills by order id: %v", ErrStorage, err)
		}
		fills = append(fills, batch...)
	}

	updated, matches := 0, 0
	done := make(map[string]bool)
	for _, f := range fills {
		expiry := ""
		if f.TradeID != "" {
			expiry = tradeExpiry[f.TradeID]
		}
		if expiry == "" && f.OrderID != "" {
			expiry = orderExpiry[f.OrderID]
		}
		if expiry == "" {
			continue
		}
		matches++
		key := fmt.Sprintf("%s#%d", f.PositionID, f.LegSeq)
		if done[key] {
			continue
		}
		done[key] = true
		if err := s.store.UpdateLegExpiry(f.PositionID, f.LegSeq, expiry); err != nil {
			return updated, matches - updated, fmt.Errorf("%w: updating expiry for %s seq %d: %v", ErrStorage, f.PositionID, f.LegSeq, err)
		}
		updated++
	}

	logger.L.Info("expiry backfill finished", "updated", updated, "skipped", matches-updated)
	return updated, matches - updated, nil
}
