package services

import (
	"fmt"
	"time"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/storage"
)

// StructureService owns the lifecycle of positions: appending normalized
// trades as new legs, archiving, and read models for the API.
type StructureService struct {
	store *storage.Store
}

func NewStructureService(store *storage.Store) *StructureService {
	return &StructureService{store: store}
}

// PositionView is a position enriched with its legs and a human-readable
// summary label for list screens.
type PositionView struct {
	models.Position
	Legs    []models.Leg       `json:"legs"`
	Summary processors.Summary `json:"summary"`
}

// AppendLegs attaches normalized trades to an existing position. Each trade
// becomes one leg plus one fill; sequence numbers continue from the
// position's current maximum. Legs and fills are written in two phases, so a
// fill-phase failure leaves the already-committed legs in place and is
// reported to the caller.
func (s *StructureService) AppendLegs(scope models.ClientScope, positionID string, trades []models.NormalizedTrade) (int, error) {
	if positionID == "" {
		return 0, fmt.Errorf("%w: position id is required", ErrNotFound)
	}
	pos, err := s.store.GetPosition(positionID, scope)
	if err != nil {
		return 0, fmt.Errorf("%w: looking up position %s: %v", ErrStorage, positionID, err)
	}
	if pos == nil {
		return 0, fmt.Errorf("position %s %w", positionID, ErrNotFound)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	legs := make([]models.Leg, len(trades))
	for i, t := range trades {
		legs[i] = models.Leg{
			PositionID: positionID,
			Side:       t.Side,
			OptionType: t.OptionType,
			Expiry:     t.Expiry,
			Strike:     t.Strike,
			Quantity:   t.Quantity,
			Price:      t.Price,
		}
	}
	firstSeq, err := s.store.AppendLegs(positionID, legs)
	if err != nil {
		return 0, fmt.Errorf("%w: appending legs to %s: %v", ErrStorage, positionID, err)
	}

	fills := make([]models.Fill, len(trades))
	for i, t := range trades {
		fills[i] = models.Fill{
			PositionID: positionID,
			LegSeq:     firstSeq + i,
			Timestamp:  t.Timestamp,
			Quantity:   t.Quantity,
			Price:      t.Price,
			OpenClose:  t.OpenClose,
			TradeID:    t.TradeID,
			OrderID:    t.OrderID,
			Fee:        t.Fee,
			Notes:      t.Notes,
		}
	}
	if err := s.store.InsertFills(fills); err != nil {
		// Legs are already committed; surface the partial state instead of
		// pretending the append never happened.
		logger.L.Error("fills failed after legs committed", "positionID", positionID, "firstSeq", firstSeq, "error", err)
		return len(legs), fmt.Errorf("%w: legs %d..%d committed but fills failed: %v", ErrStorage, firstSeq, firstSeq+len(legs)-1, err)
	}

	logger.L.Info("appended legs", "positionID", positionID, "count", len(legs), "firstSeq", firstSeq)
	return len(legs), nil
}

// ArchivePosition soft-deletes a position, recording when and by whom.
// Archived positions drop out of list queries but keep their legs and fills.
func (s *StructureService) ArchivePosition(scope models.ClientScope, id, actor string) error {
	if id == "" {
		return fmt.Errorf("%w: position id is required", ErrNotFound)
	}
	pos, err := s.store.GetPosition(id, scope)
	if err != nil {
		return fmt.Errorf("%w: looking up position %s: %v", ErrStorage, id, err)
	}
	if pos == nil {
		return fmt.Errorf("position %s %w", id, ErrNotFound)
	}
	archivedAt := time.Now().UTC().Format(time.RFC3339)
	if err := s.store.MarkPositionArchived(id, archivedAt, actor); err != nil {
		return fmt.Errorf("%w: archiving position %s: %v", ErrStorage, id, err)
	}
	logger.L.Info("archived position", "positionID", id, "actor", actor)
	return nil
}

// GetPosition returns one position with legs and summary, or ErrNotFound.
func (s *StructureService) GetPosition(scope models.ClientScope, id string) (*PositionView, error) {
	pos, err := s.store.GetPosition(id, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up position %s: %v", ErrStorage, id, err)
	}
	if pos == nil {
		return nil, fmt.Errorf("position %s %w", id, ErrNotFound)
	}
	view, err := s.buildView(*pos)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListPositions returns the caller's non-archived positions with legs and
// summary labels.
func (s *StructureService) ListPositions(scope models.ClientScope) ([]PositionView, error) {
	positions, err := s.store.ListPositions(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: listing positions: %v", ErrStorage, err)
	}
	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		view, err := s.buildView(pos)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *StructureService) buildView(pos models.Position) (PositionView, error) {
	legs, err := s.store.LegsForPosition(pos.ID)
	if err != nil {
		return PositionView{}, fmt.Errorf("%w: loading legs for %s: %v", ErrStorage, pos.ID, err)
	}
	return PositionView{
		Position: pos,
		Legs:     legs,
		Summary:  processors.Summarize(pos.Ticker, legs),
	}, nil
}
