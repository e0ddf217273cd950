package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/storage"
)

// LinkService keeps linked-position sets symmetric: if A lists B, B lists A.
type LinkService struct {
	store *storage.Store
}

func NewLinkService(store *storage.Store) *LinkService {
	return &LinkService{store: store}
}

// MergeClosedAt reconciles two closed-at values, keeping the chronologically
// earliest. A blank existing value adopts the candidate verbatim; a blank or
// unparseable candidate leaves the existing value alone.
func MergeClosedAt(existing, candidate string) string {
	if existing == "" {
		return candidate
	}
	if candidate == "" {
		return existing
	}
	et, eerr := time.Parse(time.RFC3339, existing)
	ct, cerr := time.Parse(time.RFC3339, candidate)
	if eerr != nil || cerr != nil {
		return existing
	}
	if ct.Before(et) {
		return candidate
	}
	return existing
}

// SyncLinkedPositions sets sourceID's linked set to targetIDs and mirrors
// the change on every affected position: each target gains a back-link,
// each formerly-linked position loses its link. closedAt, when non-blank,
// is merged into the source and every target with earliest-wins semantics.
// All affected positions must exist within the caller's scope or the whole
// operation is rejected before any write.
func (s *LinkService) SyncLinkedPositions(scope models.ClientScope, sourceID string, targetIDs []string, closedAt string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: source position id is required", ErrNotFound)
	}
	source, err := s.store.GetPosition(sourceID, scope)
	if err != nil {
		return fmt.Errorf("%w: looking up position %s: %v", ErrStorage, sourceID, err)
	}
	if source == nil {
		return fmt.Errorf("position %s %w", sourceID, ErrNotFound)
	}

	desired := make([]string, 0, len(targetIDs))
	seen := map[string]bool{sourceID: true}
	for _, id := range targetIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		desired = append(desired, id)
	}

	removed := make([]string, 0)
	for _, id := range source.LinkedIDs {
		if !seen[id] {
			removed = append(removed, id)
		}
	}

	// Load every affected position up front so a missing one aborts the
	// sync before any write happens.
	affected := make(map[string]*models.Position, len(desired)+len(removed))
	for _, id := range append(append([]string{}, desired...), removed...) {
		pos, err := s.store.GetPosition(id, scope)
		if err != nil {
			return fmt.Errorf("%w: looking up position %s: %v", ErrStorage, id, err)
		}
		if pos == nil {
			return fmt.Errorf("linked position %s %w", id, ErrNotFound)
		}
		affected[id] = pos
	}

	if err := s.writeLinks(source, desired, closedAt); err != nil {
		return err
	}
	for _, id := range desired {
		target := affected[id]
		links := target.LinkedIDs
		if !slices.Contains(links, sourceID) {
			links = append(append([]string{}, links...), sourceID)
		}
		if err := s.writeLinks(target, links, closedAt); err != nil {
			return err
		}
	}
	for _, id := range removed {
		target := affected[id]
		links := make([]string, 0, len(target.LinkedIDs))
		for _, l := range target.LinkedIDs {
			if l != sourceID {
				links = append(links, l)
			}
		}
		if err := s.writeLinks(target, links, ""); err != nil {
			return err
		}
	}

	logger.L.Info("linked positions synced", "sourceID", sourceID, "linked", len(desired), "unlinked", len(removed))
	return nil
}

// writeLinks persists a position's linked set and merged closed-at, skipping
// the write when nothing would change.
func (s *LinkService) writeLinks(pos *models.Position, links []string, closedAt string) error {
	merged := MergeClosedAt(pos.ClosedAt, closedAt)
	if merged == pos.ClosedAt && sameSet(pos.LinkedIDs, links) {
		return nil
	}
	if err := s.store.UpdatePositionLinks(pos.ID, links, merged, merged != pos.ClosedAt); err != nil {
		return fmt.Errorf("%w: updating links for %s: %v", ErrStorage, pos.ID, err)
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
