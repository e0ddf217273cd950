package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/storage"
)

func TestMergeClosedAt(t *testing.T) {
	cases := []struct {
		name      string
		existing  string
		candidate string
		want      string
	}{
		{"blank_existing_adopts_candidate", "", "2024-01-10T00:00:00Z", "2024-01-10T00:00:00Z"},
		{"blank_candidate_keeps_existing", "2024-01-10T00:00:00Z", "", "2024-01-10T00:00:00Z"},
		{"earlier_candidate_wins", "2024-01-10T00:00:00Z", "2024-01-05T00:00:00Z", "2024-01-05T00:00:00Z"},
		{"later_candidate_loses", "2024-01-05T00:00:00Z", "2024-01-10T00:00:00Z", "2024-01-05T00:00:00Z"},
		{"unparseable_candidate_keeps_existing", "2024-01-10T00:00:00Z", "soon", "2024-01-10T00:00:00Z"},
		{"unparseable_existing_unchanged", "whenever", "2024-01-10T00:00:00Z", "whenever"},
		{"both_blank", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MergeClosedAt(tc.existing, tc.candidate))
		})
	}
}

func linkedIDs(t *testing.T, store *storage.Store, id string) []string {
	t.Helper()
	pos, err := store.GetPosition(id, models.AdminScope)
	require.NoError(t, err)
	require.NotNil(t, pos)
	return pos.LinkedIDs
}

func TestSyncLinkedPositionsSymmetric(t *testing.T) {
	store := newTestStore(t)
	svc := NewLinkService(store)
	for _, id := range []string{"A", "B", "C"} {
		seedPosition(t, store, id, "alpha")
	}

	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"B", "C"}, ""))
	assert.ElementsMatch(t, []string{"B", "C"}, linkedIDs(t, store, "A"))
	assert.ElementsMatch(t, []string{"A"}, linkedIDs(t, store, "B"))
	assert.ElementsMatch(t, []string{"A"}, linkedIDs(t, store, "C"))

	// Shrinking the set removes the back-link from the dropped position.
	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"B"}, ""))
	assert.ElementsMatch(t, []string{"B"}, linkedIDs(t, store, "A"))
	assert.ElementsMatch(t, []string{"A"}, linkedIDs(t, store, "B"))
	assert.Empty(t, linkedIDs(t, store, "C"))
}

func TestSyncLinkedPositionsExcludesSelfAndDuplicates(t *testing.T) {
	store := newTestStore(t)
	svc := NewLinkService(store)
	seedPosition(t, store, "A", "alpha")
	seedPosition(t, store, "B", "alpha")

	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"A", "B", "B", ""}, ""))
	assert.ElementsMatch(t, []string{"B"}, linkedIDs(t, store, "A"))
}

func TestSyncLinkedPositionsMissingTargetAborts(t *testing.T) {
	store := newTestStore(t)
	svc := NewLinkService(store)
	seedPosition(t, store, "A", "alpha")
	seedPosition(t, store, "B", "alpha")

	err := svc.SyncLinkedPositions(alphaScope(), "A", []string{"B", "ghost"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// Nothing was written.
	assert.Empty(t, linkedIDs(t, store, "A"))
	assert.Empty(t, linkedIDs(t, store, "B"))
}

func TestSyncLinkedPositionsScope(t *testing.T) {
	store := newTestStore(t)
	svc := NewLinkService(store)
	seedPosition(t, store, "A", "alpha")
	seedPosition(t, store, "B", "beta")

	// Another tenant's position is invisible, so the sync is rejected.
	err := svc.SyncLinkedPositions(alphaScope(), "A", []string{"B"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncLinkedPositionsMergesClosedAt(t *testing.T) {
	store := newTestStore(t)
	svc := NewLinkService(store)
	seedPosition(t, store, "A", "alpha")
	seedPosition(t, store, "B", "alpha")

	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"B"}, "2024-01-10T00:00:00Z"))
	posA, err := store.GetPosition("A", alphaScope())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10T00:00:00Z", posA.ClosedAt)
	posB, err := store.GetPosition("B", alphaScope())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10T00:00:00Z", posB.ClosedAt)

	// An earlier candidate replaces it; a later one does not.
	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"B"}, "2024-01-05T00:00:00Z"))
	posA, err = store.GetPosition("A", alphaScope())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05T00:00:00Z", posA.ClosedAt)

	require.NoError(t, svc.SyncLinkedPositions(alphaScope(), "A", []string{"B"}, "2024-06-01T00:00:00Z"))
	posA, err = store.GetPosition("A", alphaScope())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05T00:00:00Z", posA.ClosedAt)
}
