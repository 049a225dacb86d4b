package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	sqlite "github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
)

func openMissionStore(t *testing.T) *sqlite.MissionStore {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rover.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResumeMission_LoadsLatestSnapshot(t *testing.T) {
	t.Parallel()
	store := openMissionStore(t)

	id, err := store.StartMission(time.Unix(0, 0), "{}")
	require.NoError(t, err)

	wm := l3worldmap.New(200, 0)
	wm.Update(l2coords.Cells{}, l2coords.Cells{}, l2coords.Cells{X: []int{10, 11}, Y: []int{20, 20}})
	_, err = wm.Persist(store, l3worldmap.SnapshotMeta{MissionID: id, TakenAt: time.Unix(5, 0), SamplesCollected: 1, Reason: "periodic"})
	require.NoError(t, err)
	_, err = wm.Persist(store, l3worldmap.SnapshotMeta{MissionID: id, TakenAt: time.Unix(9, 0), SamplesCollected: 4, Reason: "final"})
	require.NoError(t, err)
	require.NoError(t, store.FinishMission(id, time.Unix(10, 0), 4, wm.MappedPercentage(), sqlite.OutcomeEnded))

	snap, err := resumeMission(store, id)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.SamplesCollected)
	assert.Equal(t, "final", snap.SnapshotReason)
	assert.Equal(t, 200, snap.WorldSize)

	m, err := store.GetMission(id)
	require.NoError(t, err)
	assert.Equal(t, sqlite.OutcomeRunning, m.Outcome)
}

func TestResumeMission_WithoutSnapshot(t *testing.T) {
	t.Parallel()
	store := openMissionStore(t)

	id, err := store.StartMission(time.Unix(0, 0), "{}")
	require.NoError(t, err)
	require.NoError(t, store.FinishMission(id, time.Unix(1, 0), 0, 0, sqlite.OutcomeEnded))

	snap, err := resumeMission(store, id)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestResumeMission_UnknownMission(t *testing.T) {
	t.Parallel()
	store := openMissionStore(t)

	_, err := resumeMission(store, "missing")
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}
