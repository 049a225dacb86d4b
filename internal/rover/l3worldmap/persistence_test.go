package l3worldmap

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
)

type mockSnapshotStore struct {
	lastID    int64
	insertErr error
	snapshots []*Snapshot
}

func (m *mockSnapshotStore) InsertSnapshot(s *Snapshot) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.lastID++
	m.snapshots = append(m.snapshots, s)
	return m.lastID, nil
}

func TestPersist_NilCases(t *testing.T) {
	t.Parallel()

	t.Run("nil map", func(t *testing.T) {
		t.Parallel()
		var m *WorldMap
		_, err := m.Persist(&mockSnapshotStore{}, SnapshotMeta{Reason: "test"})
		assert.NoError(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := New(4, 0).Persist(nil, SnapshotMeta{Reason: "test"})
		assert.NoError(t, err)
	})
}

func TestPersist_RoundTrip(t *testing.T) {
	t.Parallel()

	m := New(20, 0)
	m.Update(cells(1, 1, 5, 6), cells(9, 9), cells(5, 6, 10, 10))
	require.Greater(t, m.ChangesSinceSnapshot, 0)

	taken := time.Unix(1700000000, 5)
	store := &mockSnapshotStore{}
	id, err := m.Persist(store, SnapshotMeta{MissionID: "m-1", TakenAt: taken, SamplesCollected: 2, Reason: "periodic"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 0, m.ChangesSinceSnapshot)
	assert.Equal(t, 1, m.SnapshotCount)

	require.Len(t, store.snapshots, 1)
	snap := store.snapshots[0]
	assert.Equal(t, "m-1", snap.MissionID)
	assert.Equal(t, taken.UnixNano(), snap.TakenUnixNanos)
	assert.Equal(t, 20, snap.WorldSize)
	assert.Equal(t, 2, snap.SamplesCollected)
	assert.Equal(t, "periodic", snap.SnapshotReason)
	assert.InDelta(t, m.MappedPercentage(), snap.MappedPercentage, 1e-9)
	require.NotNil(t, snap.SnapshotID)
	assert.Equal(t, int64(1), *snap.SnapshotID)

	restored, err := Restore(snap, 0)
	require.NoError(t, err)
	assert.Equal(t, m.Cells(), restored.Cells())
	assert.Equal(t, m.MappedPercentage(), restored.MappedPercentage())
}

func TestPersist_StoreError(t *testing.T) {
	t.Parallel()

	m := New(4, 0)
	m.Update(l2coords.Cells{}, l2coords.Cells{}, cells(0, 0))
	store := &mockSnapshotStore{insertErr: fmt.Errorf("disk full")}

	_, err := m.Persist(store, SnapshotMeta{Reason: "final"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, m.ChangesSinceSnapshot, "failed persist keeps pending changes")
	assert.Equal(t, 0, m.SnapshotCount)
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	_, err := Restore(nil, 0)
	assert.Error(t, err)

	_, err = Restore(&Snapshot{WorldSize: 2}, 0)
	assert.Error(t, err, "empty blob")

	_, err = Restore(&Snapshot{WorldSize: 2, GridBlob: []byte("not gzip")}, 0)
	assert.Error(t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("not gob"))
	require.NoError(t, gz.Close())
	_, err = Restore(&Snapshot{WorldSize: 2, GridBlob: buf.Bytes()}, 0)
	assert.Error(t, err)

	blob, err := serializeCells(make([]Cell, 9))
	require.NoError(t, err)
	_, err = Restore(&Snapshot{WorldSize: 2, GridBlob: blob}, 0)
	assert.Error(t, err, "cell count must match world size")
}
