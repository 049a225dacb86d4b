package l3worldmap

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"time"
)

// Snapshot matches the world_map_snapshots table.
type Snapshot struct {
	SnapshotID       *int64 // set by the store after insert
	MissionID        string
	TakenUnixNanos   int64
	WorldSize        int
	MappedPercentage float64
	SamplesCollected int
	GridBlob         []byte // gob+gzip encoded []Cell
	SnapshotReason   string // 'periodic', 'mission_complete', 'final', 'manual'
}

// SnapshotStore persists Snapshot records. Implemented by the sqlite MissionStore.
type SnapshotStore interface {
	InsertSnapshot(s *Snapshot) (int64, error)
}

// SnapshotMeta describes the mission context of a snapshot.
type SnapshotMeta struct {
	MissionID        string
	TakenAt          time.Time
	SamplesCollected int
	Reason           string
}

// serializeCells compresses the grid using gob encoding and gzip compression.
func serializeCells(cells []Cell) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(cells); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeCells decompresses and decodes cells from a gob+gzip blob.
func deserializeCells(blob []byte) ([]Cell, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var cells []Cell
	if err := gob.NewDecoder(gz).Decode(&cells); err != nil {
		return nil, fmt.Errorf("failed to decode grid cells: %w", err)
	}
	return cells, nil
}

// Snapshot encodes the current grid without writing it anywhere.
func (m *WorldMap) Snapshot(meta SnapshotMeta) (*Snapshot, error) {
	blob, err := serializeCells(m.cells)
	if err != nil {
		return nil, fmt.Errorf("serialize world map: %w", err)
	}
	return &Snapshot{
		MissionID:        meta.MissionID,
		TakenUnixNanos:   meta.TakenAt.UnixNano(),
		WorldSize:        m.size,
		MappedPercentage: m.MappedPercentage(),
		SamplesCollected: meta.SamplesCollected,
		GridBlob:         blob,
		SnapshotReason:   meta.Reason,
	}, nil
}

// Persist encodes the grid and writes it via store. On success the change
// counter is reset and the snapshot ID is returned. A nil store is a no-op.
func (m *WorldMap) Persist(store SnapshotStore, meta SnapshotMeta) (int64, error) {
	if m == nil || store == nil {
		return 0, nil
	}
	snap, err := m.Snapshot(meta)
	if err != nil {
		opsf("persist %s: %v", meta.Reason, err)
		return 0, err
	}
	id, err := store.InsertSnapshot(snap)
	if err != nil {
		opsf("persist %s: insert failed: %v", meta.Reason, err)
		return 0, fmt.Errorf("insert world map snapshot: %w", err)
	}
	snap.SnapshotID = &id

	diagf("persisted snapshot id=%d mission=%s reason=%s mapped=%.2f%% changes=%d blob=%d bytes",
		id, meta.MissionID, meta.Reason, snap.MappedPercentage, m.ChangesSinceSnapshot, len(snap.GridBlob))
	m.ChangesSinceSnapshot = 0
	m.SnapshotCount++
	return id, nil
}

// Restore rebuilds a WorldMap from a persisted snapshot.
func Restore(s *Snapshot, cutoff float64) (*WorldMap, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	cells, err := deserializeCells(s.GridBlob)
	if err != nil {
		return nil, err
	}
	if s.WorldSize <= 0 || len(cells) != s.WorldSize*s.WorldSize {
		return nil, fmt.Errorf("snapshot has %d cells, want %d for size %d",
			len(cells), s.WorldSize*s.WorldSize, s.WorldSize)
	}
	return &WorldMap{size: s.WorldSize, cutoff: cutoff, cells: cells}, nil
}
