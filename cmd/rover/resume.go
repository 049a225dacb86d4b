package main

import (
	"errors"
	"fmt"

	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	sqlite "github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
)

// resumeMission reopens missionID and loads its latest world map snapshot.
// A mission that never persisted a snapshot resumes with an empty map and a
// nil snapshot.
func resumeMission(store *sqlite.MissionStore, missionID string) (*l3worldmap.Snapshot, error) {
	prev, err := store.ResumeMission(missionID)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	snap, err := store.LatestSnapshot(missionID)
	if errors.Is(err, sqlite.ErrNotFound) {
		logf("mission %s (was %s) has no snapshot; starting with an empty map", missionID, prev.Outcome)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	logf("resuming mission %s (was %s) from %s snapshot: samples=%d mapped=%.1f%%",
		missionID, prev.Outcome, snap.SnapshotReason, snap.SamplesCollected, snap.MappedPercentage)
	return snap, nil
}
