package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rover.nav/internal/monitoring"
	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
)

var logStore = monitoring.Component("store")

// Mission outcomes recorded in missions.outcome.
const (
	OutcomeRunning  = "running"
	OutcomeReturned = "returned_home"
	OutcomeEnded    = "ended"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Mission matches the missions table.
type Mission struct {
	MissionID        string
	StartedUnixNanos int64
	EndedUnixNanos   *int64
	ConfigJSON       string
	SamplesCollected int
	MappedPercentage float64
	Outcome          string
}

// DecisionRecord matches the decision_log table.
type DecisionRecord struct {
	LogID      int64    `json:"log_id"`
	MissionID  string   `json:"mission_id"`
	Tick       int64    `json:"tick"`
	UnixNanos  int64    `json:"unix_nanos"`
	Mode       string   `json:"mode"`
	Throttle   float64  `json:"throttle"`
	Brake      float64  `json:"brake"`
	Steer      float64  `json:"steer"`
	SendPickup bool     `json:"send_pickup"`
	Events     []string `json:"events"`
}

// MissionStore persists missions, world map snapshots and decisions.
type MissionStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies PRAGMAs and
// migrates the schema to the latest version.
func Open(path string) (*MissionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mission db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &MissionStore{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	version, dirty, err := s.MigrateVersion()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("schema version %d is dirty; fix the database and retry", version)
	}
	logStore("opened %s at schema version %d", path, version)
	return s, nil
}

// Close closes the database.
func (s *MissionStore) Close() error { return s.db.Close() }

// StartMission inserts a running mission and returns its generated ID.
func (s *MissionStore) StartMission(startedAt time.Time, configJSON string) (string, error) {
	id := uuid.New().String()
	if configJSON == "" {
		configJSON = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO missions (mission_id, started_unix_nanos, config_json, outcome)
		VALUES (?, ?, ?, ?)`,
		id, startedAt.UnixNano(), configJSON, OutcomeRunning)
	if err != nil {
		return "", fmt.Errorf("insert mission: %w", err)
	}
	logStore("mission %s started", id)
	return id, nil
}

// FinishMission records the end of a mission.
func (s *MissionStore) FinishMission(missionID string, endedAt time.Time, samples int, mappedPct float64, outcome string) error {
	res, err := s.db.Exec(`
		UPDATE missions
		SET ended_unix_nanos = ?, samples_collected = ?, mapped_percentage = ?, outcome = ?
		WHERE mission_id = ?`,
		endedAt.UnixNano(), samples, mappedPct, outcome, missionID)
	if err != nil {
		return fmt.Errorf("finish mission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish mission %s: %w", missionID, ErrNotFound)
	}
	logStore("mission %s finished: outcome=%s samples=%d mapped=%.2f%%", missionID, outcome, samples, mappedPct)
	return nil
}

// GetMission loads one mission.
func (s *MissionStore) GetMission(missionID string) (*Mission, error) {
	var m Mission
	var ended sql.NullInt64
	err := s.db.QueryRow(`
		SELECT mission_id, started_unix_nanos, ended_unix_nanos, config_json,
		       samples_collected, mapped_percentage, outcome
		FROM missions WHERE mission_id = ?`, missionID).
		Scan(&m.MissionID, &m.StartedUnixNanos, &ended, &m.ConfigJSON,
			&m.SamplesCollected, &m.MappedPercentage, &m.Outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mission %s: %w", missionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	if ended.Valid {
		m.EndedUnixNanos = &ended.Int64
	}
	return &m, nil
}

// ResumeMission marks an existing mission as running again and returns it
// as it was before the resume.
func (s *MissionStore) ResumeMission(missionID string) (*Mission, error) {
	m, err := s.GetMission(missionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`
		UPDATE missions SET ended_unix_nanos = NULL, outcome = ? WHERE mission_id = ?`,
		OutcomeRunning, missionID); err != nil {
		return nil, fmt.Errorf("resume mission: %w", err)
	}
	logStore("mission %s resumed (was %s)", missionID, m.Outcome)
	return m, nil
}

// InsertSnapshot implements l3worldmap.SnapshotStore.
func (s *MissionStore) InsertSnapshot(snap *l3worldmap.Snapshot) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO world_map_snapshots
			(mission_id, taken_unix_nanos, world_size, mapped_percentage,
			 samples_collected, grid_blob, snapshot_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.MissionID, snap.TakenUnixNanos, snap.WorldSize, snap.MappedPercentage,
		snap.SamplesCollected, snap.GridBlob, snap.SnapshotReason)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the most recent snapshot of a mission.
func (s *MissionStore) LatestSnapshot(missionID string) (*l3worldmap.Snapshot, error) {
	var snap l3worldmap.Snapshot
	var id int64
	err := s.db.QueryRow(`
		SELECT snapshot_id, mission_id, taken_unix_nanos, world_size, mapped_percentage,
		       samples_collected, grid_blob, snapshot_reason
		FROM world_map_snapshots
		WHERE mission_id = ?
		ORDER BY taken_unix_nanos DESC, snapshot_id DESC
		LIMIT 1`, missionID).
		Scan(&id, &snap.MissionID, &snap.TakenUnixNanos, &snap.WorldSize, &snap.MappedPercentage,
			&snap.SamplesCollected, &snap.GridBlob, &snap.SnapshotReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for mission %s: %w", missionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.SnapshotID = &id
	return &snap, nil
}

// CountSnapshots returns the number of snapshots stored for a mission, by reason.
func (s *MissionStore) CountSnapshots(missionID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT snapshot_reason, COUNT(*) FROM world_map_snapshots
		WHERE mission_id = ? GROUP BY snapshot_reason`, missionID)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

// RecordDecision appends one tick to the decision log.
func (s *MissionStore) RecordDecision(rec *DecisionRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO decision_log
			(mission_id, tick, unix_nanos, mode, throttle, brake, steer, send_pickup, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MissionID, rec.Tick, rec.UnixNanos, rec.Mode, rec.Throttle, rec.Brake, rec.Steer,
		rec.SendPickup, strings.Join(rec.Events, ","))
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.LogID = id
	}
	return nil
}

// ListDecisions returns up to limit decisions of a mission logged after the
// row afterID, in insertion order. Ticks restart when a mission is resumed,
// so paging is by log ID. A limit of zero or less returns all rows.
func (s *MissionStore) ListDecisions(missionID string, afterID int64, limit int) ([]DecisionRecord, error) {
	query := `
		SELECT log_id, mission_id, tick, unix_nanos, mode, throttle, brake, steer, send_pickup, events
		FROM decision_log WHERE mission_id = ? AND log_id > ? ORDER BY log_id`
	args := []interface{}{missionID, afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		var events string
		if err := rows.Scan(&r.LogID, &r.MissionID, &r.Tick, &r.UnixNanos, &r.Mode,
			&r.Throttle, &r.Brake, &r.Steer, &r.SendPickup, &events); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if events != "" {
			r.Events = strings.Split(events, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
