// Package sqlite contains the SQLite mission store for the rover.
//
// Missions, world map snapshots and the per-tick decision log are written
// here rather than in the layer packages (L1-L4), which stay free of SQL.
// The schema is embedded and applied with golang-migrate on Open.
package sqlite
