// Package l3worldmap owns Layer 3 (World Map) of the rover data model.
//
// Responsibilities: accumulating per-cycle obstacle, sample and navigable
// cells into a mission-long square grid, reporting mapped coverage, and
// snapshot persistence of the grid.
// Key types: WorldMap, Cell, Snapshot, SnapshotStore.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
// No SQL/database code is allowed in this package.
package l3worldmap
