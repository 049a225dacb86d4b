// Package l2coords owns Layer 2 (Coordinates) of the rover data model.
//
// Responsibilities: converting classified image pixels into rover-centric
// Cartesian points, polar readings for steering, and clipped world-map cells.
// Key types: PointSet, PolarReadings, WorldFrame, Cells.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2coords
