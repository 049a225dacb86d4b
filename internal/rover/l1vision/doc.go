// Package l1vision owns Layer 1 (Vision) of the rover data model.
//
// Responsibilities: camera frame validation, perspective rectification to a
// bird's-eye view, and RGB threshold classification into binary masks.
// Key types: Frame, Rectifier, Calibration, Thresholds, Mask, Masks.
//
// Dependency rule: L1 depends on nothing else in the rover tree.
// It never touches the world map or rover state.
package l1vision
