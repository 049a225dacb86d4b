// Package l4decision owns Layer 4 (Decision) of the rover data model.
//
// Responsibilities: the navigation state machine that turns vision readings
// and telemetry into throttle, brake, steer and pickup commands, including
// stuck and spin recovery, sample pursuit, and homecoming detection.
// Key types: Navigator, RoverState, Config, Observation, Outcome.
//
// Dependency rule: L4 may depend on L1-L3, but never on pipeline or adapters.
// All timing goes through an injected timeutil.Clock.
package l4decision
