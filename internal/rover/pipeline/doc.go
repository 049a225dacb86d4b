// Package pipeline provides orchestration for the rover perception and
// decision loop.
//
// It wires together stages from L1-L4 and adapter sinks (persistence,
// status publication) into one tick per camera frame. The pipeline does
// not own domain logic; it delegates to layer packages and adapters.
package pipeline
