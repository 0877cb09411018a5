// Package pipeline orchestrates the per-frame counting cycle: detection
// validation, motion prediction, association, track lifecycle, and crossing
// evaluation, in that order. It owns no domain logic of its own; it wires
// the detect, track, and count packages plus optional persistence sinks
// into one sequential loop for both real-time and replay use.
package pipeline
