// Package engine composes the detectors into the motion classification
// engine and drives it from a single control goroutine.
//
// Engine is a plain owned struct with no locking: Controller is its only
// caller. Transports talk to the Controller by enqueueing Requests; readers
// outside the loop use the published Status snapshot.
package engine
