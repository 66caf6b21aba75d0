// Package detector implements the independent gesture detectors.
//
// Each detector owns its private state and is advanced one sample at a time
// with Step. Time is always supplied by the caller, so detectors can be driven
// with synthetic timestamps. Detectors never read each other's state; the
// engine composes them by priority.
package detector
