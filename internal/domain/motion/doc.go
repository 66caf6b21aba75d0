// Package motion contains the core domain types of the classification engine.
//
// It defines the raw 6-axis sample, calibration offsets, per-tick features,
// and the closed Gesture and Mode enumerations. Extract is the pure feature
// extraction step applied to every sample.
package motion
