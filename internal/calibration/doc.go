// Package calibration estimates resting gyro offsets and the tilt zero pose
// from a batch of sensor samples taken while the device is held still.
package calibration
