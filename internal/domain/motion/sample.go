package motion

import "math"

// RawSample is one 6-axis reading in integer sensor units.
type RawSample struct {
	Ax, Ay, Az int32
	Gx, Gy, Gz int32
}

// Offsets holds calibration results. The zero value is the startup state.
type Offsets struct {
	// GxOffset, GyOffset and GzOffset are the resting gyro biases.
	GxOffset, GyOffset, GzOffset int32
	// RestingAccelMag is the mean acceleration magnitude at rest.
	RestingAccelMag float64
	// RestingGyroMag is the mean raw angular velocity magnitude at rest.
	RestingGyroMag float64
	// TiltPitchZero and TiltRollZero are the accelerometer angles (degrees)
	// recorded by tilt calibration.
	TiltPitchZero, TiltRollZero float64
}

// Features are the scalar values derived from one sample.
type Features struct {
	AccelMag float64
	// GyroMag uses the raw, uncalibrated angular velocity.
	GyroMag float64
	// CalGx, CalGy and CalGz are offset-corrected angular velocities.
	CalGx, CalGy, CalGz float64
	// Pitch and Roll are accelerometer tilt angles in degrees.
	Pitch, Roll float64
}

// Extract derives features from a raw sample. It is pure and deterministic.
func Extract(raw RawSample, offsets Offsets) Features {
	pitch, roll := TiltAngles(raw)

	return Features{
		AccelMag: Magnitude(raw.Ax, raw.Ay, raw.Az),
		GyroMag:  Magnitude(raw.Gx, raw.Gy, raw.Gz),
		CalGx:    float64(raw.Gx) - float64(offsets.GxOffset),
		CalGy:    float64(raw.Gy) - float64(offsets.GyOffset),
		CalGz:    float64(raw.Gz) - float64(offsets.GzOffset),
		Pitch:    pitch,
		Roll:     roll,
	}
}

// Magnitude returns the Euclidean norm of an integer 3-vector.
func Magnitude(x, y, z int32) float64 {
	fx, fy, fz := float64(x), float64(y), float64(z)

	return math.Sqrt(fx*fx + fy*fy + fz*fz)
}

// TiltAngles computes pitch and roll in degrees from the accelerometer:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func TiltAngles(raw RawSample) (pitch, roll float64) {
	ax, ay, az := float64(raw.Ax), float64(raw.Ay), float64(raw.Az)

	roll = math.Atan2(ay, az) * 180 / math.Pi
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * 180 / math.Pi

	return pitch, roll
}
