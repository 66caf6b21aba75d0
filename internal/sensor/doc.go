// Package sensor provides sample sources for the classification engine:
// an MPU-6050 accessed through periph I2C and a scripted YAML replay.
package sensor
