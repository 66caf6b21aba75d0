// Package config defines the settings used by the airmouse binaries and provides
// helpers to load, validate and save them in YAML format.
//
// Validate fills unset values with the stock thresholds, so a partial file is
// enough to run the device.
package config
