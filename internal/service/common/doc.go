// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the device control API with call
// timeouts, and process helpers used to keep a single daemon per host.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
