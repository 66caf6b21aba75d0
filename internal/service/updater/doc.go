// Package updater publishes and applies airmouse releases.
//
// A release folder holds the binaries next to a YAML manifest with their
// SHA-512 checksums. The updater downloads only the files whose local
// checksum differs and swaps them in place with go-update.
package updater
