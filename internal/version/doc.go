// Package version carries the build metadata of the airmouse binaries.
//
// Version, Commit and BuildTime are set with -ldflags "-X ..." at build time.
// The release manifest records Short, the version subcommand prints Full.
package version
