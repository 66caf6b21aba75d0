// Package host is the receiving end of the line protocol. It connects to an
// airmouse-device, selects a mode, smooths cursor vectors and maps gestures
// to actions.
package host
