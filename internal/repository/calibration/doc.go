// Package calibration persists calibration offsets.
//
// The FileRepository stores offsets as protobuf JSON of a Struct on disk and
// exposes the Save method expected by the engine controller.
package calibration
