package protocol

import "strings"

// Command is a parsed inbound command.
type Command uint8

const (
	// CommandUnknown is never produced by ParseCommand.
	CommandUnknown Command = iota
	CommandCursorMode
	CommandGestureMode
	CommandIdleMode
	CommandCalibrate
	CommandCalibrateTilt
	CommandInitCheck
)

//nolint:gochecknoglobals // Read-only lookup table.
var commandTokens = map[Command]string{
	CommandCursorMode:    "CURSOR_MODE",
	CommandGestureMode:   "GESTURE_MODE",
	CommandIdleMode:      "IDLE_MODE",
	CommandCalibrate:     "CALIBRATE",
	CommandCalibrateTilt: "CALIBRATE_TILT",
	CommandInitCheck:     "INIT_CHECK",
}

// String returns the wire token of the command.
func (c Command) String() string {
	if token, ok := commandTokens[c]; ok {
		return token
	}

	return "UNKNOWN"
}

// ParseCommand parses one inbound line. Unknown lines report false.
func ParseCommand(line string) (Command, bool) {
	token := strings.TrimRight(line, " \t\r\n")

	for c, t := range commandTokens {
		if t == token {
			return c, true
		}
	}

	return CommandUnknown, false
}
