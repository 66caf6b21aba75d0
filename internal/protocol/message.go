package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Kind identifies an outbound message.
type Kind uint8

const (
	KindCursor Kind = iota + 1
	KindGesture
	KindMode
	KindCalibrationStart
	KindCalibrationProgress
	KindCalibrationComplete
	KindCalibrationFailed
	KindTiltCalibrationComplete
	KindInitComplete
)

// Wire names of the outbound messages.
const (
	tokenCursor                  = "CURSOR"
	tokenGesture                 = "GESTURE"
	tokenModePrefix              = "MODE_"
	tokenCalibrationStart        = "CALIBRATION_START"
	tokenCalibrationProgress     = "CALIBRATION_PROGRESS"
	tokenCalibrationComplete     = "CALIBRATION_COMPLETE"
	tokenCalibrationFailed       = "CALIBRATION_FAILED"
	tokenTiltCalibrationComplete = "TILT_CALIBRATION_COMPLETE"
	tokenInitComplete            = "INIT_COMPLETE"
)

var (
	errEmptyLine      = errors.New("empty line")
	errUnknownMessage = errors.New("unknown message")
	errFieldCount     = errors.New("unexpected field count")
)

// Message is one outbound line. Only the fields of its Kind are meaningful.
type Message struct {
	Kind    Kind
	Cursor  motion.CursorVector
	Gesture motion.Gesture
	Mode    motion.Mode
	Percent int
	Offsets motion.Offsets
}

// CursorMessage builds a CURSOR line.
func CursorMessage(v motion.CursorVector) Message {
	return Message{Kind: KindCursor, Cursor: v}
}

// GestureMessage builds a GESTURE line.
func GestureMessage(g motion.Gesture) Message {
	return Message{Kind: KindGesture, Gesture: g}
}

// ModeMessage builds the MODE_* acknowledgement.
func ModeMessage(m motion.Mode) Message {
	return Message{Kind: KindMode, Mode: m}
}

// String renders the message without the trailing newline.
func (m Message) String() string {
	switch m.Kind {
	case KindCursor:
		return tokenCursor + "," + formatFloat(m.Cursor.Vx) + "," + formatFloat(m.Cursor.Vy)
	case KindGesture:
		return tokenGesture + "," + m.Gesture.String()
	case KindMode:
		return tokenModePrefix + strings.ToUpper(m.Mode.String())
	case KindCalibrationStart:
		return tokenCalibrationStart
	case KindCalibrationProgress:
		return tokenCalibrationProgress + "," + strconv.Itoa(m.Percent)
	case KindCalibrationComplete:
		return fmt.Sprintf("%s,%d,%d,%d", tokenCalibrationComplete,
			m.Offsets.GxOffset, m.Offsets.GyOffset, m.Offsets.GzOffset)
	case KindCalibrationFailed:
		return tokenCalibrationFailed
	case KindTiltCalibrationComplete:
		return tokenTiltCalibrationComplete + "," +
			formatFloat(m.Offsets.TiltPitchZero) + "," + formatFloat(m.Offsets.TiltRollZero)
	case KindInitComplete:
		return tokenInitComplete
	default:
		return ""
	}
}

// ParseMessage parses an outbound line as received by a host.
//
//nolint:cyclop // One case per message kind.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return Message{}, errEmptyLine
	}

	fields := strings.Split(line, ",")
	head, args := fields[0], fields[1:]

	switch {
	case head == tokenCursor:
		vals, err := parseFloats(args, 2)
		if err != nil {
			return Message{}, fmt.Errorf("parse %s: %w", head, err)
		}

		return CursorMessage(motion.CursorVector{Vx: vals[0], Vy: vals[1]}), nil
	case head == tokenGesture:
		if len(args) != 1 {
			return Message{}, fmt.Errorf("parse %s: %w", head, errFieldCount)
		}

		g, ok := motion.ParseGesture(args[0])
		if !ok {
			return Message{}, fmt.Errorf("%w: gesture %q", errUnknownMessage, args[0])
		}

		return GestureMessage(g), nil
	case strings.HasPrefix(head, tokenModePrefix) && len(args) == 0:
		mode, ok := motion.ParseMode(strings.ToLower(strings.TrimPrefix(head, tokenModePrefix)))
		if !ok {
			return Message{}, fmt.Errorf("%w: %q", errUnknownMessage, head)
		}

		return ModeMessage(mode), nil
	case head == tokenCalibrationStart:
		return Message{Kind: KindCalibrationStart}, nil
	case head == tokenCalibrationFailed:
		return Message{Kind: KindCalibrationFailed}, nil
	case head == tokenInitComplete:
		return Message{Kind: KindInitComplete}, nil
	case head == tokenCalibrationProgress:
		if len(args) != 1 {
			return Message{}, fmt.Errorf("parse %s: %w", head, errFieldCount)
		}

		pct, err := strconv.Atoi(args[0])
		if err != nil {
			return Message{}, fmt.Errorf("parse %s: %w", head, err)
		}

		return Message{Kind: KindCalibrationProgress, Percent: pct}, nil
	case head == tokenCalibrationComplete:
		return parseCalibrationComplete(args)
	case head == tokenTiltCalibrationComplete:
		vals, err := parseFloats(args, 2)
		if err != nil {
			return Message{}, fmt.Errorf("parse %s: %w", head, err)
		}

		return Message{
			Kind:    KindTiltCalibrationComplete,
			Offsets: motion.Offsets{TiltPitchZero: vals[0], TiltRollZero: vals[1]},
		}, nil
	default:
		return Message{}, fmt.Errorf("%w: %q", errUnknownMessage, head)
	}
}

func parseCalibrationComplete(args []string) (Message, error) {
	if len(args) != 3 {
		return Message{}, fmt.Errorf("parse %s: %w", tokenCalibrationComplete, errFieldCount)
	}

	var offsets [3]int32

	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return Message{}, fmt.Errorf("parse %s: %w", tokenCalibrationComplete, err)
		}

		offsets[i] = int32(v)
	}

	return Message{
		Kind: KindCalibrationComplete,
		Offsets: motion.Offsets{
			GxOffset: offsets[0],
			GyOffset: offsets[1],
			GzOffset: offsets[2],
		},
	}, nil
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, errFieldCount
	}

	vals := make([]float64, n)

	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}

		vals[i] = v
	}

	return vals, nil
}

func formatFloat(v float64) string {
	// Rounding can leave a negative zero; print it as 0.00.
	if math.Abs(v) < 0.005 {
		v = 0
	}

	return strconv.FormatFloat(v, 'f', 2, 64)
}
