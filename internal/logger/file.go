package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap/zapcore"
)

const (
	fileLogMaxAge       = 7 * 24 * time.Hour
	fileLogRotationTime = 24 * time.Hour
)

// OpenRotatingFile opens a log file that rotates daily. pattern is a
// strftime layout such as "airmouse-%Y-%m-%d.log".
func OpenRotatingFile(pattern string) (*rotatelogs.RotateLogs, error) {
	fileLog, err := rotatelogs.New(
		pattern,
		rotatelogs.WithMaxAge(fileLogMaxAge),
		rotatelogs.WithRotationTime(fileLogRotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return fileLog, nil
}

// EnableFileOutput makes the global logger write to stderr and to a rotating
// file. The returned closer releases the file.
func EnableFileOutput(pattern string) (io.Closer, error) {
	fileLog, err := OpenRotatingFile(pattern)
	if err != nil {
		return nil, err
	}

	SetLogger(NewWithOutput(defaultLevel, zapcore.NewMultiWriteSyncer(
		zapcore.Lock(os.Stderr),
		zapcore.AddSync(fileLog),
	)))

	return fileLog, nil
}
