package calibration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Repository defines persistence operations for calibration offsets.
type Repository interface {
	Load(ctx context.Context) (motion.Offsets, error)
	Save(ctx context.Context, offsets motion.Offsets) error
}

// FileRepository persists offsets to a JSON file on disk.
type FileRepository struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var (
	// ErrNotFound is returned when no calibration has been saved yet.
	ErrNotFound = errors.New("calibration not found")

	errMissingField = errors.New("missing field")
)

// Field names of the stored document.
const (
	fieldGx              = "gx_offset"
	fieldGy              = "gy_offset"
	fieldGz              = "gz_offset"
	fieldRestingAccelMag = "resting_accel_mag"
	fieldRestingGyroMag  = "resting_gyro_mag"
	fieldTiltPitchZero   = "tilt_pitch_zero"
	fieldTiltRollZero    = "tilt_roll_zero"
	fieldSavedAt         = "saved_at"
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		now:  time.Now,
	}
}

// Load reads offsets from disk.
func (r *FileRepository) Load(_ context.Context) (motion.Offsets, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return motion.Offsets{}, ErrNotFound
		}

		return motion.Offsets{}, fmt.Errorf("read calibration file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return motion.Offsets{}, fmt.Errorf("decode calibration file: %w", err)
	}

	return fromStruct(&doc)
}

// Save writes offsets to disk.
func (r *FileRepository) Save(_ context.Context, offsets motion.Offsets) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toStruct(offsets, r.now())
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write calibration file: %w", err)
	}

	return nil
}

func toStruct(o motion.Offsets, savedAt time.Time) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldGx:              float64(o.GxOffset),
		fieldGy:              float64(o.GyOffset),
		fieldGz:              float64(o.GzOffset),
		fieldRestingAccelMag: o.RestingAccelMag,
		fieldRestingGyroMag:  o.RestingGyroMag,
		fieldTiltPitchZero:   o.TiltPitchZero,
		fieldTiltRollZero:    o.TiltRollZero,
		fieldSavedAt:         savedAt.UTC().Format(time.RFC3339),
	})
}

// fromStruct requires the gyro offsets; the remaining fields default to zero.
func fromStruct(doc *structpb.Struct) (motion.Offsets, error) {
	fields := doc.GetFields()

	number := func(name string) float64 {
		return fields[name].GetNumberValue()
	}

	for _, name := range []string{fieldGx, fieldGy, fieldGz} {
		if _, ok := fields[name]; !ok {
			return motion.Offsets{}, fmt.Errorf("decode calibration file: %w: %s", errMissingField, name)
		}
	}

	return motion.Offsets{
		GxOffset:        int32(number(fieldGx)),
		GyOffset:        int32(number(fieldGy)),
		GzOffset:        int32(number(fieldGz)),
		RestingAccelMag: number(fieldRestingAccelMag),
		RestingGyroMag:  number(fieldRestingGyroMag),
		TiltPitchZero:   number(fieldTiltPitchZero),
		TiltRollZero:    number(fieldTiltRollZero),
	}, nil
}
