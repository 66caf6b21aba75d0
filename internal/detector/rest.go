package detector

import (
	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Rest recognizes a stationary device. It is stateless.
type Rest struct {
	accelThreshold float64
	gyroThreshold  float64
}

// NewRest creates a rest check from the configured thresholds.
func NewRest(cfg config.Rest) Rest {
	return Rest{
		accelThreshold: cfg.AccelThreshold,
		gyroThreshold:  cfg.GyroThreshold,
	}
}

// AtRest reports whether both magnitudes are under their thresholds.
func (r Rest) AtRest(f motion.Features) bool {
	return f.AccelMag < r.accelThreshold && f.GyroMag < r.gyroThreshold
}
