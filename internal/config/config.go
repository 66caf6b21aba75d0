package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting shared by the airmouse binaries.
type Config struct {
	// Device configures the daemon that owns the sensor.
	Device Device `yaml:"device"`
	// Detection holds classification thresholds and timings.
	Detection Detection `yaml:"detection"`
	// Cursor configures the continuous pointer output.
	Cursor Cursor `yaml:"cursor"`
	// MQTT configures the optional telemetry publisher.
	MQTT MQTT `yaml:"mqtt"`
	// Dashboard configures the optional websocket event feed.
	Dashboard Dashboard `yaml:"dashboard"`
	// Host configures the host-side receiver.
	Host Host `yaml:"host"`
	// Update configures the self-updater.
	Update Update `yaml:"update"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
}

// Device describes the sensor, transports and persistence of the daemon.
type Device struct {
	// ListenAddress is the TCP address of the line protocol server.
	ListenAddress string `yaml:"listen_addr"`
	// ControlAddress is the gRPC control API address. Empty disables it.
	ControlAddress string `yaml:"control_addr"`
	// PollInterval is the tick period of the classification loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Sensor selects the sample source: "mpu6050" or "replay".
	Sensor string `yaml:"sensor"`
	// I2CBus is the periph bus name, empty picks the first bus.
	I2CBus string `yaml:"i2c_bus"`
	// I2CAddress is the 7-bit sensor address.
	I2CAddress uint16 `yaml:"i2c_addr"`
	// ReplayFile is the YAML sample script used by the replay sensor.
	ReplayFile string `yaml:"replay_file"`
	// SerialPort enables the serial line transport when set.
	SerialPort string `yaml:"serial_port"`
	// SerialBaud is the serial line speed.
	SerialBaud uint `yaml:"serial_baud"`
	// CalibrationFile is where offsets are persisted after calibration.
	CalibrationFile string `yaml:"calibration_file"`
	// RestoreCalibration loads CalibrationFile at startup instead of zero offsets.
	RestoreCalibration bool `yaml:"restore_calibration"`
	// CalibrateOnStart runs a calibration before serving.
	CalibrateOnStart bool `yaml:"calibrate_on_start"`
}

// Detection groups the per-detector settings and dispatcher timings.
type Detection struct {
	Calibration Calibration `yaml:"calibration"`
	Rest        Rest        `yaml:"rest"`
	Shake       Shake       `yaml:"shake"`
	Circle      Circle      `yaml:"circle"`
	Tilt        Tilt        `yaml:"tilt"`
	// Priority is the evaluation order of the gesture detectors.
	Priority []string `yaml:"priority"`
	// Cooldown is the global minimum gap between two emitted gestures.
	Cooldown time.Duration `yaml:"cooldown"`
	// NeutralBand re-arms a repeated gesture once every calibrated axis falls below it.
	NeutralBand float64 `yaml:"neutral_band"`
}

// Calibration configures the offset estimation batch.
type Calibration struct {
	SampleCount int           `yaml:"sample_count"`
	SampleDelay time.Duration `yaml:"sample_delay"`
	// StabilityThreshold rejects samples with a larger raw gyro magnitude. Zero disables the filter.
	StabilityThreshold float64 `yaml:"stability_threshold"`
}

// Rest configures the stationary-device check.
type Rest struct {
	AccelThreshold float64 `yaml:"accel_threshold"`
	GyroThreshold  float64 `yaml:"gyro_threshold"`
}

// Shake configures the alternation-counting shake detector.
type Shake struct {
	Threshold    float64       `yaml:"threshold"`
	Alternations int           `yaml:"alternations"`
	Window       time.Duration `yaml:"window"`
	Debounce     time.Duration `yaml:"debounce"`
}

// Circle configures the sustained-rotation detector.
type Circle struct {
	// Axis is the rotation axis: "x", "y" or "z".
	Axis            string        `yaml:"axis"`
	Threshold       float64       `yaml:"threshold"`
	PurityTolerance float64       `yaml:"purity_tolerance"`
	MinSamples      int           `yaml:"min_samples"`
	Cooldown        time.Duration `yaml:"cooldown"`
}

// Tilt holds the directional thresholds. Slight thresholds of zero are disabled.
type Tilt struct {
	Up          float64 `yaml:"up"`
	UpSlight    float64 `yaml:"up_slight"`
	Down        float64 `yaml:"down"`
	DownSlight  float64 `yaml:"down_slight"`
	Left        float64 `yaml:"left"`
	LeftSlight  float64 `yaml:"left_slight"`
	Right       float64 `yaml:"right"`
	RightSlight float64 `yaml:"right_slight"`
}

// Cursor configures the pointer velocity computed in cursor mode.
type Cursor struct {
	// Source is "gyro" (angular velocity) or "tilt" (accelerometer angles).
	Source      string  `yaml:"source"`
	Sensitivity float64 `yaml:"sensitivity"`
	TiltGain    float64 `yaml:"tilt_gain"`
	MaxSpeed    float64 `yaml:"max_speed"`
}

// MQTT configures the telemetry publisher. An empty broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Dashboard configures the websocket event feed. An empty address disables it.
type Dashboard struct {
	ListenAddress string `yaml:"listen_addr"`
}

// Host configures the host-side receiver.
type Host struct {
	DeviceAddress string  `yaml:"device_addr"`
	Smoothing     float64 `yaml:"smoothing"`
	DeadZone      float64 `yaml:"dead_zone"`
	Speed         float64 `yaml:"speed"`
}

// Update configures where release manifests and binaries are fetched from.
type Update struct {
	// SourceURL is the base URL of the release folder.
	SourceURL string `yaml:"source_url"`
	// Directory holds the installed binaries; empty means the executable's directory.
	Directory string `yaml:"directory"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "airmouse-settings.yaml"

	// DefaultCalibrationFilename is the default filename for persisted offsets.
	DefaultCalibrationFilename = "airmouse-calibration.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// SensorMPU6050 reads samples from an MPU-6050 over I2C.
	SensorMPU6050 = "mpu6050"
	// SensorReplay reads samples from a YAML script.
	SensorReplay = "replay"

	// CursorSourceGyro derives the cursor from calibrated angular velocity.
	CursorSourceGyro = "gyro"
	// CursorSourceTilt derives the cursor from accelerometer angles.
	CursorSourceTilt = "tilt"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownSensor is returned for an unsupported sensor kind.
	errUnknownSensor = errors.New("unknown sensor kind")
	// errReplayFileRequired is returned when the replay sensor has no script.
	errReplayFileRequired = errors.New("replay sensor requires replay_file")
	// errUnknownCursorSource is returned for an unsupported cursor source.
	errUnknownCursorSource = errors.New("unknown cursor source")
	// errUnknownAxis is returned for a circle axis other than x, y or z.
	errUnknownAxis = errors.New("circle axis must be x, y or z")
	// errUnknownDetector is returned for an unknown priority entry.
	errUnknownDetector = errors.New("unknown detector in priority")
	// errInvalidSmoothing is returned for a smoothing factor outside [0, 1).
	errInvalidSmoothing = errors.New("host smoothing must be in [0, 1)")
)

// Default returns a configuration populated with the stock thresholds.
func Default() *Config {
	cfg := new(Config)
	cfg.Device.Sensor = SensorMPU6050
	cfg.Detection.Tilt.DownSlight = 6000
	cfg.Host.Smoothing = 0.5

	// Validate fills every default; it cannot fail on the stock sensor.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills unset values with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validateDevice(&cfg.Device); err != nil {
		return err
	}

	if err := validateDetection(&cfg.Detection); err != nil {
		return err
	}

	if err := validateCursor(&cfg.Cursor); err != nil {
		return err
	}

	validateMQTT(&cfg.MQTT)

	if cfg.Dashboard.ListenAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.Dashboard.ListenAddress); err != nil {
			return fmt.Errorf("invalid dashboard address: %w", err)
		}
	}

	if cfg.Update.SourceURL != "" {
		if _, err := url.ParseRequestURI(cfg.Update.SourceURL); err != nil {
			return fmt.Errorf("invalid update source url: %w", err)
		}
	}

	return validateHost(&cfg.Host)
}

func validateDevice(d *Device) error {
	setDefault(&d.ListenAddress, ":8080")
	setDefault(&d.CalibrationFile, DefaultCalibrationFilename)

	if d.PollInterval <= 0 {
		d.PollInterval = 20 * time.Millisecond
	}

	if d.I2CAddress == 0 {
		d.I2CAddress = 0x68
	}

	if d.SerialBaud == 0 {
		d.SerialBaud = 115200
	}

	if _, err := net.ResolveTCPAddr("tcp", d.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if d.ControlAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", d.ControlAddress); err != nil {
			return fmt.Errorf("invalid control address: %w", err)
		}
	}

	switch d.Sensor {
	case "", SensorMPU6050:
		d.Sensor = SensorMPU6050
	case SensorReplay:
		if d.ReplayFile == "" {
			return errReplayFileRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownSensor, d.Sensor)
	}

	return nil
}

//nolint:cyclop,gocognit // Flat list of defaults reads better than a table.
func validateDetection(d *Detection) error {
	c := &d.Calibration
	if c.SampleCount <= 0 {
		c.SampleCount = 100
	}

	if c.SampleDelay <= 0 {
		c.SampleDelay = 10 * time.Millisecond
	}

	if c.StabilityThreshold < 0 {
		c.StabilityThreshold = 0
	}

	setDefaultFloat(&d.Rest.AccelThreshold, 1000)
	setDefaultFloat(&d.Rest.GyroThreshold, 100)

	setDefaultFloat(&d.Shake.Threshold, 10000)

	if d.Shake.Alternations <= 0 {
		d.Shake.Alternations = 2
	}

	if d.Shake.Window <= 0 {
		d.Shake.Window = time.Second
	}

	if d.Shake.Debounce <= 0 {
		d.Shake.Debounce = 500 * time.Millisecond
	}

	setDefault(&d.Circle.Axis, "z")

	switch d.Circle.Axis {
	case "x", "y", "z":
	default:
		return fmt.Errorf("%w: %q", errUnknownAxis, d.Circle.Axis)
	}

	setDefaultFloat(&d.Circle.Threshold, 5000)
	setDefaultFloat(&d.Circle.PurityTolerance, 6000)

	if d.Circle.MinSamples <= 0 {
		d.Circle.MinSamples = 10
	}

	if d.Circle.Cooldown <= 0 {
		d.Circle.Cooldown = time.Second
	}

	setDefaultFloat(&d.Tilt.Up, 10000)
	setDefaultFloat(&d.Tilt.Down, 10000)
	// Lateral tilts sit above the shake threshold so a shake swing is not a tilt.
	setDefaultFloat(&d.Tilt.Left, 20000)
	setDefaultFloat(&d.Tilt.Right, 20000)

	if len(d.Priority) == 0 {
		d.Priority = []string{"shake", "circle", "tilt"}
	}

	for _, name := range d.Priority {
		switch name {
		case "shake", "circle", "tilt":
		default:
			return fmt.Errorf("%w: %q", errUnknownDetector, name)
		}
	}

	if d.Cooldown <= 0 {
		d.Cooldown = 300 * time.Millisecond
	}

	setDefaultFloat(&d.NeutralBand, 3000)

	return nil
}

func validateCursor(c *Cursor) error {
	setDefault(&c.Source, CursorSourceGyro)

	switch c.Source {
	case CursorSourceGyro, CursorSourceTilt:
	default:
		return fmt.Errorf("%w: %q", errUnknownCursorSource, c.Source)
	}

	setDefaultFloat(&c.Sensitivity, 1.0/150.0)
	setDefaultFloat(&c.TiltGain, 0.5)
	setDefaultFloat(&c.MaxSpeed, 100)

	return nil
}

func validateMQTT(m *MQTT) {
	setDefault(&m.TopicPrefix, "airmouse")

	if m.QoS > 2 {
		m.QoS = 2
	}
}

func validateHost(h *Host) error {
	setDefault(&h.DeviceAddress, "192.168.4.1:80")

	if h.Smoothing < 0 || h.Smoothing >= 1 {
		return errInvalidSmoothing
	}

	setDefaultFloat(&h.DeadZone, 0.05)
	setDefaultFloat(&h.Speed, 1)

	if h.DeviceAddress == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(h.DeviceAddress); err != nil {
		return fmt.Errorf("invalid device address: %w", err)
	}

	return nil
}

func setDefault(value *string, def string) {
	if *value == "" {
		*value = def
	}
}

func setDefaultFloat(value *float64, def float64) {
	if *value <= 0 {
		*value = def
	}
}
