package sensor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// MPU-6050 register map subset.
const (
	regAccelXOut  = 0x3B
	regPowerMgmt1 = 0x6B
	regWhoAmI     = 0x75

	whoAmIValue = 0x68

	// Accel (6) + temperature (2) + gyro (6).
	burstLength = 14
)

var errUnexpectedDevice = errors.New("unexpected WHO_AM_I value")

// MPU6050 reads accelerometer and gyroscope registers over I2C.
type MPU6050 struct {
	bus i2c.BusCloser
	dev *i2c.Dev

	mu  sync.Mutex
	buf [burstLength]byte
}

// OpenMPU6050 initializes periph, opens the bus and wakes the sensor.
// An empty bus name selects the first available bus.
func OpenMPU6050(busName string, address uint16) (*MPU6050, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	m := &MPU6050{
		bus: bus,
		dev: &i2c.Dev{Addr: address, Bus: bus},
	}

	if err = m.init(); err != nil {
		_ = bus.Close()
		return nil, err
	}

	return m, nil
}

func (m *MPU6050) init() error {
	who := make([]byte, 1)
	if err := m.dev.Tx([]byte{regWhoAmI}, who); err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}

	if who[0] != whoAmIValue {
		return fmt.Errorf("%w: 0x%02X", errUnexpectedDevice, who[0])
	}

	// Clear the sleep bit.
	if err := m.dev.Tx([]byte{regPowerMgmt1, 0x00}, nil); err != nil {
		return fmt.Errorf("wake sensor: %w", err)
	}

	return nil
}

// Read implements Source with a single burst read starting at ACCEL_XOUT_H.
func (m *MPU6050) Read(ctx context.Context) (motion.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return motion.RawSample{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dev.Tx([]byte{regAccelXOut}, m.buf[:]); err != nil {
		return motion.RawSample{}, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return decodeBurst(m.buf[:]), nil
}

// Close releases the I2C bus.
func (m *MPU6050) Close() error {
	return m.bus.Close()
}

// decodeBurst converts the big-endian register block into a sample,
// skipping the temperature word.
func decodeBurst(b []byte) motion.RawSample {
	word := func(offset int) int32 {
		return int32(int16(binary.BigEndian.Uint16(b[offset:])))
	}

	return motion.RawSample{
		Ax: word(0),
		Ay: word(2),
		Az: word(4),
		Gx: word(8),
		Gy: word(10),
		Gz: word(12),
	}
}
