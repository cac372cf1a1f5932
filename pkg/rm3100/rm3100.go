// Package rm3100 drives a PNI RM3100 three axis magnetometer over SPI.
package rm3100

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/mbalug7/go-rm3100/pkg/hal"
)

// Sample holds raw signed counts in device axis order X, Y, Z.
type Sample = [3]int32

// Field holds scaled readings in board axis order X, Y, Z.
type Field = [3]float64

const (
	// CountsPerUnit converts raw counts to field units.
	CountsPerUnit = 75.0

	Frequency = 1000000
	// ChipSelectDelay is held after asserting and after deasserting the select line.
	ChipSelectDelay = 10 * time.Microsecond
	// ConversionTime is the wait between a poll request and reading its results.
	ConversionTime = 10 * time.Millisecond
)

var ErrByteCount = errors.New("register read must be 1 to 3 bytes")

// Settings are the bus parameters of the RM3100: 1 MHz, MSB first, mode 0.
var Settings = hal.Settings{
	Frequency: Frequency,
	Order:     hal.MSBFirst,
	Mode:      hal.Mode0,
}

type config struct {
	delayer hal.Delayer
	bus     *hal.Bus
	log     logr.Logger
}

type Option func(*config)

// WithDelayer replaces the wall clock used for select and conversion waits.
func WithDelayer(d hal.Delayer) Option {
	return func(c *config) {
		c.delayer = d
	}
}

// WithBus shares the link with other devices, one transaction at a time.
func WithBus(b *hal.Bus) Option {
	return func(c *config) {
		c.bus = b
	}
}

func WithLogger(l logr.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// Dev is an RM3100 bound to one chip-select line.
type Dev struct {
	dev *hal.Device
	log logr.Logger
}

// New binds the driver to its chip-select line and puts the line in its idle
// state. No register is touched.
func New(t hal.Transport, cs hal.ChipSelect, opts ...Option) (*Dev, error) {
	cfg := config{
		delayer: hal.SleepDelayer{},
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.WithName("rm3100")
	devOpts := []hal.DeviceOption{
		hal.WithDelayer(cfg.delayer),
		hal.WithSetup(ChipSelectDelay),
		hal.WithSettle(ChipSelectDelay),
		hal.WithName("rm3100"),
		hal.WithLogger(log),
	}
	if cfg.bus != nil {
		devOpts = append(devOpts, hal.WithBus(cfg.bus))
	}
	dev, err := hal.NewDevice(t, cs, Settings, devOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create rm3100 device: %w", err)
	}
	return &Dev{dev: dev, log: log}, nil
}

// ConfigureContinuous starts free running measurement of all axes at the
// given rate. A rate outside the table is replaced by DefaultUpdateRate and
// reported on the logger; the rate actually written is returned.
// The rate register is written before the mode register. A failure between
// the two leaves the device partially configured.
func (obj *Dev) ConfigureContinuous(rate UpdateRate) (UpdateRate, error) {
	if !rate.Valid() {
		obj.log.Info("update rate out of range, using default", "requested", int(rate), "applied", int(DefaultUpdateRate))
		rate = DefaultUpdateRate
	}
	if err := obj.writeRegister(RegTMRC, rate.TMRC()); err != nil {
		return rate, fmt.Errorf("failed to set update rate: %w", err)
	}
	if err := obj.writeRegister(RegCMM, cmmEnable); err != nil {
		return rate, fmt.Errorf("failed to enable continuous mode: %w", err)
	}
	obj.log.V(1).Info("continuous mode enabled", "rate", rate.String())
	return rate, nil
}

// StopContinuous clears the continuous measurement mode register.
func (obj *Dev) StopContinuous() error {
	if err := obj.writeRegister(RegCMM, cmmDisable); err != nil {
		return fmt.Errorf("failed to disable continuous mode: %w", err)
	}
	return nil
}

// SingleMeasurement polls all three axes, waits ConversionTime and reads
// the raw counts into dst. dst is zeroed before any result is read.
func (obj *Dev) SingleMeasurement(dst *Sample) error {
	if err := obj.writeRegister(RegPoll, pollAllAxes); err != nil {
		return fmt.Errorf("failed to request measurement: %w", err)
	}
	*dst = Sample{}

	obj.dev.Delay(ConversionTime)

	for i, reg := range [3]hal.RegAddress{RegMX, RegMY, RegMZ} {
		v, err := obj.readRegister(reg, 3)
		if err != nil {
			return fmt.Errorf("failed to read measurement axis %d: %w", i, err)
		}
		dst[i] = v
	}
	return nil
}

// ReadResult reads the latest measurement and scales it to field units,
// rotated into board orientation: X from the device Y axis, Y from the device
// X axis and Z inverted. Nothing checks that a measurement was started; without
// one the registers hold stale data.
func (obj *Dev) ReadResult(dst *Field) error {
	var raw Sample
	for i, reg := range [3]hal.RegAddress{RegMX, RegMY, RegMZ} {
		v, err := obj.readRegister(reg, 3)
		if err != nil {
			return fmt.Errorf("failed to read result axis %d: %w", i, err)
		}
		raw[i] = v
	}
	*dst = Orient(raw)
	return nil
}

// Measure runs SingleMeasurement and returns the result the way ReadResult does.
func (obj *Dev) Measure(dst *Field) error {
	var raw Sample
	if err := obj.SingleMeasurement(&raw); err != nil {
		return err
	}
	*dst = Orient(raw)
	return nil
}

// Orient maps raw device counts to scaled board axes.
func Orient(raw Sample) Field {
	return Field{
		float64(raw[1]) / CountsPerUnit,
		float64(raw[0]) / CountsPerUnit,
		float64(-raw[2]) / CountsPerUnit,
	}
}

// SetCycleCounts writes the per-axis cycle counts in one burst starting at CCX.
func (obj *Dev) SetCycleCounts(x, y, z uint16) error {
	w := []byte{
		RegCCX.Frame(hal.Write),
		byte(x >> 8), byte(x),
		byte(y >> 8), byte(y),
		byte(z >> 8), byte(z),
	}
	if err := obj.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("failed to write cycle counts: %w", err)
	}
	return nil
}

// CycleCounts reads back the per-axis cycle counts.
func (obj *Dev) CycleCounts() (x, y, z uint16, err error) {
	buf := make([]byte, 6)
	if err = obj.dev.TxNoSettle([]byte{RegCCX.Frame(hal.Read)}, buf); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to read cycle counts: %w", err)
	}
	x = uint16(buf[0])<<8 | uint16(buf[1])
	y = uint16(buf[2])<<8 | uint16(buf[3])
	z = uint16(buf[4])<<8 | uint16(buf[5])
	return x, y, z, nil
}

func (obj *Dev) writeRegister(reg hal.RegAddress, value byte) error {
	return obj.dev.Tx([]byte{reg.Frame(hal.Write), value}, nil)
}

// readRegister returns n bytes starting at reg, big-endian, sign extended
// from bit 15.
func (obj *Dev) readRegister(reg hal.RegAddress, n int) (int32, error) {
	if n < 1 || n > 3 {
		return 0, fmt.Errorf("read of %d bytes at 0x%02x: %w", n, reg.ToByte(), ErrByteCount)
	}
	buf := make([]byte, n)
	if err := obj.dev.TxNoSettle([]byte{reg.Frame(hal.Read)}, buf); err != nil {
		return 0, err
	}
	var raw uint32
	for _, b := range buf {
		raw = raw<<8 | uint32(b)
	}
	return signExtend(raw), nil
}

// signExtend treats bit 15 as the sign bit whatever the read width was.
func signExtend(raw uint32) int32 {
	if raw&0x8000 != 0 {
		raw |= 0xFFFF0000
	}
	return int32(raw)
}

var _ hal.Magnetometer = (*Dev)(nil)
