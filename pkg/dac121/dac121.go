// Package dac121 drives a TI DAC121S101 12-bit converter over SPI.
package dac121

import (
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/mbalug7/go-rm3100/pkg/hal"
)

const (
	// Max is the full scale code.
	Max uint16 = 0x0FFF

	Frequency       = 5000000
	ChipSelectDelay = 5 * time.Microsecond
)

// Settings are the bus parameters of the DAC121: 5 MHz, MSB first, mode 1.
var Settings = hal.Settings{
	Frequency: Frequency,
	Order:     hal.MSBFirst,
	Mode:      hal.Mode1,
}

type config struct {
	delayer hal.Delayer
	bus     *hal.Bus
	log     logr.Logger
}

type Option func(*config)

func WithDelayer(d hal.Delayer) Option {
	return func(c *config) {
		c.delayer = d
	}
}

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

type Dev struct {
	dev *hal.Device
}

// New binds the converter to its chip-select line and idles the line high.
func New(t hal.Transport, cs hal.ChipSelect, opts ...Option) (*Dev, error) {
	cfg := config{
		delayer: hal.SleepDelayer{},
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	devOpts := []hal.DeviceOption{
		hal.WithDelayer(cfg.delayer),
		hal.WithSetup(ChipSelectDelay),
		hal.WithSettle(ChipSelectDelay),
		hal.WithName("dac121"),
		hal.WithLogger(cfg.log.WithName("dac121")),
	}
	if cfg.bus != nil {
		devOpts = append(devOpts, hal.WithBus(cfg.bus))
	}
	dev, err := hal.NewDevice(t, cs, Settings, devOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dac121 device: %w", err)
	}
	return &Dev{dev: dev}, nil
}

// Write outputs the low 12 bits of value. The upper four bits of the word
// are always zero, which keeps the converter in normal operation.
func (obj *Dev) Write(value uint16) error {
	word := value & Max
	if err := obj.dev.Tx([]byte{byte(word >> 8), byte(word)}, nil); err != nil {
		return fmt.Errorf("failed to write dac value %d: %w", word, err)
	}
	return nil
}

// SetFraction outputs f of full scale, f clamped to [0, 1].
func (obj *Dev) SetFraction(f float64) error {
	if math.IsNaN(f) || f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	return obj.Write(uint16(math.Round(f * float64(Max))))
}

var _ hal.Analog = (*Dev)(nil)
