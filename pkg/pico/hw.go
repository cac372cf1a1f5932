//go:build pico

// Package pico provides the hal on an RP2040 board built with TinyGo.
package pico

import (
	"machine"

	"github.com/mbalug7/go-rm3100/pkg/hal"
)

// NewTransport returns a transport on spi. The controller is reconfigured
// whenever a transaction asks for other settings than the previous one, so
// the RM3100 and the DAC121 can share one controller.
func NewTransport(spi *machine.SPI, sck, sdo, sdi machine.Pin) *hal.DriversTransport {
	return hal.NewDriversTransport(spi, func(s hal.Settings) error {
		return spi.Configure(machine.SPIConfig{
			Frequency: s.Frequency,
			SCK:       sck,
			SDO:       sdo,
			SDI:       sdi,
			LSBFirst:  s.Order == hal.LSBFirst,
			Mode:      uint8(s.Mode),
		})
	})
}

// ChipSelect is an active low output pin.
type ChipSelect struct {
	pin machine.Pin
}

// NewChipSelect configures pin as an output, driven high.
func NewChipSelect(pin machine.Pin) *ChipSelect {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.High()
	return &ChipSelect{pin: pin}
}

func (obj *ChipSelect) Assert() error {
	obj.pin.Low()
	return nil
}

func (obj *ChipSelect) Deassert() error {
	obj.pin.High()
	return nil
}
