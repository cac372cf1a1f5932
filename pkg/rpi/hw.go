//go:build linux

// Package rpi provides the Linux host side of the hal: a spidev port opened
// through periph.io for data, and a GPIO line driven through the character
// device for chip-select.
package rpi

import (
	"fmt"
	"sync"

	"github.com/mbalug7/go-rm3100/pkg/hal"
	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var hostInit sync.Once
var hostErr error

func initHost() error {
	hostInit.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// Transport is one spidev port. The kernel chip-select is disabled, the
// select line is driven by a ChipSelect instead. A port connects once, on the
// first transaction; every later transaction must ask for the same settings.
type Transport struct {
	name      string
	port      spi.PortCloser
	conn      spi.Conn
	connected hal.Settings
	mu        sync.Mutex // held between Begin and End
	tx        [1]byte
	rx        [1]byte
}

// NewTransport opens the spidev port name, e.g. "/dev/spidev0.0" or "SPI0.0".
// An empty name opens the first port found.
func NewTransport(name string) (*Transport, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi port %q: %w", name, err)
	}
	return &Transport{name: name, port: port}, nil
}

func (obj *Transport) Begin(s hal.Settings) error {
	obj.mu.Lock()
	if obj.conn != nil {
		if obj.connected != s {
			obj.mu.Unlock()
			return fmt.Errorf("spi port %q connected with %+v, asked for %+v: %w", obj.name, obj.connected, s, hal.ErrSettingsChanged)
		}
		return nil
	}
	conn, err := obj.port.Connect(physic.Frequency(s.Frequency)*physic.Hertz, spiMode(s), 8)
	if err != nil {
		obj.mu.Unlock()
		return fmt.Errorf("failed to connect spi port %q: %w", obj.name, err)
	}
	obj.conn = conn
	obj.connected = s
	return nil
}

func (obj *Transport) Transfer(w byte) (byte, error) {
	obj.tx[0] = w
	if err := obj.conn.Tx(obj.tx[:], obj.rx[:]); err != nil {
		return 0, fmt.Errorf("failed to transfer on spi port %q: %w", obj.name, err)
	}
	return obj.rx[0], nil
}

func (obj *Transport) End() error {
	obj.mu.Unlock()
	return nil
}

func (obj *Transport) Close() error {
	err := obj.port.Close()
	if err != nil {
		return fmt.Errorf("failed to close spi port %q: %w", obj.name, err)
	}
	return nil
}

func spiMode(s hal.Settings) spi.Mode {
	m := spi.Mode(s.Mode&0x3) | spi.NoCS
	if s.Order == hal.LSBFirst {
		m |= spi.LSBFirst
	}
	return m
}

// ChipSelect is an active low GPIO output line.
type ChipSelect struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

// NewChipSelect requests offset on gpioChip (e.g. "gpiochip0") as an output
// that starts high, so the device is deselected from the first moment.
func NewChipSelect(gpioChip string, offset int) (*ChipSelect, error) {
	c, err := gpiod.NewChip(gpioChip, gpiod.WithConsumer("rm3100"))
	if err != nil {
		return nil, fmt.Errorf("failed to create GPIO chip: %w", err)
	}
	line, err := c.RequestLine(offset, gpiod.AsOutput(1))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to request chip-select GPIO line %d: %w", offset, err)
	}
	return &ChipSelect{chip: c, line: line}, nil
}

func (obj *ChipSelect) Assert() error {
	if err := obj.line.SetValue(0); err != nil {
		return fmt.Errorf("failed to pull chip-select low: %w", err)
	}
	return nil
}

func (obj *ChipSelect) Deassert() error {
	if err := obj.line.SetValue(1); err != nil {
		return fmt.Errorf("failed to pull chip-select high: %w", err)
	}
	return nil
}

func (obj *ChipSelect) Close() error {
	err := obj.line.Close()
	if err != nil {
		return fmt.Errorf("failed to close chip-select line: %w", err)
	}
	err = obj.chip.Close()
	if err != nil {
		return fmt.Errorf("failed to close GPIO chip: %w", err)
	}
	return nil
}
