package hal

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Device binds a transport, a chip-select line and the electrical settings of
// one peripheral. Every Tx call is one complete chip-select bracket.
type Device struct {
	transport Transport
	cs        ChipSelect
	settings  Settings
	setup     time.Duration // after CS assert, before the first byte
	settle    time.Duration // after CS deassert
	delayer   Delayer
	bus       *Bus
	name      string
	log       logr.Logger
}

type DeviceOption func(*Device)

func WithDelayer(d Delayer) DeviceOption {
	return func(obj *Device) {
		obj.delayer = d
	}
}

func WithSetup(d time.Duration) DeviceOption {
	return func(obj *Device) {
		obj.setup = d
	}
}

func WithSettle(d time.Duration) DeviceOption {
	return func(obj *Device) {
		obj.settle = d
	}
}

// WithBus serialises this device's transactions with every other device
// registered on the same Bus.
func WithBus(b *Bus) DeviceOption {
	return func(obj *Device) {
		obj.bus = b
	}
}

func WithName(name string) DeviceOption {
	return func(obj *Device) {
		obj.name = name
	}
}

func WithLogger(l logr.Logger) DeviceOption {
	return func(obj *Device) {
		obj.log = l
	}
}

// NewDevice puts the chip-select line in its idle (deasserted) state.
// Nothing is sent on the link.
func NewDevice(t Transport, cs ChipSelect, s Settings, opts ...DeviceOption) (*Device, error) {
	dev := &Device{
		transport: t,
		cs:        cs,
		settings:  s,
		delayer:   SleepDelayer{},
		name:      "spi",
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(dev)
	}
	if err := cs.Deassert(); err != nil {
		return nil, fmt.Errorf("failed to set %s chip-select idle: %w", dev.name, err)
	}
	return dev, nil
}

func (obj *Device) Settings() Settings {
	return obj.settings
}

// Delay waits on the device's delayer.
func (obj *Device) Delay(d time.Duration) {
	obj.delayer.Delay(d)
}

// Tx sends w, then clocks one 0x00 byte per element of r and stores the
// responses in r, all under a single chip-select assertion. The settle delay
// follows the deassertion.
func (obj *Device) Tx(w, r []byte) error {
	return obj.tx(w, r, true)
}

// TxNoSettle is Tx without the wait after deassertion.
func (obj *Device) TxNoSettle(w, r []byte) error {
	return obj.tx(w, r, false)
}

func (obj *Device) tx(w, r []byte, settle bool) (err error) {
	if obj.bus != nil {
		release := obj.bus.Acquire(obj.name)
		defer release()
	}
	if err = obj.transport.Begin(obj.settings); err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", obj.name, err)
	}
	defer func() {
		if endErr := obj.transport.End(); endErr != nil && err == nil {
			err = fmt.Errorf("failed to end %s transaction: %w", obj.name, endErr)
		}
	}()

	if err = obj.cs.Assert(); err != nil {
		return fmt.Errorf("failed to assert %s chip-select: %w", obj.name, err)
	}
	obj.delayer.Delay(obj.setup)

	err = obj.shift(w, r)

	// the line is released even when the exchange failed
	if csErr := obj.cs.Deassert(); csErr != nil && err == nil {
		err = fmt.Errorf("failed to deassert %s chip-select: %w", obj.name, csErr)
	}
	if settle {
		obj.delayer.Delay(obj.settle)
	}
	if err == nil {
		obj.log.V(2).Info("transaction", "w", w, "r", r)
	}
	return err
}

func (obj *Device) shift(w, r []byte) error {
	for _, b := range w {
		if _, err := obj.transport.Transfer(b); err != nil {
			return fmt.Errorf("failed to write %s byte 0x%02x: %w", obj.name, b, err)
		}
	}
	for i := range r {
		in, err := obj.transport.Transfer(0x00)
		if err != nil {
			return fmt.Errorf("failed to read %s byte %d: %w", obj.name, i, err)
		}
		r[i] = in
	}
	return nil
}
