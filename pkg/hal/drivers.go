package hal

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// Configurer applies electrical settings to a bus. It is called by
// DriversTransport whenever a transaction asks for settings different from
// the last ones applied.
type Configurer func(s Settings) error

// DriversTransport adapts a tinygo drivers.SPI bus to Transport.
type DriversTransport struct {
	bus       drivers.SPI
	configure Configurer
	applied   *Settings
}

// NewDriversTransport wraps bus. configure may be nil when the bus is set up
// once by the caller and never changes.
func NewDriversTransport(bus drivers.SPI, configure Configurer) *DriversTransport {
	return &DriversTransport{
		bus:       bus,
		configure: configure,
	}
}

func (obj *DriversTransport) Begin(s Settings) error {
	if obj.configure == nil {
		return nil
	}
	if obj.applied != nil && *obj.applied == s {
		return nil
	}
	if err := obj.configure(s); err != nil {
		return fmt.Errorf("failed to configure bus: %w", err)
	}
	applied := s
	obj.applied = &applied
	return nil
}

func (obj *DriversTransport) Transfer(w byte) (byte, error) {
	return obj.bus.Transfer(w)
}

func (obj *DriversTransport) End() error {
	return nil
}
