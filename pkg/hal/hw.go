package hal

import (
	"errors"
	"time"
)

// BitOrder selects which bit of a byte is shifted out first.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// Mode is the SPI clock mode, CPOL in bit 1 and CPHA in bit 0.
type Mode uint8

const (
	Mode0 Mode = iota
	Mode1
	Mode2
	Mode3
)

// Settings are the electrical parameters of one device. They are handed to
// the transport at the start of every transaction.
type Settings struct {
	Frequency uint32 // Hz
	Order     BitOrder
	Mode      Mode
}

var ErrSettingsChanged = errors.New("transport already configured with different settings")

// Transport is a byte oriented synchronous serial link.
type Transport interface {
	// Begin claims the link for one transaction using the given settings.
	Begin(s Settings) error
	// Transfer shifts out w and returns the byte shifted in on the same clocks.
	Transfer(w byte) (byte, error)
	// End releases the link.
	End() error
}

// ChipSelect drives the select line of one device. Asserted is logic low.
type ChipSelect interface {
	Assert() error
	Deassert() error
}

// Delayer blocks the caller for at least d.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer waits on the wall clock.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}
