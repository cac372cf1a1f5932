package rm3100

import (
	"fmt"

	"github.com/mbalug7/go-rm3100/pkg/hal"
)

// Register map.
const (
	RegPoll hal.RegAddress = 0x00 // single measurement trigger
	RegCMM  hal.RegAddress = 0x01 // continuous measurement mode
	RegCCX  hal.RegAddress = 0x04 // cycle count X, MSB then LSB
	RegCCY  hal.RegAddress = 0x06
	RegCCZ  hal.RegAddress = 0x08
	RegTMRC hal.RegAddress = 0x0B // continuous mode update rate
	RegMX   hal.RegAddress = 0x24 // measurement X, 3 bytes
	RegMY   hal.RegAddress = 0x27
	RegMZ   hal.RegAddress = 0x2A
)

const (
	pollAllAxes byte = 0x70 // PMX | PMY | PMZ
	cmmEnable   byte = 0x79 // CMX | CMY | CMZ | DRDM=2 | START
	cmmDisable  byte = 0x00
	tmrcBase    byte = 0x92
)

// UpdateRate is an index into the continuous mode rate table, TMRC = 0x92 + index.
type UpdateRate int

const (
	Rate600Hz UpdateRate = iota
	Rate300Hz
	Rate150Hz
	Rate75Hz
	Rate37Hz
	Rate18Hz
	Rate9Hz
	Rate4_5Hz
	Rate2_3Hz
	Rate1_2Hz
	Rate0_6Hz
	Rate0_3Hz
	Rate0_15Hz
	Rate0_075Hz
	Rate0_0375Hz

	MinUpdateRate     = Rate600Hz
	MaxUpdateRate     = Rate0_0375Hz
	DefaultUpdateRate = Rate18Hz
)

// Valid reports whether r is inside the rate table.
func (r UpdateRate) Valid() bool {
	return r >= MinUpdateRate && r <= MaxUpdateRate
}

// Hz returns the nominal update frequency. Each step halves the rate.
func (r UpdateRate) Hz() float64 {
	if !r.Valid() {
		return 0
	}
	return 600.0 / float64(int(1)<<uint(r))
}

// TMRC returns the byte written to the update rate register.
func (r UpdateRate) TMRC() byte {
	return tmrcBase + byte(r)
}

func (r UpdateRate) String() string {
	if !r.Valid() {
		return fmt.Sprintf("UpdateRate(%d)", int(r))
	}
	return fmt.Sprintf("%gHz", r.Hz())
}

// DefaultCycleCount is the power-on cycle count of every axis.
const DefaultCycleCount uint16 = 200
