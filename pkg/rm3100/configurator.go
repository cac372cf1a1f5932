package rm3100

import "fmt"

// ConfigBuilder collects cycle count and update rate changes and writes them
// to the device in one Apply call. Only the settings that were set are written.
type ConfigBuilder struct {
	dev         *Dev
	cycleCounts *[3]uint16
	rate        *UpdateRate
	continuous  bool
}

// NewConfigBuilder constructs ConfigBuilder
func NewConfigBuilder(dev *Dev) *ConfigBuilder {
	return &ConfigBuilder{dev: dev}
}

// CycleCount sets the same cycle count on every axis
func (obj *ConfigBuilder) CycleCount(cc uint16) *ConfigBuilder {
	return obj.AxisCycleCounts(cc, cc, cc)
}

// AxisCycleCounts sets per axis cycle counts
func (obj *ConfigBuilder) AxisCycleCounts(x, y, z uint16) *ConfigBuilder {
	obj.cycleCounts = &[3]uint16{x, y, z}
	return obj
}

// Continuous selects free running mode at the given rate
func (obj *ConfigBuilder) Continuous(rate UpdateRate) *ConfigBuilder {
	obj.rate = &rate
	obj.continuous = true
	return obj
}

// Polled leaves the device in single measurement mode
func (obj *ConfigBuilder) Polled() *ConfigBuilder {
	obj.rate = nil
	obj.continuous = false
	return obj
}

// Apply writes cycle counts first, then the measurement mode. It returns the
// update rate in effect, or -1 in polled mode.
func (obj *ConfigBuilder) Apply() (UpdateRate, error) {
	if obj.cycleCounts != nil {
		cc := obj.cycleCounts
		if err := obj.dev.SetCycleCounts(cc[0], cc[1], cc[2]); err != nil {
			return -1, fmt.Errorf("failed to apply config: %w", err)
		}
	}
	if !obj.continuous {
		if err := obj.dev.StopContinuous(); err != nil {
			return -1, fmt.Errorf("failed to apply config: %w", err)
		}
		return -1, nil
	}
	rate, err := obj.dev.ConfigureContinuous(*obj.rate)
	if err != nil {
		return rate, fmt.Errorf("failed to apply config: %w", err)
	}
	return rate, nil
}
