package hal

// Magnetometer is the set of methods a three axis field sensor exposes to
// application code.
type Magnetometer interface {
	SingleMeasurement(dst *[3]int32) error
	ReadResult(dst *[3]float64) error
}

// Analog is a single channel output converter.
type Analog interface {
	Write(value uint16) error
}
