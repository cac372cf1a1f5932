// Package sampler reads the magnetometer on a fixed period and writes one
// text line per reading.
package sampler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/mbalug7/go-rm3100/pkg/rm3100"
)

// Source produces one scaled reading per call.
type Source interface {
	Read(dst *rm3100.Field) error
}

// Polled triggers a conversion for every reading.
type Polled struct {
	Dev *rm3100.Dev
}

func (p Polled) Read(dst *rm3100.Field) error {
	return p.Dev.Measure(dst)
}

// Continuous reads the result registers of a free running device.
type Continuous struct {
	Dev *rm3100.Dev
}

func (c Continuous) Read(dst *rm3100.Field) error {
	return c.Dev.ReadResult(dst)
}

type Sampler struct {
	Source   Source
	Out      io.Writer
	Interval time.Duration
	// Count stops the run after that many lines. Zero runs until ctx is done.
	Count int
	// MaxFailures ends the run after that many reads in a row failed.
	// Zero means DefaultMaxFailures.
	MaxFailures int
	Log         logr.Logger
}

const (
	DefaultMaxFailures = 5
	// failureBackoff is the wait after a failed read when no Interval is set.
	failureBackoff = 10 * time.Millisecond
)

// Run samples until Count lines were written or ctx is cancelled. A failed
// read is logged and retried after the next tick; MaxFailures failed reads in
// a row or a failed write end the run with an error.
func (obj *Sampler) Run(ctx context.Context) error {
	maxFailures := obj.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	failures := 0

	var ticker *time.Ticker
	if obj.Interval > 0 {
		ticker = time.NewTicker(obj.Interval)
		defer ticker.Stop()
	}

	var f rm3100.Field
	for n := 0; obj.Count == 0 || n < obj.Count; {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := obj.Source.Read(&f)
		if err != nil {
			failures++
			obj.Log.Error(err, "failed to read sample", "consecutive", failures)
			if failures >= maxFailures {
				return fmt.Errorf("failed to read %d samples in a row: %w", failures, err)
			}
		} else {
			failures = 0
			if _, err := io.WriteString(obj.Out, FormatLine(f)); err != nil {
				return fmt.Errorf("failed to write sample: %w", err)
			}
			n++
		}

		switch {
		case ticker != nil:
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		case err != nil:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(failureBackoff):
			}
		}
	}
	return nil
}

// FormatLine renders a reading as "x,y,z\n".
func FormatLine(f rm3100.Field) string {
	return fmt.Sprintf("%.3f,%.3f,%.3f\n", f[0], f[1], f[2])
}
