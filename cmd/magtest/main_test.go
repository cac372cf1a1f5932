//go:build linux

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/mbalug7/go-rm3100/pkg/hal"
	"github.com/mbalug7/go-rm3100/pkg/hal/haltest"
	"github.com/mbalug7/go-rm3100/pkg/rm3100"
)

func parse(t *testing.T, args ...string) *options {
	t.Helper()
	var got *options
	cmd := newRootCmd(func(_ context.Context, opts *options) error {
		got = opts
		return nil
	})
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute(%v) failed: %v", args, err)
	}
	if got == nil {
		t.Fatalf("run not called for %v", args)
	}
	return got
}

func TestRootCmdDefaults(t *testing.T) {
	want := options{
		spiDev:     "/dev/spidev0.0",
		dacSPIDev:  "/dev/spidev0.1",
		gpioChip:   "gpiochip0",
		magCS:      8,
		dacCS:      7,
		rate:       int(rm3100.DefaultUpdateRate),
		cycleCount: rm3100.DefaultCycleCount,
		interval:   100 * time.Millisecond,
		baud:       115200,
		dacValue:   -1,
	}
	got := parse(t)
	if diff := cmp.Diff(want, *got, cmp.AllowUnexported(options{})); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestRootCmdFlags(t *testing.T) {
	got := parse(t,
		"--spi", "SPI1.0",
		"--rate", "3",
		"--cycle-count", "400",
		"--single",
		"--count", "10",
		"--interval", "0s",
		"--serial", "/dev/ttyS0",
		"--baud", "9600",
		"--dac", "2048",
		"-v", "2",
	)
	if got.spiDev != "SPI1.0" || got.rate != 3 || got.cycleCount != 400 || !got.single ||
		got.count != 10 || got.interval != 0 || got.serialPort != "/dev/ttyS0" ||
		got.baud != 9600 || got.dacValue != 2048 || got.verbosity != 2 {
		t.Errorf("flags parsed wrong: %+v", *got)
	}
}

func TestOpenOutputStdout(t *testing.T) {
	out, closeOut, err := openOutput(&options{})
	if err != nil {
		t.Fatal(err)
	}
	defer closeOut()
	if out != os.Stdout {
		t.Errorf("openOutput() without --serial = %v, want stdout", out)
	}
}

func TestOpenOutputSerialMissing(t *testing.T) {
	opts := &options{serialPort: filepath.Join(t.TempDir(), "no-such-tty"), baud: 115200}
	if _, _, err := openOutput(opts); err == nil {
		t.Fatal("expected error opening a missing serial port")
	}
}

func TestSetDACKeepsLineUntilRelease(t *testing.T) {
	rec := haltest.NewRecorder()
	released := false
	open := func(*options) (hal.Transport, hal.ChipSelect, func(), error) {
		return rec, rec.CS(), func() { released = true }, nil
	}

	release, err := setDAC(&options{dacValue: 0x1ABC}, hal.NewBus(logr.Discard()), logr.Discard(), open)
	if err != nil {
		t.Fatal(err)
	}
	if released {
		t.Fatal("dac line released right after the write")
	}
	if diff := cmp.Diff([][]byte{{0x0A, 0xBC}}, rec.Transactions()); diff != "" {
		t.Errorf("dac write mismatch (-want +got):\n%s", diff)
	}
	release()
	if !released {
		t.Error("release did not free the dac line")
	}
}

func TestSetDACReleasesOnWriteError(t *testing.T) {
	rec := haltest.NewRecorder()
	rec.TransferErr = errors.New("open circuit")
	released := false
	open := func(*options) (hal.Transport, hal.ChipSelect, func(), error) {
		return rec, rec.CS(), func() { released = true }, nil
	}
	if _, err := setDAC(&options{dacValue: 1}, hal.NewBus(logr.Discard()), logr.Discard(), open); err == nil {
		t.Fatal("expected write error")
	}
	if !released {
		t.Error("dac line not released after failed write")
	}
}
