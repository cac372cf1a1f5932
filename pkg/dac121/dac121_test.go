package dac121

import (
	"errors"
	"math"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	"github.com/mbalug7/go-rm3100/pkg/hal"
	"github.com/mbalug7/go-rm3100/pkg/hal/haltest"
)

func newTestDev(t *testing.T, rec *haltest.Recorder) *Dev {
	t.Helper()
	dev, err := New(rec, rec.CS(), WithDelayer(rec.Delayer()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec.Reset()
	return dev
}

func TestWrite(t *testing.T) {
	tests := []struct {
		in   uint16
		want []byte
	}{
		{0x0000, []byte{0x00, 0x00}},
		{0x0ABC, []byte{0x0A, 0xBC}},
		{0x0FFF, []byte{0x0F, 0xFF}},
		{0xFFFF, []byte{0x0F, 0xFF}},
		{0x1000, []byte{0x00, 0x00}},
		{0xF123, []byte{0x01, 0x23}},
	}
	for _, tt := range tests {
		rec := haltest.NewRecorder()
		dev := newTestDev(t, rec)
		if err := dev.Write(tt.in); err != nil {
			t.Fatal(err)
		}
		tx := rec.Transactions()
		if diff := cmp.Diff([][]byte{tt.want}, tx); diff != "" {
			t.Errorf("Write(0x%04x) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestWriteNeverSetsControlBits(t *testing.T) {
	rec := haltest.NewRecorder()
	dev := newTestDev(t, rec)
	for v := 0; v <= 0xFFFF; v += 7 {
		if err := dev.Write(uint16(v)); err != nil {
			t.Fatal(err)
		}
	}
	for _, tx := range rec.Transactions() {
		if tx[0]&0xF0 != 0 {
			t.Fatalf("control bits set in word % x", tx)
		}
	}
}

func TestWriteTransaction(t *testing.T) {
	rec := haltest.NewRecorder()
	dev := newTestDev(t, rec)
	if err := dev.Write(1); err != nil {
		t.Fatal(err)
	}
	want := []haltest.Event{
		{Kind: haltest.Begin, Settings: Settings},
		{Kind: haltest.Assert},
		{Kind: haltest.Delay, Wait: ChipSelectDelay},
		{Kind: haltest.Transfer, Out: 0x00},
		{Kind: haltest.Transfer, Out: 0x01},
		{Kind: haltest.Deassert},
		{Kind: haltest.Delay, Wait: ChipSelectDelay},
		{Kind: haltest.End},
	}
	if diff := cmp.Diff(want, rec.Events); diff != "" {
		t.Errorf("transaction mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteError(t *testing.T) {
	errBus := errors.New("open circuit")
	rec := haltest.NewRecorder()
	dev := newTestDev(t, rec)
	rec.TransferErr = errBus
	if err := dev.Write(5); !errors.Is(err, errBus) {
		t.Errorf("Write() error = %v, want wrapped bus error", err)
	}
}

func TestSetFraction(t *testing.T) {
	tests := []struct {
		f    float64
		want []byte
	}{
		{0, []byte{0x00, 0x00}},
		{1, []byte{0x0F, 0xFF}},
		{2.5, []byte{0x0F, 0xFF}},
		{-1, []byte{0x00, 0x00}},
		{math.NaN(), []byte{0x00, 0x00}},
		{0.5, []byte{0x08, 0x00}},
	}
	for _, tt := range tests {
		rec := haltest.NewRecorder()
		dev := newTestDev(t, rec)
		if err := dev.SetFraction(tt.f); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([][]byte{tt.want}, rec.Transactions()); diff != "" {
			t.Errorf("SetFraction(%v) mismatch (-want +got):\n%s", tt.f, diff)
		}
	}
}

func TestOptions(t *testing.T) {
	var logged []string
	log := funcr.New(func(prefix, args string) {
		logged = append(logged, prefix)
	}, funcr.Options{Verbosity: 2})
	bus := hal.NewBus(logr.Discard())

	rec := haltest.NewRecorder()
	dev, err := New(rec, rec.CS(), WithDelayer(rec.Delayer()), WithBus(bus), WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Write(0x123); err != nil {
		t.Fatal(err)
	}
	if bus.Holder() != "" {
		t.Errorf("bus still held after write: %q", bus.Holder())
	}
	if len(logged) != 1 || logged[0] != "dac121" {
		t.Errorf("transaction trace = %q, want one line named dac121", logged)
	}
	for _, d := range rec.Delays() {
		if d != ChipSelectDelay {
			t.Errorf("unexpected delay %s", d)
		}
	}
}
