// Package haltest provides in-memory stand-ins for the hal transport,
// chip-select and delay capabilities. Everything that happens on them is
// appended to one ordered event log.
package haltest

import (
	"fmt"
	"time"

	"github.com/mbalug7/go-rm3100/pkg/hal"
)

type Kind string

const (
	Begin    Kind = "begin"
	End      Kind = "end"
	Assert   Kind = "assert"
	Deassert Kind = "deassert"
	Transfer Kind = "xfer"
	Delay    Kind = "delay"
)

type Event struct {
	Kind     Kind
	Out      byte // Transfer: byte sent
	In       byte // Transfer: byte returned
	Wait     time.Duration
	Settings hal.Settings
}

func (e Event) String() string {
	switch e.Kind {
	case Transfer:
		return fmt.Sprintf("xfer %02x->%02x", e.Out, e.In)
	case Delay:
		return fmt.Sprintf("delay %s", e.Wait)
	case Begin:
		return fmt.Sprintf("begin %+v", e.Settings)
	}
	return string(e.Kind)
}

// Recorder is a fake Transport. Replies are consumed one per Transfer; once
// they run out Fill is returned.
type Recorder struct {
	Events []Event
	Fill   byte

	// TransferErr is returned by every Transfer after ErrAfter successful ones.
	TransferErr error
	ErrAfter    int
	// CSErr is returned by Assert.
	CSErr error

	replies   []byte
	transfers int
	selected  bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Reply queues bytes to be returned by the next transfers.
func (obj *Recorder) Reply(b ...byte) *Recorder {
	obj.replies = append(obj.replies, b...)
	return obj
}

// ReplyRead queues one register read: a dummy byte for the address phase
// followed by data.
func (obj *Recorder) ReplyRead(data ...byte) *Recorder {
	obj.replies = append(obj.replies, 0x00)
	obj.replies = append(obj.replies, data...)
	return obj
}

func (obj *Recorder) Begin(s hal.Settings) error {
	obj.Events = append(obj.Events, Event{Kind: Begin, Settings: s})
	return nil
}

func (obj *Recorder) End() error {
	obj.Events = append(obj.Events, Event{Kind: End})
	return nil
}

func (obj *Recorder) Transfer(w byte) (byte, error) {
	if obj.TransferErr != nil && obj.transfers >= obj.ErrAfter {
		return 0, obj.TransferErr
	}
	obj.transfers++
	in := obj.Fill
	if len(obj.replies) > 0 {
		in = obj.replies[0]
		obj.replies = obj.replies[1:]
	}
	obj.Events = append(obj.Events, Event{Kind: Transfer, Out: w, In: in})
	return in, nil
}

// Selected reports whether the chip-select line is currently asserted.
func (obj *Recorder) Selected() bool {
	return obj.selected
}

// CS returns the chip-select line that logs into this recorder.
func (obj *Recorder) CS() hal.ChipSelect {
	return chipSelect{obj}
}

// Delayer returns a delayer that records waits instead of sleeping.
func (obj *Recorder) Delayer() hal.Delayer {
	return delayer{obj}
}

type chipSelect struct {
	r *Recorder
}

func (c chipSelect) Assert() error {
	if c.r.CSErr != nil {
		return c.r.CSErr
	}
	c.r.selected = true
	c.r.Events = append(c.r.Events, Event{Kind: Assert})
	return nil
}

func (c chipSelect) Deassert() error {
	c.r.selected = false
	c.r.Events = append(c.r.Events, Event{Kind: Deassert})
	return nil
}

type delayer struct {
	r *Recorder
}

func (d delayer) Delay(wait time.Duration) {
	d.r.Events = append(d.r.Events, Event{Kind: Delay, Wait: wait})
}

// Transactions returns the bytes sent inside each chip-select bracket.
func (obj *Recorder) Transactions() [][]byte {
	var out [][]byte
	var cur []byte
	open := false
	for _, e := range obj.Events {
		switch e.Kind {
		case Assert:
			open = true
			cur = []byte{}
		case Transfer:
			if open {
				cur = append(cur, e.Out)
			}
		case Deassert:
			if open {
				out = append(out, cur)
				open = false
			}
		}
	}
	return out
}

// Delays returns every recorded wait in order.
func (obj *Recorder) Delays() []time.Duration {
	var out []time.Duration
	for _, e := range obj.Events {
		if e.Kind == Delay {
			out = append(out, e.Wait)
		}
	}
	return out
}

// Kinds returns the event kinds in order.
func (obj *Recorder) Kinds() []Kind {
	out := make([]Kind, 0, len(obj.Events))
	for _, e := range obj.Events {
		out = append(out, e.Kind)
	}
	return out
}

// Reset clears the event log, keeping queued replies.
func (obj *Recorder) Reset() {
	obj.Events = nil
}
