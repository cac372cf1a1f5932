package hal

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/mazen160/go-random"
)

// Bus is the exclusive section shared by devices on one physical link. A
// holder keeps it for exactly one transaction.
type Bus struct {
	mu      sync.Mutex // held for the duration of a transaction
	muState sync.Mutex // protects holder and waiting
	holder  string
	seq     uint64
	waiting map[uint64]string // acquisition number -> owner name
	log     logr.Logger
}

func NewBus(log logr.Logger) *Bus {
	return &Bus{
		waiting: make(map[uint64]string),
		log:     log,
	}
}

// Acquire blocks until the bus is free and returns the function that frees it.
// Waiting behind another holder is reported on the logger.
func (obj *Bus) Acquire(owner string) (release func()) {
	obj.muState.Lock()
	obj.seq++
	id := obj.seq
	if obj.holder != "" {
		obj.logContention(owner, obj.holder)
	}
	obj.waiting[id] = owner
	obj.muState.Unlock()

	obj.mu.Lock()

	obj.muState.Lock()
	delete(obj.waiting, id)
	obj.holder = owner
	obj.muState.Unlock()

	return func() {
		obj.muState.Lock()
		obj.holder = ""
		obj.muState.Unlock()
		obj.mu.Unlock()
	}
}

func (obj *Bus) logContention(owner, holder string) {
	log := obj.log.V(1)
	if !log.Enabled() {
		return
	}
	session, err := random.String(16)
	if err != nil {
		session = "unknown"
	}
	log.Info("chip-select contention", "owner", owner, "session", session, "holder", holder)
}

// Waiting returns how many sessions are blocked in Acquire.
func (obj *Bus) Waiting() int {
	obj.muState.Lock()
	defer obj.muState.Unlock()
	return len(obj.waiting)
}

// Holder returns the owner name of the current transaction, or "" when idle.
func (obj *Bus) Holder() string {
	obj.muState.Lock()
	defer obj.muState.Unlock()
	return obj.holder
}
