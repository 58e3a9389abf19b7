// Package watch implements the per-(address, message id) subscription
// registry: push-based delivery of the latest value of a watched
// register, with immediate delivery of the current value on subscribe.
package watch

import (
	"sync"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

// Registry is a two-level address -> id -> registration map. The zero
// value is ready to use.
type Registry struct {
	mu   sync.Mutex
	byID map[packet.Address]map[packet.MessageId]*registration
}

type registration struct {
	mu    sync.Mutex
	value packet.Value
	has   bool
	subs  map[int]chan packet.Value
	nextSub int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[packet.Address]map[packet.MessageId]*registration)}
}

func (r *Registry) registrationFor(addr packet.Address, id packet.MessageId) *registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byID == nil {
		r.byID = make(map[packet.Address]map[packet.MessageId]*registration)
	}
	byAddr, ok := r.byID[addr]
	if !ok {
		byAddr = make(map[packet.MessageId]*registration)
		r.byID[addr] = byAddr
	}
	reg, ok := byAddr[id]
	if !ok {
		reg = &registration{subs: make(map[int]chan packet.Value)}
		byAddr[id] = reg
	}
	return reg
}

// Notify delivers each message in messages to any registration for
// (sender, message.Id), replacing the stored last value and waking
// subscribers. Messages with no registration are ignored.
func (r *Registry) Notify(sender packet.Address, messages []packet.Message) {
	r.mu.Lock()
	byAddr, ok := r.byID[sender]
	r.mu.Unlock()
	if !ok {
		return
	}

	for _, m := range messages {
		r.mu.Lock()
		reg, ok := byAddr[m.Id]
		r.mu.Unlock()
		if !ok {
			continue
		}
		reg.notify(m.Value)
	}
}

func (reg *registration) notify(v packet.Value) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.value = v
	reg.has = true

	for _, ch := range reg.subs {
		select {
		case ch <- v:
		default:
			// Subscriber hasn't drained the previous value yet; drop the
			// stale one in the channel and push the latest so the
			// subscriber observes current state, not a backlog.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Watch is a live subscription to one (address, id) pair's raw Value
// stream. Call Close when done to free resources.
type Watch struct {
	reg *registration
	id  int
	ch  chan packet.Value
}

// Subscribe registers interest in (addr, id). If a value has already
// been observed for this pair, it is delivered as soon as the caller
// reads from Watch.C(); otherwise the channel stays empty until the
// first Notify.
func (r *Registry) Subscribe(addr packet.Address, id packet.MessageId) *Watch {
	reg := r.registrationFor(addr, id)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	ch := make(chan packet.Value, 1)
	subID := reg.nextSub
	reg.nextSub++
	reg.subs[subID] = ch

	if reg.has {
		ch <- reg.value
	}

	return &Watch{reg: reg, id: subID, ch: ch}
}

// C returns the channel on which updated values are delivered.
func (w *Watch) C() <-chan packet.Value {
	return w.ch
}

// Close unregisters the subscription and closes the channel returned
// by C.
func (w *Watch) Close() {
	w.reg.mu.Lock()
	defer w.reg.mu.Unlock()
	if _, ok := w.reg.subs[w.id]; !ok {
		return
	}
	delete(w.reg.subs, w.id)
	close(w.ch)
}

// AllWatches snapshots the currently registered (address, [ids]) pairs,
// for use by a reload operation that reads the union of watched ids.
func (r *Registry) AllWatches() map[packet.Address][]packet.MessageId {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[packet.Address][]packet.MessageId, len(r.byID))
	for addr, byAddr := range r.byID {
		ids := make([]packet.MessageId, 0, len(byAddr))
		for id := range byAddr {
			ids = append(ids, id)
		}
		out[addr] = ids
	}
	return out
}
