// Package autosave coalesces bursts of editor changes into one durable write
// per unit, fired after a quiet period (trailing-edge debounce). Only the
// last content seen within the window is persisted. Pending content is
// observable through PendingDrafts so exports taken inside the window see the
// live buffer instead of the last flush.
package autosave

import (
	"sync"
	"time"

	"github.com/aburossi/textboxv2/internal/storekey"
)

// SaveFunc flushes one unit's content to durable storage. Errors are the
// callee's to log; a failed flush must not crash the caller.
type SaveFunc func(u storekey.Unit, html string)

type Debouncer struct {
	delay time.Duration
	save  SaveFunc

	mu      sync.Mutex
	pending map[storekey.Unit]string
	timers  map[storekey.Unit]*time.Timer
	closed  bool
}

func New(delay time.Duration, save SaveFunc) *Debouncer {
	return &Debouncer{
		delay:   delay,
		save:    save,
		pending: make(map[storekey.Unit]string),
		timers:  make(map[storekey.Unit]*time.Timer),
	}
}

// Trigger records the latest content for a unit and (re)starts its quiet
// window. Earlier content within the window is discarded.
func (d *Debouncer) Trigger(u storekey.Unit, html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending[u] = html
	if t, ok := d.timers[u]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[u] = time.AfterFunc(d.delay, func() { d.flushUnit(u) })
}

func (d *Debouncer) flushUnit(u storekey.Unit) {
	d.mu.Lock()
	html, ok := d.pending[u]
	delete(d.pending, u)
	delete(d.timers, u)
	d.mu.Unlock()
	if ok {
		d.save(u, html)
	}
}

// PendingDrafts returns a copy of all content not yet flushed.
func (d *Debouncer) PendingDrafts() map[storekey.Unit]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	drafts := make(map[storekey.Unit]string, len(d.pending))
	for u, html := range d.pending {
		drafts[u] = html
	}
	return drafts
}

// Flush writes out everything pending immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	drained := d.pending
	d.pending = make(map[storekey.Unit]string)
	for u, t := range d.timers {
		t.Stop()
		delete(d.timers, u)
	}
	d.mu.Unlock()
	for u, html := range drained {
		d.save(u, html)
	}
}

// Discard drops all pending content without writing it. Used before restore
// and clear-all so stale drafts cannot resurrect wiped data.
func (d *Debouncer) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = make(map[storekey.Unit]string)
	for u, t := range d.timers {
		t.Stop()
		delete(d.timers, u)
	}
}

// Close flushes pending content and rejects further triggers.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
}
