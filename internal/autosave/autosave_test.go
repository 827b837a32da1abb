package autosave

import (
	"sync"
	"testing"
	"time"

	"github.com/aburossi/textboxv2/internal/storekey"
)

type recorder struct {
	mu    sync.Mutex
	saves []string
}

func (r *recorder) save(_ storekey.Unit, html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, html)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saves...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTriggerCoalescesBurst(t *testing.T) {
	rec := &recorder{}
	d := New(30*time.Millisecond, rec.save)
	u := storekey.Unit{AssignmentID: "a", SubID: "s"}

	d.Trigger(u, "<p>1</p>")
	d.Trigger(u, "<p>12</p>")
	d.Trigger(u, "<p>123</p>")

	waitFor(t, func() bool { return len(rec.all()) > 0 })
	got := rec.all()
	if len(got) != 1 || got[0] != "<p>123</p>" {
		t.Errorf("saves = %v, want one save of the last content", got)
	}
}

func TestUnitsDebounceIndependently(t *testing.T) {
	rec := &recorder{}
	d := New(20*time.Millisecond, rec.save)

	d.Trigger(storekey.Unit{AssignmentID: "a", SubID: "s1"}, "<p>one</p>")
	d.Trigger(storekey.Unit{AssignmentID: "a", SubID: "s2"}, "<p>two</p>")

	waitFor(t, func() bool { return len(rec.all()) == 2 })
}

func TestPendingDrafts(t *testing.T) {
	rec := &recorder{}
	d := New(time.Hour, rec.save)
	u := storekey.Unit{AssignmentID: "a", SubID: "s"}

	d.Trigger(u, "<p>pending</p>")
	drafts := d.PendingDrafts()
	if drafts[u] != "<p>pending</p>" {
		t.Errorf("PendingDrafts = %v", drafts)
	}

	// The returned map is a copy.
	drafts[u] = "<p>mutated</p>"
	if d.PendingDrafts()[u] != "<p>pending</p>" {
		t.Error("caller mutation leaked into the debouncer")
	}
}

func TestFlushWritesPendingImmediately(t *testing.T) {
	rec := &recorder{}
	d := New(time.Hour, rec.save)
	u := storekey.Unit{AssignmentID: "a", SubID: "s"}

	d.Trigger(u, "<p>content</p>")
	d.Flush()

	got := rec.all()
	if len(got) != 1 || got[0] != "<p>content</p>" {
		t.Errorf("saves after Flush = %v", got)
	}
	if len(d.PendingDrafts()) != 0 {
		t.Error("drafts remained after Flush")
	}
}

func TestDiscardDropsPending(t *testing.T) {
	rec := &recorder{}
	d := New(20*time.Millisecond, rec.save)
	u := storekey.Unit{AssignmentID: "a", SubID: "s"}

	d.Trigger(u, "<p>doomed</p>")
	d.Discard()

	time.Sleep(60 * time.Millisecond)
	if got := rec.all(); len(got) != 0 {
		t.Errorf("discarded content was saved: %v", got)
	}
}

func TestCloseFlushesAndStops(t *testing.T) {
	rec := &recorder{}
	d := New(time.Hour, rec.save)
	u := storekey.Unit{AssignmentID: "a", SubID: "s"}

	d.Trigger(u, "<p>last</p>")
	d.Close()

	if got := rec.all(); len(got) != 1 || got[0] != "<p>last</p>" {
		t.Errorf("saves after Close = %v", got)
	}

	d.Trigger(u, "<p>after close</p>")
	if len(d.PendingDrafts()) != 0 {
		t.Error("Trigger accepted content after Close")
	}
}
