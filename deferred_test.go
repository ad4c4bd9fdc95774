package deferred

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDeferred_initialState(t *testing.T) {
	d := New()
	if got := d.State(); got != Pending {
		t.Fatalf("expected pending, got %v", got)
	}
	if got := d.State().String(); got != "pending" {
		t.Fatalf("expected %q, got %q", "pending", got)
	}
}

func TestDeferred_resolveDeliversArgs(t *testing.T) {
	d := New()
	var got []any
	var failed, always bool
	d.Done(func(_ any, args ...any) {
		got = slices.Clone(args)
	})
	d.Fail(func(any, ...any) { failed = true })
	d.Always(func(any, ...any) { always = true })
	d.Resolve(1, "two")
	if d.State() != Resolved {
		t.Fatalf("expected resolved, got %v", d.State())
	}
	if len(got) != 2 || got[0] != 1 || got[1] != "two" {
		t.Fatalf("unexpected args: %v", got)
	}
	if failed {
		t.Error("fail handler ran on resolution")
	}
	if !always {
		t.Error("always handler did not run")
	}
}

func TestDeferred_settlesExactlyOnce(t *testing.T) {
	d := New()
	var doneCount, failCount int
	d.Done(func(any, ...any) { doneCount++ })
	d.Fail(func(any, ...any) { failCount++ })
	d.Resolve("first")
	d.Resolve("second")
	d.Reject("late")
	if d.State() != Resolved {
		t.Fatalf("expected resolved, got %v", d.State())
	}
	if doneCount != 1 || failCount != 0 {
		t.Fatalf("expected exactly one done invocation, got done=%d fail=%d", doneCount, failCount)
	}
}

func TestDeferred_rejectDisablesDone(t *testing.T) {
	d := New()
	var got any
	d.Fail(func(_ any, args ...any) { got = args[0] })
	d.Reject("boom")
	if d.State() != Rejected {
		t.Fatalf("expected rejected, got %v", d.State())
	}
	if got != "boom" {
		t.Fatalf("expected boom, got %v", got)
	}
	var doneRan bool
	d.Done(func(any, ...any) { doneRan = true })
	if doneRan {
		t.Error("done handler ran on a rejected deferred")
	}
}

func TestDeferred_lateAttachReplays(t *testing.T) {
	d := New()
	d.Resolve(42)
	var got any
	d.Done(func(_ any, args ...any) { got = args[0] })
	if got != 42 {
		t.Fatalf("expected synchronous replay of 42, got %v", got)
	}
	var again int
	d.Done(func(any, ...any) { again++ })
	d.Done(func(any, ...any) { again++ })
	if again != 2 {
		t.Fatalf("expected each late handler to replay exactly once, got %d", again)
	}
}

func TestDeferred_resolveWithContext(t *testing.T) {
	type owner struct{ name string }
	o := &owner{"op"}
	d := New()
	var gotCtx any
	d.Done(func(ctx any, _ ...any) { gotCtx = ctx })
	d.ResolveWith(o, "v")
	if gotCtx != o {
		t.Fatalf("expected ctx %v, got %v", o, gotCtx)
	}
}

func TestDeferred_progress(t *testing.T) {
	d := New()
	var got []any
	d.Progress(func(_ any, args ...any) { got = append(got, args[0]) })
	d.Notify(1)
	d.Notify(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected notifications: %v", got)
	}
	d.Resolve()
	d.Notify(3)
	if len(got) != 2 {
		t.Fatalf("notify after settlement must be a no-op, got %v", got)
	}
}

func TestDeferred_progressMemoryReplay(t *testing.T) {
	d := New()
	d.Notify("latest")
	var got any
	d.Progress(func(_ any, args ...any) { got = args[0] })
	if got != "latest" {
		t.Fatalf("expected replay of most recent notification, got %v", got)
	}
}

func TestDeferred_noProgressReplayAfterSettle(t *testing.T) {
	d := New()
	d.Notify("p")
	d.Resolve()
	var ran bool
	d.Progress(func(any, ...any) { ran = true })
	if ran {
		t.Fatal("progress handler attached after settlement must not run")
	}
}

func TestDeferred_alwaysRunsOnceOnRejection(t *testing.T) {
	d := New()
	var count int
	d.Always(func(any, ...any) { count++ })
	d.Reject("e")
	if count != 1 {
		t.Fatalf("expected 1 invocation, got %d", count)
	}
}

func TestDeferred_promiseView(t *testing.T) {
	d := New()
	p := d.Promise()
	if p == nil || p != d.Promise() {
		t.Fatal("expected a stable promise view")
	}
	if p.Promise() != p {
		t.Fatal("expected Promise() on the view to return itself")
	}
	var got any
	p.Done(func(_ any, args ...any) { got = args[0] })
	d.Resolve("via view")
	if p.State() != Resolved {
		t.Fatalf("expected resolved view, got %v", p.State())
	}
	if got != "via view" {
		t.Fatalf("expected handler via view, got %v", got)
	}
}

func TestNewWithInit(t *testing.T) {
	var seen *Deferred
	d := NewWithInit(func(d *Deferred) {
		seen = d
		d.Resolve("init")
	})
	if seen != d {
		t.Fatal("expected init to receive the new deferred")
	}
	if d.State() != Resolved {
		t.Fatalf("expected resolved, got %v", d.State())
	}
}

func TestDeferred_stateStrings(t *testing.T) {
	if got := Resolved.String(); got != "resolved" {
		t.Errorf("expected %q, got %q", "resolved", got)
	}
	if got := Rejected.String(); got != "rejected" {
		t.Errorf("expected %q, got %q", "rejected", got)
	}
	if got := State(99).String(); got != "unknown" {
		t.Errorf("expected %q, got %q", "unknown", got)
	}
}

func TestDeferred_concurrentSettlement(t *testing.T) {
	const n = 32
	d := New()
	var done, fail atomic.Int32
	d.Done(func(any, ...any) { done.Add(1) })
	d.Fail(func(any, ...any) { fail.Add(1) })
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				d.Resolve(i)
			} else {
				d.Reject(i)
			}
		}(i)
	}
	wg.Wait()
	if total := done.Load() + fail.Load(); total != 1 {
		t.Fatalf("expected exactly one settlement, got done=%d fail=%d", done.Load(), fail.Load())
	}
	if s := d.State(); s != Resolved && s != Rejected {
		t.Fatalf("expected a terminal state, got %v", s)
	}
}

func TestDeferred_handlerOrderPreserved(t *testing.T) {
	d := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		d.Done(func(any, ...any) { got = append(got, i) })
	}
	d.Resolve()
	if want := []int{0, 1, 2, 3, 4}; !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
