package deferred

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

// Callback is a handler registered on a [Callbacks] list.
//
// ctx is the call receiver chosen by the firing party (see
// [Callbacks.FireWith]); args are the fire arguments. The return value is
// ignored unless the list was constructed with [StopOnFalse], in which case
// returning literal false aborts the remainder of the current fire pass.
type Callback func(ctx any, args ...any) any

// CallbackID uniquely identifies a registered callback for removal and
// membership queries. Go function values cannot be reliably compared for
// equality, so each registration is issued an ID from a process-wide
// monotonic counter. IDs are never reused within a process.
type CallbackID uint64

var nextCallbackID atomic.Uint64

// Flag configures the firing semantics of a [Callbacks] list. Flags are
// immutable after construction and may be combined with bitwise OR.
type Flag uint8

const (
	// Once locks the list after the first fire pass completes: entries are
	// discarded and no further fire is accepted. With Memory, late-added
	// callbacks still replay the remembered fire.
	Once Flag = 1 << iota

	// Memory retains the last fired (ctx, args) pair and replays it,
	// exactly once, to callbacks added after the fire.
	Memory

	// Unique skips registrations whose function is already in the list.
	// Identity is the function's code pointer: two distinct closures
	// created from the same function literal share a code pointer and are
	// treated as the same callback.
	Unique

	// StopOnFalse aborts the remaining entries in a fire pass when a
	// callback returns literal false, and marks the list non-resumable for
	// memory replay.
	StopOnFalse
)

// callbackEntry pairs a callback with its identity for removal and Unique
// deduplication.
type callbackEntry struct {
	fn  Callback
	id  CallbackID
	ptr uintptr
}

// invocation is one queued (ctx, args) fire.
type invocation struct {
	ctx  any
	args []any
}

// Callbacks is an ordered, flag-configurable list of [Callback] handlers.
//
// A fire pass invokes entries in registration order. Mutation during a fire
// pass is supported: entries added by a firing callback are invoked by the
// same pass (never skipped, never double-fired), and removing an entry at
// or before the pass cursor adjusts the cursor so no entry is skipped or
// repeated.
//
// A FireWith issued while a pass is already executing, whether re-entrantly
// from a callback or from another goroutine, queues the invocation; the
// in-flight pass drains the queue after the current pass completes.
//
// The zero value is not usable; construct with [NewCallbacks].
type Callbacks struct {
	list   []callbackEntry
	queue  []invocation
	memory *invocation
	seen   mapset.Set[uintptr]
	// firingIndex is the pass cursor. It rests at -1 and is meaningful only
	// while firing, except immediately after a memory replay is queued by
	// Add, where it marks the position just before the first new entry.
	firingIndex int
	flags       Flag
	firing      bool
	fired       bool
	locked      bool
	// sealed is set by Lock but not by the Once auto-lock: it blocks
	// Add/Remove/Empty and memory replay, where the auto-lock still
	// replays to late-added callbacks.
	sealed   bool
	disabled bool
	mu       sync.Mutex
}

// NewCallbacks creates a callback list with the given flag combination.
func NewCallbacks(flags Flag) *Callbacks {
	c := &Callbacks{
		flags:       flags,
		firingIndex: -1,
	}
	if flags&Unique != 0 {
		c.seen = mapset.NewThreadUnsafeSet[uintptr]()
	}
	return c
}

// Add appends each non-nil callback to the list, respecting [Unique].
//
// If the list holds a remembered fire ([Memory]) and is not currently
// firing, the new entries (only) are immediately invoked with the
// remembered (ctx, args). No-op on a disabled list or after
// [Callbacks.Lock]. Returns the list for chaining; use [Callbacks.AddID]
// when the registration ID is needed.
func (c *Callbacks) Add(fns ...Callback) *Callbacks {
	c.mu.Lock()
	c.addLocked(fns)
	c.mu.Unlock()
	return c
}

// AddID registers a single callback and returns its [CallbackID], for use
// with [Callbacks.Remove] and [Callbacks.Has]. The ID is zero if the
// callback was not registered (nil callback, disabled list, or a [Unique]
// duplicate).
func (c *Callbacks) AddID(fn Callback) CallbackID {
	if fn == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked([]Callback{fn})
	// The list may no longer hold the entry: a memory replay under Once
	// consumes and clears it. Scan from the tail; a Unique duplicate
	// resolves to the already-registered entry.
	ptr := entryFuncPointer(fn)
	for i := len(c.list) - 1; i >= 0; i-- {
		if c.list[i].ptr == ptr {
			return c.list[i].id
		}
	}
	return 0
}

func (c *Callbacks) addLocked(fns []Callback) {
	if c.disabled || c.sealed {
		return
	}
	replay := c.memory != nil && !c.firing
	if replay {
		// Position the cursor just before the first new entry and queue the
		// remembered invocation, so only the new entries fire.
		c.firingIndex = len(c.list) - 1
		c.queue = append(c.queue, *c.memory)
	}
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		ptr := entryFuncPointer(fn)
		if c.flags&Unique != 0 && !c.seen.Add(ptr) {
			continue
		}
		c.list = append(c.list, callbackEntry{
			fn:  fn,
			id:  CallbackID(nextCallbackID.Add(1)),
			ptr: ptr,
		})
	}
	if replay {
		c.fireLocked()
	}
}

// Remove deletes the registrations identified by ids. Removals at or before
// an in-flight pass cursor decrement the cursor so the pass neither skips
// nor repeats an entry.
func (c *Callbacks) Remove(ids ...CallbackID) *Callbacks {
	c.mu.Lock()
	if c.disabled || c.sealed {
		c.mu.Unlock()
		return c
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		for i := 0; i < len(c.list); i++ {
			if c.list[i].id != id {
				continue
			}
			if c.seen != nil {
				c.seen.Remove(c.list[i].ptr)
			}
			c.list = slices.Delete(c.list, i, i+1)
			if i <= c.firingIndex {
				c.firingIndex--
			}
			i--
		}
	}
	c.mu.Unlock()
	return c
}

// Has reports whether every given registration is still present, or, with
// no arguments, whether the list holds any callbacks.
func (c *Callbacks) Has(ids ...CallbackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		return len(c.list) > 0
	}
	for _, id := range ids {
		if !slices.ContainsFunc(c.list, func(e callbackEntry) bool { return e.id == id }) {
			return false
		}
	}
	return true
}

// Empty removes all callbacks without disabling the list.
func (c *Callbacks) Empty() *Callbacks {
	c.mu.Lock()
	if !c.disabled && !c.sealed {
		c.list = nil
		if c.seen != nil {
			c.seen.Clear()
		}
	}
	c.mu.Unlock()
	return c
}

// Disable permanently clears the list and its memory; every further
// mutation and fire call is a no-op.
func (c *Callbacks) Disable() *Callbacks {
	c.mu.Lock()
	c.disabled = true
	c.locked = true
	c.sealed = true
	c.list = nil
	c.queue = nil
	c.memory = nil
	if c.seen != nil {
		c.seen.Clear()
	}
	c.mu.Unlock()
	return c
}

// Disabled reports whether [Callbacks.Disable] has been called.
func (c *Callbacks) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Lock prevents further fires, mutation via Add/Remove/Empty, and memory
// replay, and drops any queued invocations. A list locked without a
// remembered fire can never invoke anything again, so the lock escalates
// to [Callbacks.Disable].
//
// Contrast with the [Once] auto-lock, which keeps replaying the remembered
// fire to late-added callbacks.
func (c *Callbacks) Lock() *Callbacks {
	c.mu.Lock()
	c.locked = true
	c.sealed = true
	c.queue = nil
	if c.memory == nil && !c.firing {
		c.disabled = true
		c.list = nil
		if c.seen != nil {
			c.seen.Clear()
		}
	}
	c.mu.Unlock()
	return c
}

// Locked reports whether [Callbacks.Lock] has been called, or the list has
// auto-locked after a [Once] fire.
func (c *Callbacks) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Fired reports whether at least one fire pass has completed.
func (c *Callbacks) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Fire invokes all callbacks with the list itself as ctx, equivalent to
// FireWith(c, args...).
func (c *Callbacks) Fire(args ...any) *Callbacks {
	return c.FireWith(c, args...)
}

// FireWith invokes all callbacks in registration order, with ctx delivered
// as each callback's receiver argument and args spread as its arguments.
//
// No-op on a locked or disabled list. If a pass is already executing the
// invocation is queued and drained by the in-flight pass after the current
// pass completes. With [Memory] the (ctx, args) pair is remembered for
// replay to late-added callbacks; with [Once] the list auto-locks after the
// pass.
//
// A callback panic propagates to the fire caller and abandons the current
// pass; the list remains usable, and invocations queued before the panic
// are drained by the next fire.
func (c *Callbacks) FireWith(ctx any, args ...any) *Callbacks {
	c.mu.Lock()
	if !c.locked {
		c.queue = append(c.queue, invocation{ctx: ctx, args: slices.Clone(args)})
		if !c.firing {
			c.fireLocked()
		}
	}
	c.mu.Unlock()
	return c
}

// fireLocked drains the invocation queue. The caller must hold c.mu; the
// lock is released around each callback invocation so callbacks may
// re-enter the list.
func (c *Callbacks) fireLocked() {
	c.locked = c.locked || c.flags&Once != 0
	c.fired = true
	c.firing = true
	for len(c.queue) > 0 {
		inv := c.queue[0]
		c.queue = c.queue[1:]
		if c.flags&Memory != 0 {
			c.memory = &inv
		}
		for {
			c.firingIndex++
			if c.firingIndex >= len(c.list) {
				break
			}
			ret := c.invoke(c.list[c.firingIndex].fn, inv)
			if c.flags&StopOnFalse != 0 {
				if b, ok := ret.(bool); ok && !b {
					// Abort this pass and forget the memory so the abort is
					// not replayed to late-added callbacks.
					c.firingIndex = len(c.list)
					c.memory = nil
				}
			}
		}
		c.firingIndex = -1
	}
	c.firing = false
	if c.locked {
		c.list = nil
		if c.seen != nil {
			c.seen.Clear()
		}
		if c.memory == nil {
			c.disabled = true
		}
	}
}

// invoke runs one entry with the mutex released so the callback may
// re-enter the list. A callback panic abandons the pass: the cursor and
// firing flag are restored so the list remains usable, with any queued
// invocations drained by the next fire, and the panic is re-raised to the
// fire caller.
func (c *Callbacks) invoke(fn Callback, inv invocation) (ret any) {
	c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.mu.Lock()
			c.firing = false
			c.firingIndex = -1
			c.mu.Unlock()
			panic(r)
		}
		c.mu.Lock()
	}()
	return fn(inv.ctx, inv.args...)
}

// entryFuncPointer returns the code pointer backing fn, the best available
// identity for a Go function value.
func entryFuncPointer(fn Callback) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
