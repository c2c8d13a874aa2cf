// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package excl implements cross-core exclusive access to shared hardware
// resources.
//
// A Guard owns a resource (typically a register block) and hands out at most
// one Handle at a time system wide. Waiting cores are parked with
// WaitForEvent and woken by the SendEvent issued on every release.
package excl

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/usbarmory/smp-example/cpu"
)

// Guard represents a resource shared across cores.
type Guard[T any] struct {
	// 0 when free, holder core ID + 1 otherwise
	owner atomic.Int32
	// device configuration survives handle release
	configured atomic.Bool

	res T
}

// Handle represents exclusive access to a guarded resource, it must be
// released by the acquiring core.
type Handle[T any] struct {
	g        *Guard[T]
	core     cpu.Core
	released bool
}

// New returns a guard for the given resource.
func New[T any](res T) *Guard[T] {
	return &Guard[T]{
		res: res,
	}
}

// TryAcquire attempts to acquire the guard on behalf of core c without
// waiting.
func (g *Guard[T]) TryAcquire(c cpu.Core) (h *Handle[T], ok bool) {
	if !g.owner.CompareAndSwap(0, int32(c.ID()+1)) {
		return
	}

	return &Handle[T]{g: g, core: c}, true
}

// Acquire blocks core c, in the low power wait state, until it is the sole
// holder of the guard. An error is returned only when ctx is done before the
// guard is acquired.
//
// Acquiring a guard already held by the calling core is a programming error
// and results in a panic, as it would otherwise wait forever.
func (g *Guard[T]) Acquire(ctx context.Context, c cpu.Core) (h *Handle[T], err error) {
	var ok bool

	for {
		if h, ok = g.TryAcquire(c); ok {
			return
		}

		if g.Owner() == c.ID() {
			panic(fmt.Sprintf("excl: recursive acquire by core %d", c.ID()))
		}

		// a release between the failed attempt and the wait leaves the
		// event register set, the wait then returns immediately
		if err = c.WaitForEvent(ctx); err != nil {
			return nil, err
		}
	}
}

// With runs fn while holding the guard, releasing it when fn returns.
func (g *Guard[T]) With(ctx context.Context, c cpu.Core, fn func(*Handle[T]) error) (err error) {
	h, err := g.Acquire(ctx, c)

	if err != nil {
		return
	}

	defer h.Release()

	return fn(h)
}

// TryWith runs fn with the guarded resource only if core c can acquire the
// guard without waiting. No handle is allocated, which makes it usable from
// runtime hooks executing without a heap.
func (g *Guard[T]) TryWith(c cpu.Core, fn func(res T)) (ok bool) {
	if !g.owner.CompareAndSwap(0, int32(c.ID()+1)) {
		return
	}

	defer func() {
		g.owner.Store(0)
		c.SendEvent()
	}()

	fn(g.res)

	return true
}

// Owner returns the ID of the core holding the guard, or -1 when free.
func (g *Guard[T]) Owner() int {
	return int(g.owner.Load()) - 1
}

// Configured reports whether the guarded device has been configured, it does
// not require holding the guard.
func (g *Guard[T]) Configured() bool {
	return g.configured.Load()
}

func (h *Handle[T]) check() {
	if h.released {
		panic("excl: use of released handle")
	}
}

// Resource returns the guarded resource.
func (h *Handle[T]) Resource() T {
	h.check()
	return h.g.res
}

// Configured reports whether the guarded device has been configured.
func (h *Handle[T]) Configured() bool {
	return h.g.configured.Load()
}

// SetConfigured records that the guarded device has been configured.
func (h *Handle[T]) SetConfigured() {
	h.check()
	h.g.configured.Store(true)
}

// Release relinquishes the guard and wakes all parked cores, regardless of
// any of them waiting on this guard.
func (h *Handle[T]) Release() {
	if h.released {
		panic("excl: handle released twice")
	}

	h.released = true

	if !h.g.owner.CompareAndSwap(int32(h.core.ID()+1), 0) {
		panic(fmt.Sprintf("excl: release by core %d of guard held by %d", h.core.ID(), h.g.Owner()))
	}

	h.core.SendEvent()
}
