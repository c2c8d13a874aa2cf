// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cpu provides the per-core primitives used by the kernel to park
// and wake processor cores.
//
// On the board cores are parked with the ARM Wait For Event (WFE)
// instruction and woken with Send Event (SEV), a SEV sets the event register
// of every core in the cluster, including the sender. A WFE returns
// immediately (clearing it) if the event register is set, therefore a wake
// issued before the matching wait is never lost. Wakes can be spurious, all
// waiters must re-check their condition.
package cpu

import (
	"context"
)

// Core represents a processor core as seen by code running on it.
type Core interface {
	// ID returns the core number (MPIDR Aff0 on the board).
	ID() int
	// ExceptionLevel returns the current exception level.
	ExceptionLevel() int
	// WaitForEvent parks the core in a low power state until an event is
	// signaled, or until ctx is done, in which case ctx.Err() is
	// returned.
	WaitForEvent(ctx context.Context) error
	// SendEvent signals an event to all cores.
	SendEvent()
}

// Number of cores in the BCM2837 cluster.
const Cores = 4

var delayFn = func(cycles int) {}

// Delay busy waits for the given number of cycles, it is used where hardware
// requires fixed settle times.
func Delay(cycles int) {
	if cycles > 0 {
		delayFn(cycles)
	}
}

// Halt parks the core permanently in the low power wait loop, it returns
// only once ctx is done.
func Halt(ctx context.Context, c Core) {
	for {
		if err := c.WaitForEvent(ctx); err != nil {
			return
		}
	}
}
