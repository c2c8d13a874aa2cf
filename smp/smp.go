// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package smp implements one-shot task dispatch to secondary cores.
//
// Each secondary core owns a single task slot which any core can write and
// only the owner consumes. Publishing over an unconsumed task replaces it,
// there is no queueing.
//
// Slots are accessed with sync/atomic operations, which are sequentially
// consistent, and every publish is followed by an event signal: a core which
// finds its slot empty and parks is therefore always woken by a later
// publish, as the event register latches the signal.
package smp

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/usbarmory/smp-example/cpu"
)

var (
	// ErrInvalidCore is returned when publishing to a core without a
	// task slot.
	ErrInvalidCore = errors.New("invalid core")

	// ErrNilTask is returned when publishing an empty task.
	ErrNilTask = errors.New("nil task")
)

// Task represents a function executed once, to completion, by a secondary
// core. The executing core is passed to the task.
//
// A task must not block indefinitely as the core does not serve its slot
// until the task returns.
type Task func(c cpu.Core)

type slot struct {
	task atomic.Pointer[Task]
	runs atomic.Uint64
}

// Dispatcher represents the task slots of a cluster.
type Dispatcher struct {
	// slots[0] belongs to the boot core and is never used
	slots []slot
}

// NewDispatcher returns a dispatcher for a cluster of the given number of
// cores, core 0 being the boot core.
func NewDispatcher(cores int) *Dispatcher {
	if cores < 1 {
		cores = 1
	}

	return &Dispatcher{
		slots: make([]slot, cores),
	}
}

// Cores returns the number of cores served by the dispatcher, including the
// boot core.
func (d *Dispatcher) Cores() int {
	return len(d.slots)
}

func (d *Dispatcher) slot(core int) (s *slot, err error) {
	if core < 1 || core >= len(d.slots) {
		return nil, errors.Wrapf(ErrInvalidCore, "core %d", core)
	}

	return &d.slots[core], nil
}

// Publish stores t in the slot of the given secondary core and signals an
// event from core from. The returned flag reports whether an unconsumed task
// has been displaced.
func (d *Dispatcher) Publish(from cpu.Core, core int, t Task) (displaced bool, err error) {
	if t == nil {
		return false, ErrNilTask
	}

	s, err := d.slot(core)

	if err != nil {
		return
	}

	displaced = s.task.Swap(&t) != nil
	from.SendEvent()

	return
}

// Take atomically reads and clears the slot of the given core, it returns
// nil if no task is pending.
func (d *Dispatcher) Take(core int) Task {
	s, err := d.slot(core)

	if err != nil {
		return nil
	}

	if t := s.task.Swap(nil); t != nil {
		return *t
	}

	return nil
}

// Pending reports whether a task is waiting in the slot of the given core.
func (d *Dispatcher) Pending(core int) bool {
	s, err := d.slot(core)

	if err != nil {
		return false
	}

	return s.task.Load() != nil
}

// Runs returns the number of tasks executed by the given core.
func (d *Dispatcher) Runs(core int) uint64 {
	s, err := d.slot(core)

	if err != nil {
		return 0
	}

	return s.runs.Load()
}

// RunPending consumes and runs the task pending for core c, if any. It
// reports whether a task has been run.
func (d *Dispatcher) RunPending(c cpu.Core) bool {
	t := d.Take(c.ID())

	if t == nil {
		return false
	}

	t(c)
	d.slots[c.ID()].runs.Add(1)

	return true
}

// Serve runs the task loop of secondary core c: pending tasks are run to
// completion, the core is otherwise parked until an event. Serve returns
// only when ctx is done.
func (d *Dispatcher) Serve(ctx context.Context, c cpu.Core) (err error) {
	if _, err = d.slot(c.ID()); err != nil {
		return
	}

	for {
		if d.RunPending(c) {
			continue
		}

		if err = c.WaitForEvent(ctx); err != nil {
			return
		}
	}
}
