// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cpu

import (
	"context"
	"sync/atomic"
)

// Cluster represents a set of simulated cores sharing the event signal.
type Cluster struct {
	cores []*SimCore
}

// SimCore represents a simulated core, its event register is modeled as a
// single slot latch which SEV sets and WFE consumes.
type SimCore struct {
	id      int
	el      int
	cluster *Cluster
	event   chan struct{}

	waits  atomic.Uint64
	wakes  atomic.Uint64
	events atomic.Uint64
}

// NewCluster returns n simulated cores, executing at exception level 1.
func NewCluster(n int) *Cluster {
	c := &Cluster{}

	for i := 0; i < n; i++ {
		c.cores = append(c.cores, &SimCore{
			id:      i,
			el:      1,
			cluster: c,
			event:   make(chan struct{}, 1),
		})
	}

	return c
}

// Core returns the i-th core.
func (c *Cluster) Core(i int) *SimCore {
	return c.cores[i]
}

// Len returns the number of cores.
func (c *Cluster) Len() int {
	return len(c.cores)
}

// SendEvent sets the event register of all cores.
func (c *Cluster) SendEvent() {
	for _, core := range c.cores {
		select {
		case core.event <- struct{}{}:
		default:
		}
	}
}

// ID returns the core number.
func (c *SimCore) ID() int {
	return c.id
}

// ExceptionLevel returns the simulated exception level.
func (c *SimCore) ExceptionLevel() int {
	return c.el
}

// WaitForEvent consumes the event register if set, otherwise it blocks
// until another core signals an event or ctx is done.
func (c *SimCore) WaitForEvent(ctx context.Context) error {
	c.waits.Add(1)

	select {
	case <-c.event:
		c.wakes.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEvent signals an event to all cores of the cluster.
func (c *SimCore) SendEvent() {
	c.events.Add(1)
	c.cluster.SendEvent()
}

// Stats returns the number of waits entered, waits completed by an event and
// events sent by the core.
func (c *SimCore) Stats() (waits uint64, wakes uint64, events uint64) {
	return c.waits.Load(), c.wakes.Load(), c.events.Load()
}
