// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sim implements a host simulation of the Raspberry Pi 3 for the
// kernel: each core runs in its own goroutine and the console mini UART is
// bridged to host I/O.
package sim

import (
	"context"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/kernel"
	"github.com/usbarmory/smp-example/mem"
	"github.com/usbarmory/smp-example/reg"
)

// GPIO register block size
const gpioSize = 0x100

// Config represents the simulated machine configuration.
type Config struct {
	// Cores is the number of cores running the kernel, cpu.Cores when
	// zero.
	Cores int
	// ArenaSize is the kernel arena size, mem.KernelArenaSize when zero.
	ArenaSize int
	// Output receives the console output, discarded when nil.
	Output io.Writer
}

// Machine represents a simulated board.
type Machine struct {
	cluster *cpu.Cluster
	kernel  *kernel.Kernel

	gpio reg.Memory
	aux  *AUX

	cores int
}

// NewMachine returns a powered off simulated board. Its cluster includes an
// additional core, not running the kernel, available to the host for
// monitoring purposes.
func NewMachine(cfg Config) *Machine {
	if cfg.Cores <= 0 {
		cfg.Cores = cpu.Cores
	}

	if cfg.ArenaSize <= 0 {
		cfg.ArenaSize = mem.KernelArenaSize
	}

	m := &Machine{
		cluster: cpu.NewCluster(cfg.Cores + 1),
		gpio:    reg.NewMemory(gpioSize),
		aux:     NewAUX(),
		cores:   cfg.Cores,
	}

	if cfg.Output != nil {
		m.aux.SetOutput(cfg.Output)
	}

	// received characters raise an event, as an interrupt would
	m.aux.Notify = m.cluster.SendEvent

	m.kernel = kernel.New(kernel.Config{
		GPIO:  m.gpio,
		AUX:   m.aux,
		Arena: mem.NewArena(cfg.ArenaSize),
		Cores: cfg.Cores,
		Idle: func(ctx context.Context, c cpu.Core) error {
			return c.WaitForEvent(ctx)
		},
	})

	return m
}

// Cluster returns the simulated cores.
func (m *Machine) Cluster() *cpu.Cluster {
	return m.cluster
}

// Cores returns the number of cores running the kernel.
func (m *Machine) Cores() int {
	return m.cores
}

// Monitor returns the host core, which does not run the kernel.
func (m *Machine) Monitor() *cpu.SimCore {
	return m.cluster.Core(m.cores)
}

// Kernel returns the kernel instance.
func (m *Machine) Kernel() *kernel.Kernel {
	return m.kernel
}

// AUX returns the simulated AUX peripheral.
func (m *Machine) AUX() *AUX {
	return m.aux
}

// GPIO returns the simulated GPIO register block.
func (m *Machine) GPIO() reg.Memory {
	return m.gpio
}

// Run starts all cores and waits for them to stop, which happens only once
// ctx is done.
func (m *Machine) Run(ctx context.Context) (err error) {
	g, ctx := errgroup.WithContext(ctx)

	log.Printf("sim starting %d cores", m.cores)

	for i := 0; i < m.cores; i++ {
		c := m.cluster.Core(i)

		g.Go(func() error {
			if c.ID() == 0 {
				return m.kernel.Boot(ctx, c)
			}

			return m.kernel.Secondary(ctx, c)
		})
	}

	if err = g.Wait(); err == context.Canceled || err == context.DeadlineExceeded {
		err = nil
	}

	log.Printf("sim stopped")

	return
}
