// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package kernel implements the kernel entry points of the boot and
// secondary cores.
//
// The boot core configures the mini UART console, prints the boot banner,
// hands a greeting task to every secondary core and then echoes console
// input forever. Secondary cores serve their task slot.
package kernel

import (
	"context"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/excl"
	"github.com/usbarmory/smp-example/mem"
	"github.com/usbarmory/smp-example/reg"
	"github.com/usbarmory/smp-example/smp"
	"github.com/usbarmory/smp-example/soc/bcm2837"
)

// receive poll interval when no idle function is configured
const pollCycles = 1000

// Config represents the kernel hardware configuration.
type Config struct {
	// GPIO is the GPIO controller register block.
	GPIO reg.Bus
	// AUX is the AUX (mini UART) register block.
	AUX reg.Bus
	// Arena backs kernel lifetime objects, mem.Kernel() is used when
	// nil.
	Arena *mem.Arena
	// Cores is the number of cores, including the boot core.
	Cores int
	// Divisor is the mini UART baud rate divisor,
	// bcm2837.DefaultDivisor is used when zero.
	Divisor uint16
	// Idle is invoked while waiting for console input, it defaults to a
	// fixed busy wait.
	Idle func(ctx context.Context, c cpu.Core) error
}

// Kernel represents the kernel state shared by all cores.
type Kernel struct {
	arena *excl.Guard[*mem.Arena]
	gpio  *bcm2837.GPIO
	uart  *bcm2837.MiniUART
	smp   *smp.Dispatcher

	divisor uint16
	idle    func(ctx context.Context, c cpu.Core) error
}

// New returns a kernel instance for the given configuration.
func New(cfg Config) *Kernel {
	k := &Kernel{
		gpio:    bcm2837.NewGPIO(cfg.GPIO),
		uart:    bcm2837.NewMiniUART(cfg.AUX),
		smp:     smp.NewDispatcher(cfg.Cores),
		divisor: cfg.Divisor,
		idle:    cfg.Idle,
	}

	if cfg.Arena == nil {
		cfg.Arena = mem.Kernel()
	}

	k.arena = excl.New(cfg.Arena)

	if k.divisor == 0 {
		k.divisor = bcm2837.DefaultDivisor
	}

	if k.idle == nil {
		k.idle = func(ctx context.Context, _ cpu.Core) error {
			cpu.Delay(pollCycles)
			return ctx.Err()
		}
	}

	return k
}

// Arena returns the guarded kernel arena.
func (k *Kernel) Arena() *excl.Guard[*mem.Arena] {
	return k.arena
}

// GPIO returns the GPIO controller.
func (k *Kernel) GPIO() *bcm2837.GPIO {
	return k.gpio
}

// UART returns the console mini UART.
func (k *Kernel) UART() *bcm2837.MiniUART {
	return k.uart
}

// Dispatcher returns the secondary cores task dispatcher.
func (k *Kernel) Dispatcher() *smp.Dispatcher {
	return k.smp
}

// Init configures the console, the GPIO controller and mini UART are held
// only for the duration of the configuration.
func (k *Kernel) Init(ctx context.Context, c cpu.Core) (err error) {
	gpio, err := k.gpio.Acquire(ctx, c)

	if err != nil {
		return
	}

	defer gpio.Release()

	uart, err := k.uart.Acquire(ctx, c)

	if err != nil {
		return
	}

	defer uart.Release()

	if err = uart.Init(gpio, k.divisor); err != nil {
		return k.Errorf(ctx, c, "uart", "initialization error, %v", err)
	}

	return
}

func (k *Kernel) hello(ctx context.Context) smp.Task {
	return func(c cpu.Core) {
		_ = k.Printf(ctx, c, "Hello, from cpu %d\n", c.ID())
	}
}

// Main prints the boot banner, starts the secondary cores greeting task and
// runs the console echo loop. Main returns only on error.
func (k *Kernel) Main(ctx context.Context, c cpu.Core) (err error) {
	if err = k.Printf(ctx, c, "Initializing kernel...\n"); err != nil {
		return
	}

	if err = k.Printf(ctx, c, "[INFO] initialized in exception level %d\n", c.ExceptionLevel()); err != nil {
		return
	}

	if err = k.Printf(ctx, c, "[INFO] core %x\n", c.ID()); err != nil {
		return
	}

	for i := 1; i < k.smp.Cores(); i++ {
		if _, err = k.smp.Publish(c, i, k.hello(ctx)); err != nil {
			return k.Errorf(ctx, c, "smp", "could not start core %d, %v", i, err)
		}
	}

	return k.Echo(ctx, c)
}

func (k *Kernel) handlePanic(ctx context.Context, c cpu.Core) {
	if v := recover(); v != nil {
		k.Panic(ctx, c, v)
	}
}

// Boot is the boot core entry point, any failure results in a kernel panic.
// On the board Boot never returns, otherwise it returns once ctx is done.
func (k *Kernel) Boot(ctx context.Context, c cpu.Core) (err error) {
	defer func() {
		if e := ctx.Err(); e != nil {
			err = e
		}
	}()

	defer k.handlePanic(ctx, c)

	if err = k.Init(ctx, c); err == nil {
		err = k.Main(ctx, c)
	}

	if err != nil && ctx.Err() == nil {
		k.Panic(ctx, c, err)
	}

	return
}

// Secondary is the secondary cores entry point, published tasks are run
// until ctx is done. A panicking task results in a kernel panic on the
// executing core.
func (k *Kernel) Secondary(ctx context.Context, c cpu.Core) (err error) {
	defer func() {
		if e := ctx.Err(); e != nil {
			err = e
		}
	}()

	defer k.handlePanic(ctx, c)

	return k.smp.Serve(ctx, c)
}
