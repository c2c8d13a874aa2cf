// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bcm2837

import (
	"context"

	"github.com/pkg/errors"
	"github.com/usbarmory/tamago/bits"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/excl"
	"github.com/usbarmory/smp-example/reg"
)

// GPIO registers
const (
	GPFSEL0 = 0x00
	GPSET0  = 0x1c
	GPCLR0  = 0x28
	GPLEV0  = 0x34

	GPPUD     = 0x94
	GPPUDCLK0 = 0x98

	GPIO_PINS = 54
)

// Function represents a GPIO function select value.
type Function uint32

// GPIO functions
const (
	Input  Function = 0b000
	Output Function = 0b001
	AltFn0 Function = 0b100
	AltFn1 Function = 0b101
	AltFn2 Function = 0b110
	AltFn3 Function = 0b111
	AltFn4 Function = 0b011
	AltFn5 Function = 0b010
)

// GPIO represents the GPIO controller.
type GPIO struct {
	guard *excl.Guard[reg.Bus]
}

// GPIOHandle represents exclusive access to the GPIO controller.
type GPIOHandle struct {
	h *excl.Handle[reg.Bus]
}

// NewGPIO returns the GPIO controller for the given register block, on the
// board this is reg.MMIO{Base: GPIO_BASE}.
func NewGPIO(bus reg.Bus) *GPIO {
	return &GPIO{
		guard: excl.New(bus),
	}
}

// Acquire blocks until core c gains exclusive access to the controller.
func (hw *GPIO) Acquire(ctx context.Context, c cpu.Core) (g *GPIOHandle, err error) {
	h, err := hw.guard.Acquire(ctx, c)

	if err != nil {
		return
	}

	return &GPIOHandle{h: h}, nil
}

// Owner returns the ID of the core holding the controller, or -1 when free.
func (hw *GPIO) Owner() int {
	return hw.guard.Owner()
}

func checkPin(pin int) error {
	if pin < 0 || pin >= GPIO_PINS {
		return errors.Errorf("invalid GPIO pin %d", pin)
	}

	return nil
}

// SetFunction selects the function of a pin.
func (g *GPIOHandle) SetFunction(pin int, fn Function) (err error) {
	if err = checkPin(pin); err != nil {
		return
	}

	bus := g.h.Resource()
	off := GPFSEL0 + uint32(pin/10)*4

	r := bus.Read(off)
	bits.SetN(&r, (pin%10)*3, 0b111, uint32(fn)&0b111)
	bus.Write(off, r)

	return
}

// Function returns the selected function of a pin.
func (g *GPIOHandle) Function(pin int) (fn Function, err error) {
	if err = checkPin(pin); err != nil {
		return
	}

	r := g.h.Resource().Read(GPFSEL0 + uint32(pin/10)*4)

	return Function(bits.Get(&r, (pin%10)*3, 0b111)), nil
}

// EnablePin disables the pull-up/down resistors of a pin, following the
// control signal and clock sequence with its required settle delays.
func (g *GPIOHandle) EnablePin(pin int) (err error) {
	if err = checkPin(pin); err != nil {
		return
	}

	bus := g.h.Resource()
	clk := GPPUDCLK0 + uint32(pin/32)*4

	var r uint32
	bits.Set(&r, pin%32)

	bus.Write(GPPUD, 0)
	cpu.Delay(settleCycles)

	bus.Write(clk, r)
	cpu.Delay(settleCycles)

	bus.Write(GPPUD, 0)
	bus.Write(clk, 0)

	return
}

// Release relinquishes access to the controller.
func (g *GPIOHandle) Release() {
	g.h.Release()
}
