// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bcm2837

import (
	"context"

	"github.com/usbarmory/tamago/bits"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/excl"
	"github.com/usbarmory/smp-example/reg"
)

// AUX registers
const (
	AUX_IRQ     = 0x00
	AUX_ENABLES = 0x04
	ENABLES_MU  = 0

	AUX_MU_IO  = 0x40
	AUX_MU_IER = 0x44
	AUX_MU_IIR = 0x48
	// clear both FIFOs
	IIR_FIFO_CLEAR = 0xc6

	AUX_MU_LCR = 0x4c
	LCR_8BIT   = 0b11

	AUX_MU_MCR = 0x50

	AUX_MU_LSR     = 0x54
	LSR_DATA_READY = 0
	LSR_TX_EMPTY   = 5

	AUX_MU_MSR     = 0x58
	AUX_MU_SCRATCH = 0x5c

	AUX_MU_CNTL = 0x60
	CNTL_RX_EN  = 0
	CNTL_TX_EN  = 1

	AUX_MU_STAT = 0x64
	AUX_MU_BAUD = 0x68
)

// Mini UART pins (alternate function 5)
const (
	TX_PIN = 14
	RX_PIN = 15
)

// DefaultDivisor results in ~115200 baud with the 250 MHz system clock:
//
//	baud rate = system clock / (8 * (divisor + 1))
const DefaultDivisor = 270

// MiniUART represents the AUX mini UART.
type MiniUART struct {
	guard *excl.Guard[reg.Bus]
}

// UART represents exclusive access to the mini UART.
type UART struct {
	h *excl.Handle[reg.Bus]
}

// NewMiniUART returns the mini UART for the given register block, on the
// board this is reg.MMIO{Base: AUX_BASE}.
func NewMiniUART(bus reg.Bus) *MiniUART {
	return &MiniUART{
		guard: excl.New(bus),
	}
}

// Acquire blocks until core c gains exclusive access to the mini UART.
func (hw *MiniUART) Acquire(ctx context.Context, c cpu.Core) (u *UART, err error) {
	h, err := hw.guard.Acquire(ctx, c)

	if err != nil {
		return
	}

	return &UART{h: h}, nil
}

// Configured reports whether the mini UART has been initialized, it can be
// called without acquiring the device.
func (hw *MiniUART) Configured() bool {
	return hw.guard.Configured()
}

// Owner returns the ID of the core holding the mini UART, or -1 when free.
func (hw *MiniUART) Owner() int {
	return hw.guard.Owner()
}

// Init configures the mini UART for 8-bit operation with the given baud
// rate divisor and routes it to its pins.
func (u *UART) Init(gpio *GPIOHandle, divisor uint16) (err error) {
	bus := u.h.Resource()

	var enables uint32
	bits.Set(&enables, ENABLES_MU)
	bus.Write(AUX_ENABLES, enables)

	// transmitter, receiver and interrupts off during setup
	bus.Write(AUX_MU_IER, 0)
	bus.Write(AUX_MU_CNTL, 0)
	bus.Write(AUX_MU_LCR, LCR_8BIT)
	bus.Write(AUX_MU_MCR, 0)
	bus.Write(AUX_MU_IER, 0)
	bus.Write(AUX_MU_IIR, IIR_FIFO_CLEAR)
	bus.Write(AUX_MU_BAUD, uint32(divisor))

	for _, pin := range []int{TX_PIN, RX_PIN} {
		if err = gpio.SetFunction(pin, AltFn5); err != nil {
			return
		}
	}

	for _, pin := range []int{TX_PIN, RX_PIN} {
		if err = gpio.EnablePin(pin); err != nil {
			return
		}
	}

	var cntl uint32
	bits.Set(&cntl, CNTL_RX_EN)
	bits.Set(&cntl, CNTL_TX_EN)
	bus.Write(AUX_MU_CNTL, cntl)

	u.h.SetConfigured()

	return
}

// InitDefault initializes the mini UART at ~115200 baud.
func (u *UART) InitDefault(gpio *GPIOHandle) error {
	return u.Init(gpio, DefaultDivisor)
}

// Configured reports whether the mini UART has been initialized.
func (u *UART) Configured() bool {
	return u.h.Configured()
}

func (u *UART) bus() reg.Bus {
	if !u.h.Configured() {
		panic("bcm2837: mini UART is not configured")
	}

	return u.h.Resource()
}

func tx(bus reg.Bus, c byte) {
	for {
		lsr := bus.Read(AUX_MU_LSR)

		if bits.Get(&lsr, LSR_TX_EMPTY, 1) == 1 {
			break
		}
	}

	bus.Write(AUX_MU_IO, uint32(c))
}

// TryTx transmits a single character only if the mini UART is configured
// and not held by any core, it never waits for the device.
func (hw *MiniUART) TryTx(core cpu.Core, c byte) (ok bool) {
	if !hw.Configured() {
		return
	}

	return hw.guard.TryWith(core, func(bus reg.Bus) {
		tx(bus, c)
	})
}

// Tx transmits a single character, waiting for space in the transmit FIFO.
func (u *UART) Tx(c byte) {
	tx(u.bus(), c)
}

// Rx receives a single character, if available.
func (u *UART) Rx() (c byte, valid bool) {
	bus := u.bus()
	lsr := bus.Read(AUX_MU_LSR)

	if bits.Get(&lsr, LSR_DATA_READY, 1) == 0 {
		return
	}

	return byte(bus.Read(AUX_MU_IO) & 0xff), true
}

// Write transmits buf, it implements io.Writer and never fails.
func (u *UART) Write(buf []byte) (n int, _ error) {
	for n = 0; n < len(buf); n++ {
		u.Tx(buf[n])
	}

	return
}

// Release relinquishes access to the mini UART.
func (u *UART) Release() {
	u.h.Release()
}
