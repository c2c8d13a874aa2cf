// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"io"
	"sync"

	"github.com/usbarmory/tamago/bits"

	"github.com/usbarmory/smp-example/reg"
	"github.com/usbarmory/smp-example/soc/bcm2837"
)

// AUX size
const auxSize = 0x100

// AUX represents a simulated BCM2837 AUX peripheral, of which only the mini
// UART data path is modeled: the receive FIFO is fed by the host and
// transmitted characters are written to the host output.
type AUX struct {
	mu sync.Mutex

	regs reg.Memory
	rx   []byte
	out  io.Writer

	// Notify is invoked whenever data becomes available for reception.
	Notify func()

	txBytes uint64
	dropped uint64
}

// NewAUX returns a simulated AUX peripheral, in its reset state.
func NewAUX() *AUX {
	return &AUX{
		regs: reg.NewMemory(auxSize),
		out:  io.Discard,
	}
}

// SetOutput sets the destination of transmitted characters.
func (a *AUX) SetOutput(w io.Writer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.out = w
}

// Feed queues buf for reception.
func (a *AUX) Feed(buf []byte) {
	a.mu.Lock()
	a.rx = append(a.rx, buf...)
	notify := a.Notify
	a.mu.Unlock()

	if notify != nil && len(buf) > 0 {
		notify()
	}
}

// Pending returns the number of characters waiting for reception.
func (a *AUX) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.rx)
}

// Stats returns the number of transmitted characters and of those dropped
// as the transmitter was disabled.
func (a *AUX) Stats() (tx uint64, dropped uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.txBytes, a.dropped
}

func (a *AUX) enabled(pos int) bool {
	enables := a.regs.Read(bcm2837.AUX_ENABLES)
	cntl := a.regs.Read(bcm2837.AUX_MU_CNTL)

	return bits.Get(&enables, bcm2837.ENABLES_MU, 1) == 1 && bits.Get(&cntl, pos, 1) == 1
}

// Read implements reg.Bus.
func (a *AUX) Read(off uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch off {
	case bcm2837.AUX_MU_LSR:
		var lsr uint32

		// transmitter always idle
		bits.Set(&lsr, bcm2837.LSR_TX_EMPTY)

		if len(a.rx) > 0 && a.enabled(bcm2837.CNTL_RX_EN) {
			bits.Set(&lsr, bcm2837.LSR_DATA_READY)
		}

		return lsr
	case bcm2837.AUX_MU_IO:
		if len(a.rx) == 0 || !a.enabled(bcm2837.CNTL_RX_EN) {
			return 0
		}

		c := a.rx[0]
		a.rx = a.rx[1:]

		return uint32(c)
	}

	return a.regs.Read(off)
}

// Write implements reg.Bus.
func (a *AUX) Write(off uint32, val uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if off != bcm2837.AUX_MU_IO {
		a.regs.Write(off, val)
		return
	}

	if !a.enabled(bcm2837.CNTL_TX_EN) {
		a.dropped++
		return
	}

	a.txBytes++
	_, _ = a.out.Write([]byte{byte(val)})
}
