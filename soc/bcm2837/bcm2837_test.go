// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bcm2837

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/reg"
)

type write struct {
	off uint32
	val uint32
}

// recorder logs register writes on top of a plain register block
type recorder struct {
	reg.Memory
	writes []write
}

func (r *recorder) Write(off uint32, val uint32) {
	r.writes = append(r.writes, write{off, val})
	r.Memory.Write(off, val)
}

// aux emulates the mini UART data path
type aux struct {
	sync.Mutex
	reg.Memory

	rx     []byte
	tx     bytes.Buffer
	writes []write
}

func (a *aux) Read(off uint32) uint32 {
	a.Lock()
	defer a.Unlock()

	switch off {
	case AUX_MU_LSR:
		lsr := uint32(1 << LSR_TX_EMPTY)

		if len(a.rx) > 0 {
			lsr |= 1 << LSR_DATA_READY
		}

		return lsr
	case AUX_MU_IO:
		if len(a.rx) == 0 {
			return 0
		}

		c := a.rx[0]
		a.rx = a.rx[1:]

		return uint32(c)
	}

	return a.Memory.Read(off)
}

func (a *aux) Write(off uint32, val uint32) {
	a.Lock()
	defer a.Unlock()

	a.writes = append(a.writes, write{off, val})

	if off == AUX_MU_IO {
		a.tx.WriteByte(byte(val))
		return
	}

	a.Memory.Write(off, val)
}

func TestSetFunction(t *testing.T) {
	core := cpu.NewCluster(1).Core(0)
	m := reg.NewMemory(0x100)
	m.Write(GPFSEL0+4, 0xffffffff)

	g, err := NewGPIO(m).Acquire(context.Background(), core)

	if err != nil {
		t.Fatal(err)
	}

	defer g.Release()

	if err = g.SetFunction(14, AltFn5); err != nil {
		t.Fatal(err)
	}

	if err = g.SetFunction(15, AltFn5); err != nil {
		t.Fatal(err)
	}

	// FSEL14 bits 12-14, FSEL15 bits 15-17
	if v := m.Read(GPFSEL0 + 4); v != 0xfffd2fff {
		t.Fatalf("unexpected GPFSEL1 %#x", v)
	}

	for _, pin := range []int{14, 15} {
		if fn, err := g.Function(pin); err != nil || fn != AltFn5 {
			t.Fatalf("pin %d: unexpected function %#b (%v)", pin, fn, err)
		}
	}

	if err = g.SetFunction(53, Output); err != nil {
		t.Fatal(err)
	}

	if v := m.Read(GPFSEL0 + 20); v != 1<<9 {
		t.Fatalf("unexpected GPFSEL5 %#x", v)
	}

	for _, pin := range []int{-1, GPIO_PINS} {
		if err = g.SetFunction(pin, Input); err == nil {
			t.Errorf("pin %d: expected error", pin)
		}

		if err = g.EnablePin(pin); err == nil {
			t.Errorf("pin %d: expected error", pin)
		}
	}
}

func TestEnablePin(t *testing.T) {
	core := cpu.NewCluster(1).Core(0)
	r := &recorder{Memory: reg.NewMemory(0x100)}

	g, err := NewGPIO(r).Acquire(context.Background(), core)

	if err != nil {
		t.Fatal(err)
	}

	defer g.Release()

	if err = g.EnablePin(33); err != nil {
		t.Fatal(err)
	}

	exp := []write{
		{GPPUD, 0},
		{GPPUDCLK0 + 4, 1 << 1},
		{GPPUD, 0},
		{GPPUDCLK0 + 4, 0},
	}

	if fmt.Sprint(r.writes) != fmt.Sprint(exp) {
		t.Fatalf("unexpected sequence %v, expected %v", r.writes, exp)
	}
}

func initUART(t *testing.T, core cpu.Core, gpio *GPIO, mu *MiniUART) {
	t.Helper()

	g, err := gpio.Acquire(context.Background(), core)

	if err != nil {
		t.Fatal(err)
	}

	defer g.Release()

	u, err := mu.Acquire(context.Background(), core)

	if err != nil {
		t.Fatal(err)
	}

	defer u.Release()

	if err = u.InitDefault(g); err != nil {
		t.Fatal(err)
	}
}

func TestMiniUART(t *testing.T) {
	cluster := cpu.NewCluster(2)
	m := reg.NewMemory(0x100)
	dev := &aux{Memory: reg.NewMemory(0x100), rx: []byte("ok")}

	gpio := NewGPIO(m)
	mu := NewMiniUART(dev)

	if mu.Configured() {
		t.Fatal("unexpected configured mini UART")
	}

	initUART(t, cluster.Core(0), gpio, mu)

	if !mu.Configured() {
		t.Fatal("expected configured mini UART")
	}

	if v := dev.Memory.Read(AUX_MU_BAUD); v != DefaultDivisor {
		t.Fatalf("unexpected divisor %d", v)
	}

	if v := dev.Memory.Read(AUX_MU_CNTL); v != 0b11 {
		t.Fatalf("unexpected control %#b", v)
	}

	if v := dev.Memory.Read(AUX_ENABLES); v != 1 {
		t.Fatalf("unexpected enables %#b", v)
	}

	if v := dev.Memory.Read(AUX_MU_LCR); v != LCR_8BIT {
		t.Fatalf("unexpected line control %#b", v)
	}

	setup := []write{
		{AUX_ENABLES, 1},
		{AUX_MU_IER, 0},
		{AUX_MU_CNTL, 0},
		{AUX_MU_LCR, LCR_8BIT},
		{AUX_MU_MCR, 0},
		{AUX_MU_IER, 0},
		{AUX_MU_IIR, IIR_FIFO_CLEAR},
		{AUX_MU_BAUD, DefaultDivisor},
		{AUX_MU_CNTL, 0b11},
	}

	if len(dev.writes) != len(setup) {
		t.Fatalf("unexpected setup sequence %v", dev.writes)
	}

	for i, w := range setup {
		if dev.writes[i] != w {
			t.Errorf("setup write %d: expected %#x=%#x; got %#x=%#x", i, w.off, w.val, dev.writes[i].off, dev.writes[i].val)
		}
	}

	// configuration is observed by another core without re-initializing
	u, err := mu.Acquire(context.Background(), cluster.Core(1))

	if err != nil {
		t.Fatal(err)
	}

	if !u.Configured() {
		t.Fatal("expected configuration to persist")
	}

	if _, err = u.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	var rx []byte

	for {
		c, ok := u.Rx()

		if !ok {
			break
		}

		rx = append(rx, c)
	}

	u.Release()

	if s := dev.tx.String(); s != "hello" {
		t.Fatalf("unexpected output %q", s)
	}

	if string(rx) != "ok" {
		t.Fatalf("unexpected input %q", rx)
	}
}

func TestMiniUARTTryTx(t *testing.T) {
	cluster := cpu.NewCluster(2)
	dev := &aux{Memory: reg.NewMemory(0x100)}

	gpio := NewGPIO(reg.NewMemory(0x100))
	mu := NewMiniUART(dev)

	if mu.TryTx(cluster.Core(0), 'a') {
		t.Fatal("unexpected transmission on unconfigured device")
	}

	initUART(t, cluster.Core(0), gpio, mu)

	if !mu.TryTx(cluster.Core(0), 'b') {
		t.Fatal("expected transmission on free device")
	}

	u, err := mu.Acquire(context.Background(), cluster.Core(1))

	if err != nil {
		t.Fatal(err)
	}

	if mu.TryTx(cluster.Core(0), 'c') {
		t.Fatal("unexpected transmission on held device")
	}

	u.Release()

	if s := dev.tx.String(); s != "b" {
		t.Fatalf("unexpected output %q", s)
	}

	if mu.Owner() != -1 {
		t.Fatalf("expected free device; got owner %d", mu.Owner())
	}
}

func TestMiniUARTNotConfigured(t *testing.T) {
	core := cpu.NewCluster(1).Core(0)
	mu := NewMiniUART(&aux{Memory: reg.NewMemory(0x100)})

	u, err := mu.Acquire(context.Background(), core)

	if err != nil {
		t.Fatal(err)
	}

	defer u.Release()

	for name, fn := range map[string]func(){
		"Tx":    func() { u.Tx('a') },
		"Rx":    func() { u.Rx() },
		"Write": func() { _, _ = u.Write([]byte("a")) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic on unconfigured device", name)
				}
			}()

			fn()
		}()
	}
}
