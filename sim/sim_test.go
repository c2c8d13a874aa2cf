// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/usbarmory/smp-example/soc/bcm2837"
)

type syncBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buf.String()
}

func TestAUXDisabled(t *testing.T) {
	var out bytes.Buffer
	notified := 0

	a := NewAUX()
	a.SetOutput(&out)
	a.Notify = func() { notified++ }

	a.Feed([]byte("x"))
	a.Feed(nil)

	if notified != 1 {
		t.Fatalf("expected 1 notification; got %d", notified)
	}

	// reset state: no data path
	if lsr := a.Read(bcm2837.AUX_MU_LSR); lsr != 1<<bcm2837.LSR_TX_EMPTY {
		t.Fatalf("unexpected line status %#b", lsr)
	}

	if c := a.Read(bcm2837.AUX_MU_IO); c != 0 || a.Pending() != 1 {
		t.Fatalf("unexpected reception of %#x", c)
	}

	a.Write(bcm2837.AUX_MU_IO, 'y')

	if tx, dropped := a.Stats(); tx != 0 || dropped != 1 || out.Len() != 0 {
		t.Fatalf("unexpected transmission (tx:%d dropped:%d)", tx, dropped)
	}
}

func TestAUXEnabled(t *testing.T) {
	var out bytes.Buffer

	a := NewAUX()
	a.SetOutput(&out)

	a.Write(bcm2837.AUX_ENABLES, 1)
	a.Write(bcm2837.AUX_MU_CNTL, 0b11)
	a.Write(bcm2837.AUX_MU_BAUD, bcm2837.DefaultDivisor)

	if v := a.Read(bcm2837.AUX_MU_BAUD); v != bcm2837.DefaultDivisor {
		t.Fatalf("unexpected divisor %d", v)
	}

	a.Feed([]byte("ab"))

	var rx []byte

	for a.Read(bcm2837.AUX_MU_LSR)&(1<<bcm2837.LSR_DATA_READY) != 0 {
		rx = append(rx, byte(a.Read(bcm2837.AUX_MU_IO)))
	}

	if string(rx) != "ab" {
		t.Fatalf("unexpected reception %q", rx)
	}

	a.Write(bcm2837.AUX_MU_IO, 'c')

	if tx, dropped := a.Stats(); tx != 1 || dropped != 0 || out.String() != "c" {
		t.Fatalf("unexpected transmission %q (tx:%d dropped:%d)", out.String(), tx, dropped)
	}
}

func TestMachineRun(t *testing.T) {
	out := &syncBuffer{}
	m := NewMachine(Config{Output: out})

	if m.Cores() != 4 || m.Cluster().Len() != 5 || m.Monitor().ID() != 4 {
		t.Fatalf("unexpected topology (cores:%d cluster:%d)", m.Cores(), m.Cluster().Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() {
		done <- m.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)

	for strings.Count(out.String(), "Hello, from cpu") < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("secondary cores did not start, output:\n%s", out.String())
		}

		time.Sleep(time.Millisecond)
	}

	if !m.Kernel().UART().Configured() {
		t.Fatal("expected configured console")
	}

	// GPFSEL1 pins 14 and 15 alternate function 5
	if v := m.GPIO().Read(bcm2837.GPFSEL0 + 4); v != 0x00012000 {
		t.Fatalf("unexpected GPFSEL1 %#x", v)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("machine did not stop")
	}
}
