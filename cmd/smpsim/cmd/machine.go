// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/term"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/excl"
	"github.com/usbarmory/smp-example/mem"
	"github.com/usbarmory/smp-example/soc/bcm2837"
)

// monitor operations never wait longer than this for shared resources
const acquireTimeout = 1 * time.Second

func init() {
	Add(Cmd{
		Name: "cores",
		Help: "show cores state",
		Fn:   coresCmd,
	})

	Add(Cmd{
		Name: "arena",
		Help: "show kernel arena usage",
		Fn:   arenaCmd,
	})

	Add(Cmd{
		Name: "uart",
		Help: "show console devices state",
		Fn:   uartCmd,
	})

	Add(Cmd{
		Name:    "publish",
		Args:    1,
		Pattern: regexp.MustCompile(`^publish (\d+)$`),
		Syntax:  "<core>",
		Help:    "publish a greeting task to a secondary core",
		Fn:      publishCmd,
	})

	Add(Cmd{
		Name:    "kerr",
		Args:    2,
		Pattern: regexp.MustCompile(`^kerr (\w+) (.*)$`),
		Syntax:  "<module> <message>",
		Help:    "allocate a kernel error in the arena",
		Fn:      kerrCmd,
	})
}

func coresCmd(_ *term.Terminal, _ []string) (string, error) {
	var buf bytes.Buffer

	d := Machine.Kernel().Dispatcher()

	buf.WriteString("| core | role      | pending | runs | waits | wakes | events |\n")
	buf.WriteString("|------|-----------|---------|------|-------|-------|--------|\n")

	for i := 0; i < Machine.Cluster().Len(); i++ {
		role := "secondary"

		switch {
		case i == 0:
			role = "boot"
		case i == Machine.Cores():
			role = "monitor"
		}

		waits, wakes, events := Machine.Cluster().Core(i).Stats()

		fmt.Fprintf(&buf, "| %4d | %-9s | %7v | %4d | %5d | %5d | %6d |\n",
			i, role, d.Pending(i), d.Runs(i), waits, wakes, events)
	}

	return buf.String(), nil
}

func arenaCmd(_ *term.Terminal, _ []string) (res string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	err = Machine.Kernel().Arena().With(ctx, Machine.Monitor(), func(h *excl.Handle[*mem.Arena]) error {
		a := h.Resource()
		res = fmt.Sprintf("used:%d free:%d capacity:%d", a.Used(), a.Free(), a.Cap())
		return nil
	})

	return
}

func owner(id int) string {
	if id < 0 {
		return "free"
	}

	return fmt.Sprintf("core %d", id)
}

func uartCmd(_ *term.Terminal, _ []string) (string, error) {
	var buf bytes.Buffer

	k := Machine.Kernel()
	aux := Machine.AUX()
	tx, dropped := aux.Stats()
	gpfsel1 := Machine.GPIO().Read(bcm2837.GPFSEL0 + 4)

	fmt.Fprintf(&buf, "mini UART configured:%v owner:%s\n", k.UART().Configured(), owner(k.UART().Owner()))
	fmt.Fprintf(&buf, "mini UART tx:%d dropped:%d rx pending:%d\n", tx, dropped, aux.Pending())
	fmt.Fprintf(&buf, "GPIO owner:%s GPFSEL1:%#08x", owner(k.GPIO().Owner()), gpfsel1)

	return buf.String(), nil
}

func publishCmd(_ *term.Terminal, arg []string) (res string, err error) {
	core, err := strconv.Atoi(arg[0])

	if err != nil {
		return
	}

	k := Machine.Kernel()

	displaced, err := k.Dispatcher().Publish(Machine.Monitor(), core, func(c cpu.Core) {
		ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
		defer cancel()

		_ = k.Printf(ctx, c, "Hello, from cpu %d (monitor)\n", c.ID())
	})

	if err != nil {
		return
	}

	return fmt.Sprintf("published to core %d (displaced:%v)", core, displaced), nil
}

func kerrCmd(_ *term.Terminal, arg []string) (res string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	kerr := Machine.Kernel().Errorf(ctx, Machine.Monitor(), arg[0], "%s", arg[1])
	return fmt.Sprintf("%T %v", kerr, kerr), nil
}
