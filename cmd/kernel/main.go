// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// The kernel command is the Raspberry Pi 3 kernel image, executing in
// AArch32 state on top of the TamaGo BCM2835 SoC support.
//
// The Go runtime executes on the boot core only, secondary cores are left
// parked by the firmware and the dispatcher is therefore sized to a single
// core.
package main

import (
	"context"
	"log"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/bcm2835"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/kernel"
	"github.com/usbarmory/smp-example/mem"
	"github.com/usbarmory/smp-example/reg"
	"github.com/usbarmory/smp-example/soc/bcm2837"
)

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = mem.KernelSize

// cores executing Go code
const cores = 1

var k *kernel.Kernel

// hwinit runs before the Go runtime is initialized and must not allocate.
//
//go:linkname hwinit runtime.hwinit
func hwinit() {
	bcm2835.Init(mem.PeripheralStart)
}

//go:linkname printk runtime.printk
func printk(c byte) {
	if k == nil {
		// early console, configured by the SoC package before any
		// kernel core can hold the mini UART
		bcm2835.MiniUART.Tx(c)
		return
	}

	// runtime output never waits on the console guard, it is dropped
	// while the console is unconfigured or held
	k.UART().TryTx(cpu.Current(), c)
}

type console struct{}

func (console) Write(p []byte) (int, error) {
	for _, c := range p {
		printk(c)
	}

	return len(p), nil
}

func init() {
	log.SetFlags(0)
	log.SetOutput(console{})

	log.Printf("%s/%s (%s) • %d core(s)", runtime.GOOS, runtime.GOARCH, runtime.Version(), cores)

	k = kernel.New(kernel.Config{
		GPIO:  reg.MMIO{Base: bcm2837.GPIO_BASE},
		AUX:   reg.MMIO{Base: bcm2837.AUX_BASE},
		Arena: mem.Kernel(),
		Cores: cores,
	})
}

func main() {
	c := cpu.Current()

	if c.ID() != 0 {
		_ = k.Secondary(context.Background(), c)
		return
	}

	// never returns
	_ = k.Boot(context.Background(), c)
}
