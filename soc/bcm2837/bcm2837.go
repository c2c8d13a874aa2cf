// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package bcm2837 provides support for the Broadcom BCM2837 peripherals used
// by the kernel console, as found on the Raspberry Pi 3.
//
// Each peripheral register block is wrapped by an exclusive access guard,
// register access is only possible through a handle acquired from it.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm` as
// supported by the TamaGo framework for bare metal Go, or on any host with
// simulated register blocks.
package bcm2837

import (
	"github.com/usbarmory/smp-example/mem"
)

// Peripheral registers (ARM physical view)
const (
	MMIO_BASE = mem.PeripheralStart

	GPIO_BASE = MMIO_BASE + 0x200000
	AUX_BASE  = MMIO_BASE + 0x215000
)

// GPIO pull-up/down control and mini UART setup settle time
const settleCycles = 150
