// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

// This memory layout targets the Raspberry Pi 3 (BCM2837, 1GB) running in
// AArch32 state, all cores share the same view of physical memory.
const (
	// Go runtime memory, KernelStart matches the BCM2835 SoC package
	// runtime.ramStart
	KernelStart = 0x00100000
	KernelSize  = KernelArenaStart - KernelStart // 15MB

	// Kernel arena, outside the Go runtime memory, never reclaimed
	KernelArenaStart = 0x01000000
	KernelArenaSize  = 0x00001000 // 4KB

	// Peripherals (ARM physical view of the VideoCore bus)
	PeripheralStart = 0x3f000000
)

// Word is the largest alignment requirement of any Go type placed in an
// arena.
const Word = 8
