// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reg provides access to blocks of 32-bit hardware registers.
//
// All accesses are performed with sync/atomic loads and stores, which the
// compiler neither elides nor reorders, as registers have side effects.
package reg

import (
	"sync/atomic"
	"unsafe"
)

// Bus represents a block of 32-bit registers addressed by byte offset.
type Bus interface {
	Read(off uint32) uint32
	Write(off uint32, val uint32)
}

// MMIO represents a memory mapped register block at a fixed physical
// address.
type MMIO struct {
	Base uintptr
}

func (r MMIO) ptr(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(r.Base + uintptr(off)))
}

// Read performs a volatile 32-bit load.
func (r MMIO) Read(off uint32) uint32 {
	return atomic.LoadUint32(r.ptr(off))
}

// Write performs a volatile 32-bit store.
func (r MMIO) Write(off uint32, val uint32) {
	atomic.StoreUint32(r.ptr(off), val)
}

// Memory represents a register block backed by ordinary memory, it is used
// for peripherals which are simulated or have no side effects.
type Memory []uint32

// NewMemory returns a zeroed register block of size bytes.
func NewMemory(size int) Memory {
	return make(Memory, (size+3)/4)
}

// Read returns the register at off.
func (m Memory) Read(off uint32) uint32 {
	return atomic.LoadUint32(&m[off/4])
}

// Write sets the register at off.
func (m Memory) Write(off uint32, val uint32) {
	atomic.StoreUint32(&m[off/4], val)
}
