// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !tamago

package mem

import (
	"unsafe"
)

// heap backs the kernel arena on hosted builds, word sized elements keep it
// aligned to Word.
var heap [KernelArenaSize / Word]uint64

func kernelHeap() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&heap[0])), KernelArenaSize)
}
