// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package mem

import (
	"github.com/usbarmory/tamago/dma"
)

// KernelRegion is the memory region reserved for the kernel arena, outside
// the Go runtime heap.
var KernelRegion *dma.Region

func kernelHeap() (buf []byte) {
	KernelRegion = &dma.Region{
		Start: KernelArenaStart,
		Size:  KernelArenaSize,
	}

	KernelRegion.Init()
	_, buf = KernelRegion.Reserve(KernelArenaSize, Word)

	return
}
