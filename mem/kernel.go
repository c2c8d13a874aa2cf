// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"sync"
)

var (
	kernelOnce  sync.Once
	kernelArena *Arena
)

// Kernel returns the process wide kernel arena, of KernelArenaSize bytes,
// which lives for the entire kernel lifetime.
//
// The kernel arena must only be used by the boot core (or under a lock held
// by the caller).
func Kernel() *Arena {
	kernelOnce.Do(func() {
		kernelArena = NewArenaFrom(kernelHeap())
	})

	return kernelArena
}
