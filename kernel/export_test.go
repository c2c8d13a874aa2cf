// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"context"

	"github.com/usbarmory/smp-example/cpu"
)

// SetHaltFn replaces the core halt function, returning a function restoring
// the original one.
func SetHaltFn(fn func(context.Context, cpu.Core)) (restore func()) {
	orig := haltFn
	haltFn = fn

	return func() {
		haltFn = orig
	}
}
