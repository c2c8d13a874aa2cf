// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/usbarmory/smp-example/cpu"
)

const rt = "rt"

// haltFn is mocked by tests
var haltFn = cpu.Halt

// Panic outputs the supplied error (if not nil) to the console, only if the
// console has been configured, and parks core c permanently.
func (k *Kernel) Panic(ctx context.Context, c cpu.Core, v interface{}) {
	defer haltFn(ctx, c)

	if !k.uart.Configured() || k.uart.Owner() == c.ID() {
		return
	}

	var module, msg string

	switch t := v.(type) {
	case nil:
	case error:
		var kerr *Error

		if errors.As(t, &kerr) {
			module, msg = kerr.Module(), kerr.Error()
		} else {
			module, msg = rt, t.Error()
		}
	case string:
		module, msg = rt, t
	default:
		module, msg = rt, fmt.Sprint(t)
	}

	defer func() {
		// diagnostics are best effort
		_ = recover()
	}()

	out := "\n-----------------------------------\n"

	if len(module) > 0 {
		out += fmt.Sprintf("[%s] unrecoverable error: %s\n", module, msg)
	}

	out += "*** kernel panic: system halted ***"
	out += "\n-----------------------------------\n"

	_, _ = k.Write(ctx, c, []byte(out))
}
