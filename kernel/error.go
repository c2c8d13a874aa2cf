// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/excl"
	"github.com/usbarmory/smp-example/mem"
)

// Error field sizes, longer values are truncated.
const (
	MaxModule  = 8
	MaxMessage = 118
)

// Error describes a kernel error, instances are allocated in the kernel
// arena and therefore only hold fixed size fields.
type Error struct {
	module  [MaxModule]byte
	message [MaxMessage]byte

	moduleLen  uint8
	messageLen uint8
}

// Module returns the kernel module reporting the error.
func (e *Error) Module() string {
	return string(e.module[:e.moduleLen])
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.message[:e.messageLen])
}

// truncate copies s into dst without splitting a multi-byte character.
func truncate(dst []byte, s string) uint8 {
	n := len(s)

	if n > len(dst) {
		n = len(dst)

		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
	}

	return uint8(copy(dst, s[:n]))
}

// Errorf allocates a kernel error in the kernel arena, on behalf of core c.
// An out of memory condition, or ctx being done before the arena is
// available, is returned as a regular error wrapping the cause.
func (k *Kernel) Errorf(ctx context.Context, c cpu.Core, module string, format string, a ...interface{}) error {
	var e *mem.Box[Error]

	err := k.arena.With(ctx, c, func(h *excl.Handle[*mem.Arena]) (err error) {
		e, err = mem.Uninit[Error](h.Resource())
		return
	})

	if err != nil {
		return errors.Wrapf(err, "[%s] %s", module, fmt.Sprintf(format, a...))
	}

	r := e.Get()
	r.moduleLen = truncate(r.module[:], module)
	r.messageLen = truncate(r.message[:], fmt.Sprintf(format, a...))

	d, err := mem.Widen[error](e)

	if err != nil {
		return err
	}

	return d.Value()
}
