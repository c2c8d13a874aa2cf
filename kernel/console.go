// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"context"
	"fmt"

	"github.com/usbarmory/smp-example/cpu"
)

// console control characters
const (
	CR  = '\r'
	LF  = '\n'
	DEL = 127
)

var erase = []byte("\x08 \x08")

// Write transmits buf on the console, the mini UART is held for the entire
// buffer.
func (k *Kernel) Write(ctx context.Context, c cpu.Core, buf []byte) (n int, err error) {
	if !k.uart.Configured() {
		panic("kernel: mini UART is expected to be initialized before printing")
	}

	uart, err := k.uart.Acquire(ctx, c)

	if err != nil {
		return
	}

	defer uart.Release()

	return uart.Write(buf)
}

// Printf formats according to a format specifier and writes to the console.
func (k *Kernel) Printf(ctx context.Context, c cpu.Core, format string, a ...interface{}) (err error) {
	_, err = k.Write(ctx, c, []byte(fmt.Sprintf(format, a...)))
	return
}

// Send transmits a single character on the console.
func (k *Kernel) Send(ctx context.Context, c cpu.Core, b byte) (err error) {
	_, err = k.Write(ctx, c, []byte{b})
	return
}

// Recv waits for a character from the console. The mini UART is not held
// while waiting, to let other cores print.
func (k *Kernel) Recv(ctx context.Context, c cpu.Core) (b byte, err error) {
	var ok bool

	for {
		if b, ok, err = k.poll(ctx, c); err != nil || ok {
			return
		}

		if err = k.idle(ctx, c); err != nil {
			return 0, err
		}
	}
}

func (k *Kernel) poll(ctx context.Context, c cpu.Core) (b byte, ok bool, err error) {
	uart, err := k.uart.Acquire(ctx, c)

	if err != nil {
		return
	}

	defer uart.Release()

	b, ok = uart.Rx()

	return
}

// Echo runs the console echo loop, carriage returns are translated to line
// feeds and deletes erase the previous character.
func (k *Kernel) Echo(ctx context.Context, c cpu.Core) (err error) {
	var b byte

	for {
		if b, err = k.Recv(ctx, c); err != nil {
			return
		}

		switch b {
		case CR:
			err = k.Send(ctx, c, LF)
		case DEL:
			_, err = k.Write(ctx, c, erase)
		default:
			err = k.Send(ctx, c, b)
		}

		if err != nil {
			return
		}
	}
}
