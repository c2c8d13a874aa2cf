// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

package cpu

import (
	"context"

	"github.com/usbarmory/tamago/arm"
	"github.com/usbarmory/tamago/bits"
)

// MPIDR affinity level 0 field
const MPIDR_AFF0 = 0

// defined in cpu_arm.s
func wfe()
func sev()
func read_mpidr() uint32

var arch = &arm.CPU{}

func init() {
	delayFn = func(cycles int) {
		arm.Busyloop(int32(cycles))
	}
}

// ARM represents the Cortex-A53 core, executing in AArch32 state, running
// the caller.
type ARM struct{}

// Current returns the calling core.
func Current() Core {
	return ARM{}
}

// ID returns the core affinity level 0 number.
func (ARM) ID() int {
	mpidr := read_mpidr()
	return int(bits.Get(&mpidr, MPIDR_AFF0, 0xff))
}

// ExceptionLevel returns the exception level of the current processor mode.
func (ARM) ExceptionLevel() int {
	switch arch.Mode() {
	case arm.USR_MODE:
		return 0
	case arm.HYP_MODE:
		return 2
	case arm.MON_MODE:
		return 3
	default:
		return 1
	}
}

// WaitForEvent executes a single WFE, there is no way to interrupt it other
// than an event therefore ctx is only checked before parking.
func (ARM) WaitForEvent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wfe()

	return nil
}

// SendEvent executes SEV.
func (ARM) SendEvent() {
	sev()
}
