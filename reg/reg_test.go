// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

import (
	"testing"
	"unsafe"
)

var mmioBlock [4]uint32

func TestMMIO(t *testing.T) {
	block := &mmioBlock

	r := MMIO{Base: uintptr(unsafe.Pointer(&block[0]))}
	r.Write(0x8, 0xcafebabe)

	if block[2] != 0xcafebabe {
		t.Fatalf("unexpected register contents %#x", block[2])
	}

	block[3] = 0x10

	if v := r.Read(0xc); v != 0x10 {
		t.Fatalf("unexpected read %#x", v)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(0x0d)

	if len(m) != 4 {
		t.Fatalf("expected 4 registers; got %d", len(m))
	}

	m.Write(0x4, 0xcafebabe)

	if v := m.Read(0x4); v != 0xcafebabe {
		t.Fatalf("unexpected register value %#x", v)
	}

	// unaligned offsets address the enclosing register
	if v := m.Read(0x6); v != 0xcafebabe {
		t.Fatalf("unexpected register value %#x", v)
	}

	var b Bus = m
	b.Write(0xc, 1)

	if m[3] != 1 {
		t.Fatalf("unexpected register value %#x", m[3])
	}
}
