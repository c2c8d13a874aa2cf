// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem provides the kernel memory layout and a static, never-freeing
// arena allocator.
//
// Arena memory is not scanned by the Go garbage collector (on the board it
// is reserved outside the runtime heap), therefore only pointer-free values
// can be placed in it.
package mem

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfMemory is returned when an allocation does not fit the
	// remaining arena capacity.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrAlignment is returned for alignments which are not a power of 2.
	ErrAlignment = errors.New("invalid alignment")

	// ErrPointers is returned when a type holding Go pointers is placed in
	// an arena.
	ErrPointers = errors.New("type contains pointers")
)

// zerobase is returned for zero-sized allocations.
var zerobase uint64

// Arena represents a fixed capacity memory region from which allocations are
// carved sequentially and never individually freed.
//
// An Arena has a single owner, concurrent allocations from different cores
// must be serialized by the caller.
type Arena struct {
	buf []byte
	end int
}

// NewArena returns an arena backed by a freshly reserved buffer of the given
// size, aligned to Word.
func NewArena(size int) *Arena {
	words := make([]uint64, (size+Word-1)/Word)

	if len(words) == 0 {
		return &Arena{}
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*Word)

	return &Arena{
		buf: buf[:size],
	}
}

// NewArenaFrom returns an arena over caller provided memory, which must
// outlive the arena.
func NewArenaFrom(buf []byte) *Arena {
	return &Arena{
		buf: buf,
	}
}

// Cap returns the arena capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Used returns the number of bytes consumed so far, including alignment
// padding.
func (a *Arena) Used() int {
	return a.end
}

// Free returns the number of bytes left after the cursor.
func (a *Arena) Free() int {
	return len(a.buf) - a.end
}

func (a *Arena) alloc(size uintptr, align uintptr) (off int, p unsafe.Pointer, err error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, nil, ErrAlignment
	}

	if size == 0 {
		return a.end, unsafe.Pointer(&zerobase), nil
	}

	if len(a.buf) == 0 {
		return 0, nil, ErrOutOfMemory
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.buf)))
	start := ((base + uintptr(a.end) + align - 1) &^ (align - 1)) - base
	end := start + size

	// the cursor is left untouched on failure
	if end < start || end > uintptr(len(a.buf)) {
		return 0, nil, ErrOutOfMemory
	}

	a.end = int(end)

	return int(start), unsafe.Pointer(&a.buf[start]), nil
}

// Reserve carves an uninitialized region of the requested size and
// alignment, returning its offset within the arena and the region itself.
func (a *Arena) Reserve(size int, align int) (off int, buf []byte, err error) {
	if size < 0 || align < 0 {
		return 0, nil, errors.Errorf("invalid reservation (size:%d align:%d)", size, align)
	}

	off, p, err := a.alloc(uintptr(size), uintptr(align))

	if err != nil {
		return
	}

	return off, unsafe.Slice((*byte)(p), size), nil
}

// pointerFree reports whether values of type t can be stored in memory which
// is not scanned by the garbage collector.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Uninit reserves a zeroed slot for a value of type T, aligned to T
// alignment requirement.
func Uninit[T any](a *Arena) (b *Box[T], err error) {
	var zero T

	if t := typeOf[T](); !pointerFree(t) {
		return nil, errors.Wrapf(ErrPointers, "cannot allocate %s", t)
	}

	_, p, err := a.alloc(unsafe.Sizeof(zero), unsafe.Alignof(zero))

	if err != nil {
		return
	}

	ptr := (*T)(p)
	*ptr = zero

	return &Box[T]{p: ptr}, nil
}

// Alloc places val in the arena and returns its owning handle.
func Alloc[T any](a *Arena, val T) (b *Box[T], err error) {
	if b, err = Uninit[T](a); err != nil {
		return
	}

	*b.p = val

	return
}
