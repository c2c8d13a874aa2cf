// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// ErrNotImplemented is returned when widening a box to an interface its
// value does not implement.
var ErrNotImplemented = errors.New("interface not implemented")

// Box is an exclusive owning handle to an arena allocated value. Boxes are
// never released, dropping one leaves the arena untouched.
type Box[T any] struct {
	p *T
}

// Get returns a mutable view of the boxed value, Get panics if the box has
// been moved by Widen.
func (b *Box[T]) Get() *T {
	if b.p == nil {
		panic("mem: use of moved box")
	}

	return b.p
}

// Valid reports whether the box still owns its value.
func (b *Box[T]) Valid() bool {
	return b.p != nil
}

func (b *Box[T]) value() any {
	switch v := any(b.Get()).(type) {
	case fmt.Formatter, fmt.Stringer, error:
		return v
	}

	return *b.p
}

// Format delegates formatting to the boxed value.
func (b *Box[T]) Format(f fmt.State, verb rune) {
	fmt.Fprintf(f, fmt.FormatString(f, verb), b.value())
}

// String delegates to the boxed value default format.
func (b *Box[T]) String() string {
	return fmt.Sprint(b.value())
}

// Dyn is an owning handle to an arena allocated value viewed through the
// interface I.
type Dyn[I any] struct {
	v I
}

// Value returns the interface view of the boxed value.
func (d *Dyn[I]) Value() I {
	return d.v
}

// Format delegates formatting to the boxed value.
func (d *Dyn[I]) Format(f fmt.State, verb rune) {
	fmt.Fprintf(f, fmt.FormatString(f, verb), d.v)
}

// String delegates to the boxed value default format.
func (d *Dyn[I]) String() string {
	return fmt.Sprint(d.v)
}

// Widen moves a box into a handle over interface I, which must be
// implemented by *T. The source box is invalidated so that a single handle
// to the arena region remains.
func Widen[I any, T any](b *Box[T]) (d *Dyn[I], err error) {
	if t := typeOf[I](); t.Kind() != reflect.Interface {
		return nil, errors.Errorf("cannot widen to non-interface type %s", t)
	}

	v, ok := any(b.Get()).(I)

	if !ok {
		return nil, errors.Wrapf(ErrNotImplemented, "%s by *%s", typeOf[I](), typeOf[T]())
	}

	b.p = nil

	return &Dyn[I]{v: v}, nil
}
