// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/term"
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// BufferedLog represents a line buffered console log, output is flushed on
// each new line or once outputLimit is exceeded.
type BufferedLog struct {
	sync.Mutex

	buf bytes.Buffer
	out []io.Writer
}

// NewBufferedLog returns a console log flushing to out.
func NewBufferedLog(out ...io.Writer) *BufferedLog {
	return &BufferedLog{
		out: out,
	}
}

// Attach adds a destination, the returned function removes it.
func (l *BufferedLog) Attach(w io.Writer) (detach func()) {
	l.Lock()
	defer l.Unlock()

	l.out = append(l.out, w)

	return func() {
		l.Lock()
		defer l.Unlock()

		for i, o := range l.out {
			if o == w {
				l.out = append(l.out[:i], l.out[i+1:]...)
				break
			}
		}
	}
}

func (l *BufferedLog) flush() {
	for _, w := range l.out {
		_, _ = w.Write(l.buf.Bytes())
	}

	l.buf.Reset()
}

// Write implements io.Writer.
func (l *BufferedLog) Write(p []byte) (n int, err error) {
	l.Lock()
	defer l.Unlock()

	for _, c := range p {
		l.buf.WriteByte(c)

		if c == flushChr || l.buf.Len() > outputLimit {
			l.flush()
		}
	}

	return len(p), nil
}

// Flush outputs any pending characters.
func (l *BufferedLog) Flush() {
	l.Lock()
	defer l.Unlock()

	if l.buf.Len() > 0 {
		l.flush()
	}
}

// TermLog represents a terminal destination for console logs, each flushed
// chunk is colored.
type TermLog struct {
	Term  *term.Terminal
	Color []byte
}

// Write implements io.Writer.
func (t *TermLog) Write(p []byte) (int, error) {
	_, _ = t.Term.Write(t.Color)
	n, err := t.Term.Write(p)
	_, _ = t.Term.Write(t.Term.Escape.Reset)

	return n, err
}
