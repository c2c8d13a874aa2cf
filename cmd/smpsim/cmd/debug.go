// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"runtime/pprof"

	"golang.org/x/term"

	"github.com/usbarmory/smp-example/util"
)

func init() {
	Add(Cmd{
		Name: "stack",
		Help: "stack trace of all simulated cores",
		Fn:   stackCmd,
	})

	Add(Cmd{
		Name:    "sym",
		Args:    1,
		Pattern: regexp.MustCompile(`^sym (\S+)$`),
		Syntax:  "<name>",
		Help:    "resolve simulator function symbols",
		Fn:      symCmd,
	})
}

func stackCmd(_ *term.Terminal, _ []string) (string, error) {
	buf := new(bytes.Buffer)
	pprof.Lookup("goroutine").WriteTo(buf, 1)

	return buf.String(), nil
}

func symCmd(_ *term.Terminal, arg []string) (res string, err error) {
	var buf bytes.Buffer

	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("unsupported on %s", runtime.GOOS)
	}

	exe, err := os.Executable()

	if err != nil {
		return
	}

	syms, err := util.LookupSym(exe, arg[0])

	if err != nil {
		return
	}

	for _, sym := range syms {
		fmt.Fprintf(&buf, "%#016x %6d %s (%s)\n", sym.Value, sym.Size, sym.Name, sym.Line)
	}

	return buf.String(), nil
}
