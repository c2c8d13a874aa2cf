// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cmd implements the simulator monitor shell commands.
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/usbarmory/smp-example/sim"
)

// CmdFn represents a command handler.
type CmdFn func(term *term.Terminal, arg []string) (res string, err error)

// Cmd represents a monitor shell command.
type Cmd struct {
	Name    string
	Args    int
	Pattern *regexp.Regexp
	Syntax  string
	Help    string
	Fn      CmdFn
}

var cmds = make(map[string]*Cmd)

// Machine is the simulated board inspected by the commands.
var Machine *sim.Machine

func init() {
	Add(Cmd{
		Name: "help",
		Help: "this help",
		Fn:   helpCmd,
	})

	Add(Cmd{
		Name:    "exit, quit",
		Args:    1,
		Pattern: regexp.MustCompile(`^(exit|quit)$`),
		Help:    "close session",
		Fn:      exitCmd,
	})
}

// Add registers a command.
func Add(cmd Cmd) {
	cmds[cmd.Name] = &cmd
}

// Help returns the formatted list of commands.
func Help(term *term.Terminal) string {
	var help bytes.Buffer
	var names []string

	t := tabwriter.NewWriter(&help, 16, 8, 0, '\t', tabwriter.TabIndent)

	for name := range cmds {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		cmd := cmds[name]
		_, _ = fmt.Fprintf(t, "%s\t%s\t # %s\n", cmd.Name, cmd.Syntax, cmd.Help)
	}

	_ = t.Flush()

	if term != nil {
		return string(term.Escape.Cyan) + help.String() + string(term.Escape.Reset)
	}

	return help.String()
}

func helpCmd(term *term.Terminal, _ []string) (string, error) {
	return Help(term), nil
}

func exitCmd(_ *term.Terminal, _ []string) (string, error) {
	return "logout", io.EOF
}

// Handle parses and executes a command line.
func Handle(term *term.Terminal, line string) (err error) {
	var match *Cmd
	var arg []string
	var res string

	line = strings.TrimSpace(line)

	if len(line) == 0 {
		return
	}

	if Machine == nil {
		return fmt.Errorf("no machine")
	}

	for _, cmd := range cmds {
		if cmd.Args == 0 && cmd.Name == line {
			match = cmd
			break
		}

		if cmd.Pattern == nil {
			continue
		}

		if m := cmd.Pattern.FindStringSubmatch(line); len(m) > 0 && (len(m)-1 == cmd.Args) {
			match = cmd
			arg = m[1:]
			break
		}
	}

	if match == nil {
		return fmt.Errorf("unknown command, type `help`")
	}

	if res, err = match.Fn(term, arg); len(res) > 0 {
		fmt.Fprintln(term, res)
	}

	return
}
