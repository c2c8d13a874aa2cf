// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"debug/elf"
	"debug/gosym"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Symbol represents a resolved executable symbol.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
	Line  string
}

func goSymTable(exe *elf.File) (symTable *gosym.Table, err error) {
	text := exe.Section(".text")
	pcln := exe.Section(".gopclntab")

	if text == nil || pcln == nil {
		return nil, errors.New("missing Go symbol sections")
	}

	lineTableData, err := pcln.Data()

	if err != nil {
		return
	}

	lineTable := gosym.NewLineTable(lineTableData, text.Addr)

	var symTableData []byte

	if s := exe.Section(".gosymtab"); s != nil {
		if symTableData, err = s.Data(); err != nil {
			return
		}
	}

	return gosym.NewTable(symTableData, lineTable)
}

// LookupSym returns all symbols of the ELF executable at path containing
// name, along with their source location.
func LookupSym(path string, name string) (res []Symbol, err error) {
	exe, err := elf.Open(path)

	if err != nil {
		return
	}

	defer exe.Close()

	syms, err := exe.Symbols()

	if err != nil {
		return
	}

	symTable, err := goSymTable(exe)

	if err != nil {
		return
	}

	for _, sym := range syms {
		if !strings.Contains(sym.Name, name) || elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}

		file, line, _ := symTable.PCToLine(sym.Value)

		res = append(res, Symbol{
			Name:  sym.Name,
			Value: sym.Value,
			Size:  sym.Size,
			Line:  fmt.Sprintf("%s:%d", file, line),
		})
	}

	if len(res) == 0 {
		return nil, errors.Errorf("symbol %s not found", name)
	}

	return
}
