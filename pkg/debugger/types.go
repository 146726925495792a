// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package debugger implements breakpoints and watchpoints on top of the
// cpu.Debugger seam: it knows nothing about fetch-decode-execute, only about
// which addresses to stop on and who to hand control to when it does.
package debugger

import (
	"os"

	"github.com/rgiles/m16/pkg/assembler"
	"github.com/rgiles/m16/pkg/cpu"
)

type WatchpointType uint

const (
	ReadWatch WatchpointType = iota
	WriteWatch
	ReadWriteWatch
)

type Watchpoint struct {
	Addr uint16
	Type WatchpointType
}

type Breakpoint struct {
	Addr uint16
}

// Debugger implements cpu.Debugger. It holds no REPL logic of its own —
// HandleBreak/HandleRead/HandleWrite are supplied by the CLI so this package
// stays free of terminal I/O.
type Debugger struct {
	Break bool

	Breakpoints []Breakpoint
	Watchpoints []Watchpoint

	Source   *os.File
	Binary   *os.File
	SymTable *assembler.SymTable

	HandleBreak func(*Debugger, *cpu.CPU)
	HandleRead  func(uint16, *Debugger, *cpu.CPU)
	HandleWrite func(uint16, *Debugger, *cpu.CPU)
}
