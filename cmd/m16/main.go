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

// Command m16 is the fetch-decode-execute emulator CLI described in
// spec.md §6: `m16 <binary> [-d|--debug] [-m|--memdump] [-t|--trace]
// [-h|--help]`, exit 0 on clean halt, exit 1 on load failure.
package main

import (
	"bufio"
	"encoding/gob"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rgiles/m16/pkg/assembler"
	"github.com/rgiles/m16/pkg/cpu"
	"github.com/rgiles/m16/pkg/debugger"
	"github.com/rgiles/m16/pkg/disasm"
	"github.com/rgiles/m16/pkg/isa"
	"github.com/rgiles/m16/pkg/memory"
)

var helpvar bool
var debugvar bool
var memdumpvar bool
var tracevar bool
var shouldexit bool

var vmFlat *memory.Flat
var vmProgram []byte

const usage = "m16 <binary> [-d|--debug] [-m|--memdump] [-t|--trace] [-h|--help]"

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&helpvar, "h", false, "Displays command usage")
	flag.BoolVar(&debugvar, "debug", false, "Runs the machine in a debug CLI")
	flag.BoolVar(&debugvar, "d", false, "Runs the machine in a debug CLI")
	flag.BoolVar(&memdumpvar, "memdump", false, "Dumps the full memory image on halt")
	flag.BoolVar(&memdumpvar, "m", false, "Dumps the full memory image on halt")
	flag.BoolVar(&tracevar, "trace", false, "Prints one disassembled trace line per instruction to stderr")
	flag.BoolVar(&tracevar, "t", false, "Prints one disassembled trace line per instruction to stderr")
	flag.Parse()
}

func run() int {
	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	args := flag.Args()
	if len(args) != 1 {
		log.Println(usage)
		return 1
	}

	file, err := os.Open(args[0])
	if err != nil {
		log.Println(err)
		return 1
	}
	defer file.Close()

	program, err := os.ReadFile(args[0])
	if err != nil {
		log.Println(err)
		return 1
	}

	flat := memory.NewFlat()
	if err := flat.LoadProgram(program, 0); err != nil {
		log.Println(err)
		return 1
	}

	vmFlat = flat
	vmProgram = program

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	mem := memory.NewConsole(flat, out)
	vm := cpu.New(mem)
	vm.Diagnostic = func(msg string) { log.Println(msg) }

	if tracevar {
		vm.Tracer = traceLine
	}

	var dbg debugger.Debugger

	if debugvar {
		dbg.HandleBreak = handleBreak
		dbg.HandleRead = handleRead
		dbg.HandleWrite = handleWrite
		dbg.Binary = file
		vm.Debugger = &dbg

		dbname := strings.ReplaceAll(
			filepath.Base(args[0]), filepath.Ext(args[0]), ".m16db",
		)
		dbpath := filepath.Join(filepath.Dir(args[0]), dbname)

		if symfile, err := os.Open(dbpath); err == nil {
			var symtable assembler.SymTable
			if err := gob.NewDecoder(symfile).Decode(&symtable); err == nil {
				dbg.SymTable = &symtable
			} else {
				log.Println("Error loading symbol file")
				log.Println(err)
			}
			symfile.Close()
		}

		if dbg.SymTable != nil && dbg.SymTable.Source != "" {
			if srcfile, err := os.Open(dbg.SymTable.Source); err == nil {
				dbg.Source = srcfile
				defer srcfile.Close()
			} else {
				log.Println("Error loading source file")
				log.Println(err)
			}
		}

		sigc := make(chan os.Signal, 1)
		defer close(sigc)

		signal.Notify(sigc, os.Interrupt)
		go func() {
			for range sigc {
				fmt.Println()
				dbg.Break = true
			}
		}()
	}

	enterRawTerm()
	defer exitRawTerm()

	if debugvar {
		debugREPL(&dbg, vm)
	}

	for !shouldexit && !vm.Halted {
		vm.Step()
	}

	out.Flush()

	if memdumpvar {
		disasm.DumpMemory(os.Stdout, flat.Bytes(), 0, 0xFFFF)
	}

	return 0
}

// traceLine is the cpu.Tracer wired in by -t/--trace: one disassembled
// instruction plus the register file and flags it left behind, to stderr so
// it never interleaves with a program's own 0xF000 console output on
// stdout.
func traceLine(pc uint16, instr uint16, operand uint16, registers [8]uint16, flags uint16) {
	fmt.Fprintf(os.Stderr, "[%#04x] %-28s", pc, disasm.Instruction(instr, operand))
	for i, r := range registers {
		fmt.Fprintf(os.Stderr, " R%d=%#04x", i, r)
	}
	fmt.Fprintf(
		os.Stderr, " FLAGS=%c%c%c%c\n",
		flagChar(flags, isa.FlagZero, 'Z'), flagChar(flags, isa.FlagCarry, 'C'),
		flagChar(flags, isa.FlagNegative, 'N'), flagChar(flags, isa.FlagOverflow, 'V'),
	)
}

func flagChar(flags, bit uint16, c byte) byte {
	if flags&bit != 0 {
		return c
	}
	return '-'
}

// resetMachine restores memory to the freshly-loaded program image and
// resets the CPU, for the debug REPL's "reset" command.
func resetMachine(vm *cpu.CPU) {
	vmFlat.Clear()
	if err := vmFlat.LoadProgram(vmProgram, 0); err != nil {
		log.Println(err)
		return
	}
	vm.Reset()
}

func main() {
	os.Exit(run())
}
