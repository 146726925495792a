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

package main

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rgiles/m16/pkg/cpu"
	"github.com/rgiles/m16/pkg/debugger"
	"github.com/rgiles/m16/pkg/disasm"
	"github.com/rgiles/m16/pkg/encoding"
	"github.com/rgiles/m16/pkg/isa"
)

var lastcmd []string

func debugBreak(dbg *debugger.Debugger, args []string) {
	const usage = "break [add|list|remove]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [0x####]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])
		if err != nil {
			log.Println(err)
			return
		}

		exists := false
		for _, breakpoint := range dbg.Breakpoints {
			if breakpoint.Addr == addr {
				exists = true
				break
			}
		}

		if !exists {
			dbg.Breakpoints = append(dbg.Breakpoints, debugger.Breakpoint{Addr: addr})
			fmt.Printf("Breakpoint added [%#04x]\n", addr)
		}

	case "l", "ls", "list":
		const usage = "break list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		digits := math.Floor(math.Log10(float64(len(dbg.Breakpoints) + 1)))
		fmtstring := fmt.Sprintf("#%%0%dd: %%#x\n", int64(digits)+1)

		for i, breakpoint := range dbg.Breakpoints {
			log.Printf(fmtstring, i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Breakpoints)) {
			log.Println("Invalid breakpoint number")
			return
		}

		dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
		dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
		fmt.Printf("Breakpoint removed [%d]\n", i)

	case "clear":
		dbg.Breakpoints = nil
		fmt.Println("Breakpoints reset")

	default:
		log.Printf("break: '%s' is not a valid command\n", cmd)
	}
}

func debugWatch(dbg *debugger.Debugger, args []string) {
	const usage = "watch [add|list|rm]"

	if len(args) == 0 {
		log.Println(usage)
		return
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [0x####] [read|write|readwrite]"

		if len(args) != 2 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])
		if err != nil {
			log.Println(err)
			return
		}

		var wtype debugger.WatchpointType
		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "rwrite", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			log.Println(usage)
			return
		}

		exists := false
		for _, watchpoint := range dbg.Watchpoints {
			if watchpoint.Addr == addr && watchpoint.Type == wtype {
				exists = true
				break
			}
		}

		if !exists {
			dbg.Watchpoints = append(dbg.Watchpoints, debugger.Watchpoint{Addr: addr, Type: wtype})

			var typename string
			switch wtype {
			case debugger.ReadWatch:
				typename = "R"
			case debugger.WriteWatch:
				typename = "W"
			case debugger.ReadWriteWatch:
				typename = "RW"
			}

			fmt.Printf("Watchpoint added [%#04x] (%s)\n", addr, typename)
		}

	case "l", "ls", "list":
		const usage = "watch list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		digits := math.Floor(math.Log10(float64(len(dbg.Watchpoints) + 1)))
		fmtstring := fmt.Sprintf("#%%0%dd: %%#x %%s\n", int64(digits)+1)

		for i, watchpoint := range dbg.Watchpoints {
			switch watchpoint.Type {
			case debugger.WriteWatch:
				log.Printf(fmtstring, i, watchpoint.Addr, "write")
			case debugger.ReadWatch:
				log.Printf(fmtstring, i, watchpoint.Addr, "read")
			case debugger.ReadWriteWatch:
				log.Printf(fmtstring, i, watchpoint.Addr, "rwrite")
			}
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Watchpoints)) {
			log.Println("Invalid watchpoint number")
			return
		}

		dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
		dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
		fmt.Printf("Watchpoint removed [%d]\n", i)

	case "clear":
		dbg.Watchpoints = nil
		fmt.Println("Watchpoints reset")

	default:
		log.Printf("watch: '%s' is not a valid command\n", cmd)
	}
}

func flagString(flags uint16) string {
	var b strings.Builder
	for _, f := range []struct {
		bit  uint16
		name byte
	}{
		{isa.FlagZero, 'Z'},
		{isa.FlagCarry, 'C'},
		{isa.FlagNegative, 'N'},
		{isa.FlagOverflow, 'V'},
	} {
		if flags&f.bit != 0 {
			b.WriteByte(f.name)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func debugReg(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "register [R#|PC|SP|FLAGS] [0x####]"

	if len(args) > 0 {
		if len(args) != 2 {
			log.Println(usage)
			return
		}

		value, err := encoding.DecodeHex(args[1])
		if err != nil {
			log.Println(err)
			return
		}

		name := strings.ToUpper(args[0])

		if len(name) == 2 && name[0] == 'R' && name[1] >= '0' && name[1] <= '7' {
			vm.Registers[name[1]-'0'] = value
		} else {
			switch name {
			case "PC":
				vm.PC = value
			case "SP":
				vm.SP = value
			case "FLAGS":
				vm.Flags = value
			default:
				log.Println("Invalid register")
				return
			}
		}

		fmt.Printf("\033[1m%s:\033[0m %#04x\n", name, value)
		return
	}

	for i, register := range vm.Registers {
		fmt.Printf("\033[1mR%d:\033[0m %#04x\t", i, register)
		if i == (len(vm.Registers)-1)/2 {
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Printf(
		"\033[1mPC:\033[0m %#04x\t\033[1mSP:\033[0m %#04x\t\033[1mFLAGS:\033[0m %s\n",
		vm.PC, vm.SP, flagString(vm.Flags),
	)
}

func debugSource(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "source [0x####|label] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	addr := vm.PC
	var size uint16 = 3
	var err error

	if len(args) > 0 {
		isLabel := false
		for labelAddr, label := range dbg.SymTable.Labels {
			if label == args[0] {
				isLabel = true
				addr = labelAddr
				break
			}
		}

		if !isLabel {
			addr, err = encoding.DecodeHex(args[0])
			if err != nil {
				var value int64
				value, err = strconv.ParseInt(args[0], 10, 16)
				if err != nil {
					log.Println(err)
					return
				}

				addr = vm.PC
				size = uint16(value)
			}
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			log.Println(err)
			return
		}
		size = uint16(value)
	}

	dbg.PrintSource(addr, size)
}

func debugLabels(dbg *debugger.Debugger, args []string) {
	const usage = "labels"

	if len(args) > 0 {
		fmt.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	keys := make([]uint16, 0, len(dbg.SymTable.Labels))
	for addr := range dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, addr := range keys {
		fmt.Printf("\033[1m[%#04x]\033[0m %s\n", addr, dbg.SymTable.Labels[addr])
	}
}

func debugJump(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "jump [0x####|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	if addr, err := encoding.DecodeHex(args[0]); err == nil {
		vm.PC = addr
		fmt.Printf("\033[1mPC:\033[0m %#04x\n", addr)
		return
	}

	if dbg.SymTable != nil {
		for addr, label := range dbg.SymTable.Labels {
			if label == args[0] {
				vm.PC = addr
				fmt.Printf("\033[1mPC:\033[0m %#04x \033[1;30m(%s)\033[0m\n", addr, label)
				return
			}
		}
		fmt.Printf("Unable to find '%s'\n", args[0])
		return
	}

	fmt.Println("No symbol table loaded")
}

func debugMemory(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "memory [0x####|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	var size uint16 = 1
	addr := vm.PC
	var err error

	if len(args) > 0 {
		addr, err = encoding.DecodeHex(args[0])
		if err != nil {
			value, err := strconv.ParseInt(args[0], 10, 16)
			if err != nil {
				log.Println(err)
				return
			}
			addr = vm.PC
			size = uint16(value)
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			log.Println(err)
			return
		}
		size = uint16(value)
	}

	dbg.PrintMem(vm, addr, size)
}

func debugSet(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "set [0x####] [0x####]"

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	addr, err := encoding.DecodeHex(args[0])
	if err != nil {
		log.Println(err)
		return
	}

	value, err := encoding.DecodeHex(args[1])
	if err != nil {
		log.Println(err)
		return
	}

	vm.Memory.WriteWord(addr, value)
	dbg.PrintMem(vm, addr, 1)
}

// debugDisasm decodes and prints count instructions starting at addr,
// advancing by each instruction's real size so two-word instructions don't
// desynchronize the listing.
func debugDisasm(dbg *debugger.Debugger, vm *cpu.CPU, args []string) {
	const usage = "disasm [0x####] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	addr := vm.PC
	var count uint16 = 8
	var err error

	if len(args) > 0 {
		addr, err = encoding.DecodeHex(args[0])
		if err != nil {
			log.Println(err)
			return
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			log.Println(err)
			return
		}
		count = uint16(value)
	}

	for i := uint16(0); i < count; i++ {
		instr := vm.Memory.ReadWord(addr)
		op := isa.GetOpcode(instr)

		var operand uint16
		size := isa.Size(op)
		if size == 4 {
			operand = vm.Memory.ReadWord(addr + 2)
		}

		fmt.Printf("\033[1m[%#04x]\033[0m %s\n", addr, disasm.Instruction(instr, operand))
		addr += size
	}
}

func debugREPL(dbg *debugger.Debugger, vm *cpu.CPU) {
	exitRawTerm()
	defer enterRawTerm()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\033[1;30m(dbg)\033[0m ")

		if !scanner.Scan() {
			fmt.Println()
			shouldexit = true
			return
		}

		args := strings.Fields(scanner.Text())

		if len(args) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = make([]string, len(args))
			copy(lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			debugBreak(dbg, args)

		case "w", "wp", "watch", "watchpoint":
			debugWatch(dbg, args)

		case "r", "reg", "register", "registers":
			debugReg(dbg, vm, args)

		case "s", "src", "source":
			debugSource(dbg, vm, args)

		case "l", "label", "labels":
			debugLabels(dbg, args)

		case "j", "jmp", "jump":
			debugJump(dbg, vm, args)

		case "m", "mem", "memory":
			debugMemory(dbg, vm, args)

		case "disasm", "dis":
			debugDisasm(dbg, vm, args)

		case "set":
			debugSet(dbg, vm, args)

		case "c", "continue":
			dbg.Break = false
			return

		case "n", "next", "step":
			dbg.Break = true
			return

		case "q", "quit", "exit":
			shouldexit = true
			return

		case "clear":
			fmt.Print("\033[H\033[2J")

		case "reset":
			resetMachine(vm)

		default:
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}

func handleBreak(dbg *debugger.Debugger, vm *cpu.CPU) {
	if !dbg.Break {
		fmt.Println()
		fmt.Println("Program stopped")
		dbg.PrintSource(vm.PC, 8)
	}
	debugREPL(dbg, vm)
}

func handleRead(addr uint16, dbg *debugger.Debugger, vm *cpu.CPU) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(vm, addr, 1)
	debugREPL(dbg, vm)
}

func handleWrite(addr uint16, dbg *debugger.Debugger, vm *cpu.CPU) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(vm, addr, 1)
	debugREPL(dbg, vm)
}
