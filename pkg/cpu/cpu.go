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

// Package cpu implements the m16 register file and the fetch-decode-
// execute loop described in spec.md §4.3, built on top of pkg/isa for
// encoding and pkg/alu for arithmetic.
package cpu

import (
	"fmt"

	"github.com/rgiles/m16/pkg/alu"
	"github.com/rgiles/m16/pkg/isa"
	"github.com/rgiles/m16/pkg/memory"
)

// Debugger receives a callback on every step, memory read, and memory
// write. It is the seam the debugger package's breakpoints/watchpoints
// attach to; the core has no knowledge of what a Debugger does with the
// notification.
type Debugger interface {
	Step(c *CPU)
	Read(addr uint16, c *CPU)
	Write(addr uint16, c *CPU)
}

// Tracer is invoked once per executed instruction, after execution, with
// the instruction's pre-fetch PC, its opcode word, its second word if the
// opcode extends (spec.md §6; zero otherwise), and a post-execution
// snapshot of the register file and flags. This is the "print a trace
// line" external collaborator named in spec.md §1 — the core itself never
// formats or prints anything; cmd/m16's -t/--trace flag is the caller that
// turns this into output.
type Tracer func(pc uint16, instr uint16, operand uint16, registers [8]uint16, flags uint16)

// CPU holds the full machine state described in spec.md §3/§4.3: eight
// general registers, PC, SP, flags, halted, and a monotonic instruction
// counter. Memory is injected rather than embedded so the same CPU can run
// against a plain Flat memory (tests) or a Console-wrapped one (the real
// emulator binary).
type CPU struct {
	Registers [8]uint16
	PC        uint16
	SP        uint16
	Flags     uint16
	Halted    bool

	InstructionCount uint64

	Memory memory.Memory

	Debugger   Debugger
	Tracer     Tracer
	Diagnostic func(string)
}

// New returns a CPU wired to mem, already reset.
func New(mem memory.Memory) *CPU {
	c := &CPU{Memory: mem}
	c.Reset()
	return c
}

// Reset restores the documented power-on state: registers cleared,
// PC = 0x0000, SP = 0xFFFF, flags cleared, halted false, instruction count
// zero. Reset does not touch memory contents.
func (c *CPU) Reset() {
	for i := range c.Registers {
		c.Registers[i] = 0
	}
	c.PC = isa.ProgramStart
	c.SP = isa.ResetSP
	c.Flags = 0
	c.Halted = false
	c.InstructionCount = 0
}

// Step executes exactly one instruction. It is a no-op once Halted.
func (c *CPU) Step() {
	if c.Halted {
		return
	}

	c.fetchDecodeExecute()
	c.InstructionCount++

	if c.Debugger != nil {
		c.Debugger.Step(c)
	}
}

// Run steps the CPU until it halts.
func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

func (c *CPU) readWord(addr uint16) uint16 {
	if c.Debugger != nil {
		c.Debugger.Read(addr, c)
	}
	return c.Memory.ReadWord(addr)
}

func (c *CPU) writeWord(addr uint16, value uint16) {
	if c.Debugger != nil {
		c.Debugger.Write(addr, c)
	}
	c.Memory.WriteWord(addr, value)
}

func (c *CPU) push(value uint16) {
	c.SP -= 2
	c.writeWord(c.SP, value)
}

func (c *CPU) pop() uint16 {
	value := c.readWord(c.SP)
	c.SP += 2
	return value
}

func (c *CPU) fail(format string, args ...interface{}) {
	if c.Diagnostic != nil {
		c.Diagnostic(fmt.Sprintf(format, args...))
	}
	c.Halted = true
}

// fetchDecodeExecute is the loop from spec.md §4.3: fetch one word, advance
// PC past it, decode the fields, dispatch on opcode. Two-word instructions
// read their operand word and advance PC again, except JMP, which reads
// the operand and assigns straight to PC without a second advance.
func (c *CPU) fetchDecodeExecute() {
	instr := c.readWord(c.PC)
	currentPC := c.PC
	c.PC += 2

	op := isa.GetOpcode(instr)
	rd := isa.GetRd(instr)
	rs := isa.GetRs(instr)
	rt := isa.GetRt(instr)

	// Peeked ahead of execute so the Tracer can describe a two-word
	// instruction fully; the peek has no side effect of its own (reads
	// never do in this core) and execute still performs its own read to
	// advance PC past the operand. Skipped when there is no Tracer to feed.
	var operand uint16
	if c.Tracer != nil && isa.Extends(op) {
		operand = c.Memory.ReadWord(c.PC)
	}

	c.execute(op, rd, rs, rt, instr)

	if c.Tracer != nil {
		c.Tracer(currentPC, instr, operand, c.Registers, c.Flags)
	}
}

func (c *CPU) execute(op isa.Opcode, rd, rs, rt uint16, instr uint16) {
	switch op {
	case isa.NOP:
		if rd != rs {
			c.Registers[rd] = c.Registers[rs]
		}

	case isa.MOVI:
		c.Registers[rd] = isa.SignExtend(isa.GetImm7(instr), 7)

	case isa.LOAD_IND:
		c.Registers[rd] = c.readWord(c.Registers[rs])

	case isa.LOAD_DIR:
		addr := c.readWord(c.PC)
		c.PC += 2
		c.Registers[rd] = c.readWord(addr)

	case isa.STORE_IND:
		c.writeWord(c.Registers[rd], c.Registers[rs])

	case isa.STORE_DIR:
		addr := c.readWord(c.PC)
		c.PC += 2
		c.writeWord(addr, c.Registers[rs])

	case isa.ADD:
		c.Registers[rd], c.Flags = alu.Add(c.Registers[rs], c.Registers[rt])
	case isa.ADDI:
		imm := isa.SignExtend(isa.GetImm4(instr), 4)
		c.Registers[rd], c.Flags = alu.Add(c.Registers[rs], imm)
	case isa.SUB:
		c.Registers[rd], c.Flags = alu.Sub(c.Registers[rs], c.Registers[rt])
	case isa.SUBI:
		imm := isa.SignExtend(isa.GetImm4(instr), 4)
		c.Registers[rd], c.Flags = alu.Sub(c.Registers[rs], imm)
	case isa.MUL:
		c.Registers[rd], c.Flags = alu.Mul(c.Registers[rs], c.Registers[rt])
	case isa.DIV:
		c.Registers[rd], c.Flags = alu.Div(c.Registers[rs], c.Registers[rt])
	case isa.INC:
		c.Registers[rd], c.Flags = alu.Add(c.Registers[rd], 1)
	case isa.DEC:
		c.Registers[rd], c.Flags = alu.Sub(c.Registers[rd], 1)

	case isa.AND:
		c.Registers[rd], c.Flags = alu.And(c.Registers[rs], c.Registers[rt])
	case isa.ANDI:
		imm := isa.ZeroExtend(isa.GetImm4(instr), 4)
		c.Registers[rd], c.Flags = alu.And(c.Registers[rs], imm)
	case isa.OR:
		c.Registers[rd], c.Flags = alu.Or(c.Registers[rs], c.Registers[rt])
	case isa.ORI:
		imm := isa.ZeroExtend(isa.GetImm4(instr), 4)
		c.Registers[rd], c.Flags = alu.Or(c.Registers[rs], imm)
	case isa.XOR:
		c.Registers[rd], c.Flags = alu.Xor(c.Registers[rs], c.Registers[rt])
	case isa.NOT:
		c.Registers[rd], c.Flags = alu.Not(c.Registers[rs])

	case isa.SHL:
		c.Registers[rd], c.Flags = alu.Shl(c.Registers[rs], c.Registers[rt])
	case isa.SHLI:
		c.Registers[rd], c.Flags = alu.Shl(c.Registers[rs], isa.ZeroExtend(isa.GetImm4(instr), 4))
	case isa.SHR:
		c.Registers[rd], c.Flags = alu.Shr(c.Registers[rs], c.Registers[rt])
	case isa.SHRI:
		c.Registers[rd], c.Flags = alu.Shr(c.Registers[rs], isa.ZeroExtend(isa.GetImm4(instr), 4))

	case isa.CMP:
		_, c.Flags = alu.Compare(c.Registers[rs], c.Registers[rt])
	case isa.CMPI:
		imm := isa.SignExtend(isa.GetImm4(instr), 4)
		_, c.Flags = alu.Compare(c.Registers[rs], imm)

	case isa.JMP:
		c.PC = c.readWord(c.PC)

	case isa.JZ:
		c.branch(c.Flags&isa.FlagZero != 0)
	case isa.JNZ:
		c.branch(c.Flags&isa.FlagZero == 0)
	case isa.JC:
		c.branch(c.Flags&isa.FlagCarry != 0)
	case isa.JNC:
		c.branch(c.Flags&isa.FlagCarry == 0)
	case isa.JN:
		c.branch(c.Flags&isa.FlagNegative != 0)

	case isa.CALL:
		addr := c.readWord(c.PC)
		c.PC += 2
		c.push(c.PC)
		c.PC = addr

	case isa.RET:
		c.PC = c.pop()

	case isa.PUSH:
		c.push(c.Registers[rs])
	case isa.POP:
		c.Registers[rd] = c.pop()

	case isa.HALT:
		c.Halted = true

	default:
		c.fail("unknown opcode: 0x%02X", uint8(op))
	}
}

// branch reads the two-word operand, advances PC past it, then assigns PC
// to the operand address only if take is true — shared by every
// conditional jump (JZ/JNZ/JC/JNC/JN).
func (c *CPU) branch(take bool) {
	addr := c.readWord(c.PC)
	c.PC += 2
	if take {
		c.PC = addr
	}
}
