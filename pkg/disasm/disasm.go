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

// Package disasm is the "disassembly pretty-printing" external collaborator
// named in spec.md §1: it renders decoded instructions and raw memory for
// humans, and has no say over how the CPU executes anything.
package disasm

import (
	"fmt"
	"io"

	"github.com/rgiles/m16/pkg/isa"
)

// Instruction renders one instruction word as "MNEMONIC operands". If the
// opcode extends (spec.md §6), operand is the second word already read by
// the caller — disasm never reads memory itself, so describing an
// instruction has no side effect on the stream it describes.
func Instruction(instr uint16, operand uint16) string {
	op := isa.GetOpcode(instr)
	rd := isa.GetRd(instr)
	rs := isa.GetRs(instr)
	rt := isa.GetRt(instr)

	info, ok := isa.Lookup(op)
	if !ok {
		return fmt.Sprintf("??? (0x%04X)", instr)
	}

	switch op {
	case isa.NOP:
		if rd != rs {
			return fmt.Sprintf("NOP R%d, R%d", rd, rs)
		}
		return "NOP"

	case isa.MOVI:
		return fmt.Sprintf("MOVI R%d, %d", rd, int16(isa.SignExtend(isa.GetImm7(instr), 7)))

	case isa.LOAD_IND:
		return fmt.Sprintf("LOAD_IND R%d, [R%d]", rd, rs)

	case isa.LOAD_DIR:
		return fmt.Sprintf("LOAD_DIR R%d, 0x%04X", rd, operand)

	case isa.STORE_IND:
		return fmt.Sprintf("STORE_IND [R%d], R%d", rd, rs)

	case isa.STORE_DIR:
		return fmt.Sprintf("STORE_DIR 0x%04X, R%d", operand, rs)

	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.AND, isa.OR, isa.XOR, isa.SHL, isa.SHR:
		return fmt.Sprintf("%s R%d, R%d, R%d", info.Mnemonic, rd, rs, rt)

	case isa.ADDI, isa.SUBI:
		return fmt.Sprintf("%s R%d, R%d, %d", info.Mnemonic, rd, rs, int16(isa.SignExtend(isa.GetImm4(instr), 4)))

	case isa.ANDI, isa.ORI, isa.SHLI, isa.SHRI:
		return fmt.Sprintf("%s R%d, R%d, %d", info.Mnemonic, rd, rs, isa.ZeroExtend(isa.GetImm4(instr), 4))

	case isa.NOT:
		return fmt.Sprintf("NOT R%d, R%d", rd, rs)

	case isa.INC, isa.DEC, isa.PUSH, isa.POP:
		reg := rd
		if op == isa.PUSH {
			reg = rs
		}
		return fmt.Sprintf("%s R%d", info.Mnemonic, reg)

	case isa.CMP:
		return fmt.Sprintf("CMP R%d, R%d", rs, rt)

	case isa.CMPI:
		return fmt.Sprintf("CMPI R%d, %d", rs, int16(isa.SignExtend(isa.GetImm4(instr), 4)))

	case isa.JMP, isa.JZ, isa.JNZ, isa.JC, isa.JNC, isa.JN, isa.CALL:
		return fmt.Sprintf("%s 0x%04X", info.Mnemonic, operand)

	case isa.RET, isa.HALT:
		return info.Mnemonic

	default:
		return fmt.Sprintf("%s R%d, R%d, R%d", info.Mnemonic, rd, rs, rt)
	}
}

// DumpMemory writes 16-byte rows of hex with an ASCII gutter, in the shape
// of original_source's Memory::dump.
func DumpMemory(w io.Writer, mem []byte, start, end uint32) {
	for addr := start; addr <= end; addr += 16 {
		fmt.Fprintf(w, "0x%04X: ", addr)

		rowEnd := addr + 16
		if rowEnd > end+1 {
			rowEnd = end + 1
		}

		for i := addr; i < rowEnd; i++ {
			fmt.Fprintf(w, "%02X ", mem[i])
		}
		for i := rowEnd; i < addr+16; i++ {
			fmt.Fprint(w, "   ")
		}

		fmt.Fprint(w, " | ")
		for i := addr; i < rowEnd; i++ {
			b := mem[i]
			if b >= 32 && b < 127 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)

		if rowEnd == end+1 {
			break
		}
	}
}
