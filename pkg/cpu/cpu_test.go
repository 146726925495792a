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

package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgiles/m16/pkg/cpu"
	"github.com/rgiles/m16/pkg/isa"
	"github.com/rgiles/m16/pkg/memory"
)

func newCPU() (*cpu.CPU, *memory.Flat) {
	mem := memory.NewFlat()
	return cpu.New(mem), mem
}

func TestResetContract(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.HALT, 0, 0, 0))
	vm.Registers[3] = 0xBEEF
	vm.Run()

	vm.Reset()

	for _, r := range vm.Registers {
		assert.Zero(t, r)
	}
	assert.Equal(t, isa.ProgramStart, vm.PC)
	assert.Equal(t, isa.ResetSP, vm.SP)
	assert.Zero(t, vm.Flags)
	assert.False(t, vm.Halted)
	assert.Zero(t, vm.InstructionCount)
}

func TestResetIdempotence(t *testing.T) {
	vm, _ := newCPU()
	vm.Reset()
	first := *vm
	vm.Reset()
	assert.Equal(t, first, *vm)
}

func TestStepIsNoOpOnceHalted(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.HALT, 0, 0, 0))

	vm.Step()
	require.True(t, vm.Halted)
	count := vm.InstructionCount

	vm.Step()
	assert.Equal(t, count, vm.InstructionCount)
}

func TestNOPOverloadedAsRegisterMove(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.NOP, 1, 2, 0))
	vm.Registers[2] = 0x4242
	vm.Step()

	assert.Equal(t, uint16(0x4242), vm.Registers[1])

	vm.Reset()
	mem.WriteWord(0, isa.Encode(isa.NOP, 3, 3, 0))
	vm.Registers[3] = 0x1111
	vm.Step()
	assert.Equal(t, uint16(0x1111), vm.Registers[3], "NOP with Rd==Rs has no effect")
}

func TestMOVISignExtends(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.EncodeImm7(isa.MOVI, 0, 0x7F)) // -1 in 7 bits
	vm.Step()
	assert.Equal(t, uint16(0xFFFF), vm.Registers[0])
}

func TestPushPopRestoresSP(t *testing.T) {
	vm, _ := newCPU()
	sp := vm.SP

	vm.Registers[0] = 0x1234
	mem := vm.Memory

	// PUSH R0
	mem.WriteWord(0, isa.Encode(isa.PUSH, 0, 0, 0))
	// POP R1
	mem.WriteWord(2, isa.Encode(isa.POP, 1, 0, 0))
	// HALT
	mem.WriteWord(4, isa.Encode(isa.HALT, 0, 0, 0))

	vm.Run()

	assert.Equal(t, uint16(0x1234), vm.Registers[1])
	assert.Equal(t, sp, vm.SP)
}

func TestTwoWordJumpDoesNotDoubleAdvancePC(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.JMP, 0, 0, 0))
	mem.WriteWord(2, 0x0010)

	vm.Step()
	assert.Equal(t, uint16(0x0010), vm.PC)
}

func TestConditionalBranchAdvancesPastOperandWhenNotTaken(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.JZ, 0, 0, 0))
	mem.WriteWord(2, 0x0100)
	// Flags has Zero cleared, so JZ must not branch.
	vm.Flags = 0

	vm.Step()
	assert.Equal(t, uint16(4), vm.PC, "PC should land just past the two-word instruction")
}

func TestCallPushesPostOperandPC(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.CALL, 0, 0, 0))
	mem.WriteWord(2, 0x0100)

	vm.Step()
	assert.Equal(t, uint16(0x0100), vm.PC)
	assert.Equal(t, uint16(4), vm.Memory.ReadWord(vm.SP), "return address should be the instruction after the operand")
}

func TestCallThenRetReturnsToCaller(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.Encode(isa.CALL, 0, 0, 0))
	mem.WriteWord(2, 0x0010)
	mem.WriteWord(4, isa.Encode(isa.HALT, 0, 0, 0))
	mem.WriteWord(0x0010, isa.Encode(isa.RET, 0, 0, 0))

	vm.Run()
	assert.True(t, vm.Halted)
	assert.Equal(t, uint16(6), vm.PC)
}

func TestDivideByZeroSetsOverflowAndContinues(t *testing.T) {
	vm, mem := newCPU()
	vm.Registers[1] = 10
	vm.Registers[2] = 0

	mem.WriteWord(0, isa.Encode(isa.DIV, 0, 1, 2))
	mem.WriteWord(2, isa.Encode(isa.HALT, 0, 0, 0))

	vm.Run()

	assert.Equal(t, uint16(0xFFFF), vm.Registers[0])
	assert.NotZero(t, vm.Flags&isa.FlagOverflow)
	assert.True(t, vm.Halted)
}

func TestFlagCorners(t *testing.T) {
	vm, mem := newCPU()
	vm.Registers[1] = 0x7FFF
	vm.Registers[2] = 0x0001

	mem.WriteWord(0, isa.Encode(isa.ADD, 0, 1, 2))
	vm.Step()

	assert.Equal(t, uint16(0x8000), vm.Registers[0])
	assert.Equal(t, isa.FlagNegative|isa.FlagOverflow, vm.Flags)
}

func TestUnknownOpcodeHaltsAndReportsDiagnostic(t *testing.T) {
	vm, mem := newCPU()

	// 0x08 has no table entry (gap between POP=0x07 and HALT=0x09).
	mem.WriteWord(0, isa.Word(0x08)<<10)

	var diagnostic string
	vm.Diagnostic = func(msg string) { diagnostic = msg }

	vm.Step()

	assert.True(t, vm.Halted)
	assert.Contains(t, diagnostic, "0x08")
}

func TestRunStepsUntilHalted(t *testing.T) {
	vm, mem := newCPU()
	for i := 0; i < 5; i++ {
		mem.WriteWord(uint16(i*2), isa.Encode(isa.INC, 0, 0, 0))
	}
	mem.WriteWord(10, isa.Encode(isa.HALT, 0, 0, 0))

	vm.Run()

	assert.Equal(t, uint16(5), vm.Registers[0])
	assert.Equal(t, uint64(6), vm.InstructionCount)
}

// Factorial(5) computed by a loop inside a subroutine reached via CALL/RET,
// result left in R0.
func TestFactorialSubroutineViaCallRet(t *testing.T) {
	vm, mem := newCPU()

	// R0 = n (input/accumulator), R1 = scratch for multiply result.
	// main:
	//   MOVI R0, 5
	//   CALL fact
	//   HALT
	// fact:          ; computes R0 = R0!, iteratively (recursion modeled via
	//                ; CALL/RET into a loop body so the ISA's CALL/RET path
	//                ; is exercised exactly as the scenario requires)
	//   MOVI R1, 1   ; R1 = accumulator
	// loop:
	//   CMPI R0, 1
	//   JZ done
	//   MUL R1, R1, R0
	//   SUBI R0, R0, 1
	//   JMP loop
	// done:
	//   NOP R0, R1   ; R0 <- R1 (NOP's register-move form)
	//   RET

	const (
		mainStart = 0x0000
		factStart = 0x0010
	)

	mem.WriteWord(mainStart, isa.EncodeImm7(isa.MOVI, 0, 5))
	mem.WriteWord(mainStart+2, isa.Encode(isa.CALL, 0, 0, 0))
	mem.WriteWord(mainStart+4, factStart)
	mem.WriteWord(mainStart+6, isa.Encode(isa.HALT, 0, 0, 0))

	var loop uint16 = factStart + 2
	done := loop + 14 // CMPI(2) + JZ(4) + MUL(2) + SUBI(2) + JMP(4) bytes past loop

	mem.WriteWord(factStart, isa.EncodeImm7(isa.MOVI, 1, 1))
	mem.WriteWord(loop, isa.Encode(isa.CMPI, 0, 0, 1))
	mem.WriteWord(loop+2, isa.Encode(isa.JZ, 0, 0, 0))
	mem.WriteWord(loop+4, uint16(done))
	mem.WriteWord(loop+6, isa.Encode(isa.MUL, 1, 1, 0))
	mem.WriteWord(loop+8, isa.Encode(isa.SUBI, 0, 0, 1))
	mem.WriteWord(loop+10, isa.Encode(isa.JMP, 0, 0, 0))
	mem.WriteWord(loop+12, uint16(loop))

	mem.WriteWord(done, isa.Encode(isa.NOP, 0, 1, 0)) // R0 <- R1 (register move)
	mem.WriteWord(done+2, isa.Encode(isa.RET, 0, 0, 0))

	vm.Run()

	require.True(t, vm.Halted)
	assert.Equal(t, uint16(120), vm.Registers[0])
}

func TestConsoleHelloWritesExactBytesAndLeavesMemoryUntouched(t *testing.T) {
	var out captureWriter

	backing := memory.NewFlat()
	console := memory.NewConsole(backing, &out)
	vm := cpu.New(console)

	// A single STORE_IND re-executed once per character: Rd holds the
	// console address, Rs holds the character to write.
	vm.Memory.WriteWord(0, isa.Encode(isa.STORE_IND, 1, 0, 0))
	vm.Registers[1] = isa.ConsoleOut

	greeting := "Hello\n"
	for _, c := range []byte(greeting) {
		vm.Registers[0] = uint16(c)
		vm.PC = 0
		vm.Step()
	}

	assert.Equal(t, greeting, out.String())
	assert.Zero(t, backing.ReadByte(isa.ConsoleOut))
}

func TestTracerFiresOncePerInstructionWithPostExecutionState(t *testing.T) {
	vm, mem := newCPU()
	mem.WriteWord(0, isa.EncodeImm7(isa.MOVI, 0, 5)) // MOVI R0, 5
	mem.WriteWord(2, isa.Encode(isa.JZ, 0, 0, 0))
	mem.WriteWord(4, 0x1234) // JZ's absolute-address operand word
	mem.WriteWord(6, isa.Encode(isa.HALT, 0, 0, 0))

	type call struct {
		pc, instr, operand uint16
		registers          [8]uint16
		flags              uint16
	}
	var calls []call

	vm.Tracer = func(pc, instr, operand uint16, registers [8]uint16, flags uint16) {
		calls = append(calls, call{pc, instr, operand, registers, flags})
	}

	vm.Step() // MOVI R0, 5
	vm.Step() // JZ 0x1234 (not taken, Zero clear from the MOVI above)

	require.Len(t, calls, 2)

	assert.Equal(t, uint16(0), calls[0].pc)
	assert.Equal(t, uint16(5), calls[0].registers[0], "Tracer must see the post-execution register file")

	assert.Equal(t, uint16(2), calls[1].pc)
	assert.Equal(t, uint16(0x1234), calls[1].operand, "Tracer must see the two-word operand")
	assert.Zero(t, calls[1].flags&isa.FlagZero, "MOVI R0, 5 must not set Zero")
}

type captureWriter struct {
	data []byte
}

func (c *captureWriter) WriteByte(b byte) error {
	c.data = append(c.data, b)
	return nil
}

func (c *captureWriter) String() string {
	return string(c.data)
}
