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

// Package alu implements the m16 arithmetic/logic core as a bank of pure
// functions: each takes its operands and returns a (result, flags) pair
// instead of mutating a flags register by reference. This removes the
// aliasing the original C++ ALU relies on and lets the cpu package simply
// replace its Flags field with whatever comes back.
package alu

import "github.com/rgiles/m16/pkg/isa"

func zeroNegative(result uint16) uint16 {
	var flags uint16
	if result == 0 {
		flags |= isa.FlagZero
	}
	if result&0x8000 != 0 {
		flags |= isa.FlagNegative
	}
	return flags
}

// Add computes (a+b) mod 2^16. Carry is set iff the 17-bit unsigned sum
// exceeds 0xFFFF; Overflow is set iff a and b share a sign bit and the
// result's sign bit differs from theirs.
func Add(a, b uint16) (result uint16, flags uint16) {
	sum := uint32(a) + uint32(b)
	result = uint16(sum)
	flags = zeroNegative(result)

	if sum > 0xFFFF {
		flags |= isa.FlagCarry
	}

	aNeg := a&0x8000 != 0
	bNeg := b&0x8000 != 0
	rNeg := result&0x8000 != 0

	if aNeg == bNeg && aNeg != rNeg {
		flags |= isa.FlagOverflow
	}

	return result, flags
}

// Sub computes (a-b) mod 2^16. Carry (borrow) is set iff a < b unsigned;
// Overflow is set iff a and b differ in sign bit and the result's sign bit
// differs from a's.
func Sub(a, b uint16) (result uint16, flags uint16) {
	result = a - b
	flags = zeroNegative(result)

	if a < b {
		flags |= isa.FlagCarry
	}

	aNeg := a&0x8000 != 0
	bNeg := b&0x8000 != 0
	rNeg := result&0x8000 != 0

	if aNeg != bNeg && aNeg != rNeg {
		flags |= isa.FlagOverflow
	}

	return result, flags
}

// Mul returns the low 16 bits of the unsigned product. Carry is set iff the
// full product exceeds 0xFFFF; Overflow is unused.
func Mul(a, b uint16) (result uint16, flags uint16) {
	product := uint32(a) * uint32(b)
	result = uint16(product)
	flags = zeroNegative(result)

	if product > 0xFFFF {
		flags |= isa.FlagCarry
	}

	return result, flags
}

// Div returns the unsigned integer quotient. Division by zero sets
// Overflow and returns 0xFFFF; it does not panic.
func Div(a, b uint16) (result uint16, flags uint16) {
	if b == 0 {
		return 0xFFFF, isa.FlagOverflow
	}

	result = a / b
	flags = zeroNegative(result)
	return result, flags
}

// And, Or, Xor are bitwise; Carry and Overflow are always cleared.
func And(a, b uint16) (uint16, uint16) {
	result := a & b
	return result, zeroNegative(result)
}

func Or(a, b uint16) (uint16, uint16) {
	result := a | b
	return result, zeroNegative(result)
}

func Xor(a, b uint16) (uint16, uint16) {
	result := a ^ b
	return result, zeroNegative(result)
}

// Not is the bitwise complement of a single operand.
func Not(a uint16) (uint16, uint16) {
	result := ^a
	return result, zeroNegative(result)
}

// Shl is a logical left shift. For n >= 16 the result is 0 and Carry
// reflects bit 0 of the original when n == 16; for 0 < n < 16, Carry
// receives bit (16-n) of the original — the last bit shifted out.
func Shl(a, n uint16) (result uint16, flags uint16) {
	if n >= 16 {
		if n == 16 && a&0x0001 != 0 {
			flags |= isa.FlagCarry
		}
		return 0, flags | zeroNegative(0)
	}

	if n > 0 && a&(1<<(16-n)) != 0 {
		flags |= isa.FlagCarry
	}

	result = a << n
	flags |= zeroNegative(result)
	return result, flags
}

// Shr is a logical right shift, symmetric with Shl: Carry receives bit
// (n-1) of the original for 1 <= n <= 16.
func Shr(a, n uint16) (result uint16, flags uint16) {
	if n >= 16 {
		if n == 16 && a&0x8000 != 0 {
			flags |= isa.FlagCarry
		}
		return 0, flags | zeroNegative(0)
	}

	if n > 0 && a&(1<<(n-1)) != 0 {
		flags |= isa.FlagCarry
	}

	result = a >> n
	flags |= zeroNegative(result)
	return result, flags
}

// Compare performs a subtraction for flag effect only; the numeric result
// is not meaningful and callers should ignore it.
func Compare(a, b uint16) (result uint16, flags uint16) {
	_, flags = Sub(a, b)
	return 0, flags
}
