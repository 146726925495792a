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

// Package assembler translates m16 assembly source into the flat byte
// image described in spec.md §4.4, in two genuine passes: Pass 1 tokenizes
// every line, assigns byte addresses, and populates the label table
// without emitting anything; Pass 2 walks the same per-line plan again and
// writes bytes directly at the addresses Pass 1 already computed, so
// forward and backward label references resolve identically.
package assembler

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rgiles/m16/pkg/encoding"
	"github.com/rgiles/m16/pkg/isa"
)

type taggedLine struct {
	LineNo int
	Tokens []Token
}

// linePlan is Pass 1's output for one line that actually emits bytes: a
// directive or an instruction. Label-only lines and .org lines never reach
// here — they only affect the cursor and the label table.
type linePlan struct {
	LineNo   int
	Addr     uint16
	Keyword  Token
	Operands []Token
}

// Assemble reads m16 assembly source and returns the encoded byte image.
// If sym is non-nil it is populated with a debug-only map of instruction
// addresses to source byte offsets and label addresses to names.
func Assemble(source io.Reader, sym *SymTable) (image []byte, errs []error) {
	var lines []taggedLine

	scanner := bufio.NewScanner(source)
	lineNo := 0
	var lineByte int64
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		text := stripComment(raw)
		if strings.TrimSpace(text) != "" {
			tokens, lexErrs := tokenizeLine(text, lineNo, lineByte)
			errs = append(errs, lexErrs...)

			if len(tokens) > 0 {
				lines = append(lines, taggedLine{LineNo: lineNo, Tokens: tokens})
			}
		}

		lineByte += int64(len(raw)) + 1
	}

	labels := make(map[string]uint16)
	var plan []linePlan
	var cursor uint32

	for _, line := range lines {
		toks := line.Tokens
		idx := 0

		if toks[0].Type == TOKEN_LABEL {
			if _, exists := labels[toks[0].Value]; exists {
				errs = append(errs, &RedeclaredLabelError{toks[0].Position, toks[0].Value})
			} else {
				labels[toks[0].Value] = uint16(cursor)
			}
			idx = 1
		}

		if idx >= len(toks) {
			continue
		}

		keyword := toks[idx]
		operands := toks[idx+1:]

		var size uint32

		switch keyword.Type {
		case TOKEN_DIRECTIVE:
			switch keyword.Value {
			case ".org":
				if len(operands) != 1 {
					errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 1, len(operands)})
					continue
				}
				addr, err := resolveLiteral(operands[0], 0, 0xFFFF)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				cursor = uint32(addr)
				continue
			case ".word":
				size = 2
			case ".byte":
				size = 1
			case ".ascii":
				if len(operands) == 1 && operands[0].Type == TOKEN_STRING {
					s, err := strconv.Unquote(operands[0].Value)
					if err != nil {
						errs = append(errs, &InvalidStringError{operands[0].Position})
						continue
					}
					size = uint32(len(s))
				} else {
					errs = append(errs, &InvalidOperandError{
						keyword.Position, []TokenType{TOKEN_STRING}, TOKEN_NONE,
					})
					continue
				}
			default:
				errs = append(errs, &UnknownIdentifierError{keyword.Position, keyword.Value})
				continue
			}

		case TOKEN_IDENT:
			op, ok := isa.Find(keyword.Value)
			if !ok {
				errs = append(errs, &UnknownIdentifierError{keyword.Position, keyword.Value})
				continue
			}
			size = uint32(isa.Size(op))

		default:
			errs = append(errs, &UnknownIdentifierError{keyword.Position, keyword.Value})
			continue
		}

		if cursor+size > 1<<16 {
			errs = append(errs, &OversizedBinaryError{})
			return nil, errs
		}

		if sym != nil {
			sym.Symbols[uint16(cursor)] = keyword.Position.LineByte
		}

		plan = append(plan, linePlan{LineNo: line.LineNo, Addr: uint16(cursor), Keyword: keyword, Operands: operands})
		cursor += size
	}

	if sym != nil {
		for name, addr := range labels {
			sym.Labels[addr] = name
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	image = make([]byte, cursor)

	for _, p := range plan {
		writeErrs := encodeLine(image, p, labels)
		errs = append(errs, writeErrs...)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return image, nil
}

func encodeLine(image []byte, p linePlan, labels map[string]uint16) []error {
	if p.Keyword.Type == TOKEN_DIRECTIVE {
		return encodeDirective(image, p, labels)
	}
	return encodeInstruction(image, p, labels)
}

func encodeDirective(image []byte, p linePlan, labels map[string]uint16) []error {
	switch p.Keyword.Value {
	case ".word":
		if len(p.Operands) != 1 {
			return []error{&InvalidNumArgumentsError{p.Keyword.Position, 1, len(p.Operands)}}
		}
		value, err := resolveWord(p.Operands[0], labels)
		if err != nil {
			return []error{err}
		}
		putWord(image, p.Addr, value)

	case ".byte":
		if len(p.Operands) != 1 {
			return []error{&InvalidNumArgumentsError{p.Keyword.Position, 1, len(p.Operands)}}
		}
		value, err := resolveLiteral(p.Operands[0], -128, 255)
		if err != nil {
			return []error{err}
		}
		image[p.Addr] = byte(value)

	case ".ascii":
		s, err := strconv.Unquote(p.Operands[0].Value)
		if err != nil {
			return []error{&InvalidStringError{p.Operands[0].Position}}
		}
		copy(image[p.Addr:], s)
	}

	return nil
}

func putWord(image []byte, addr uint16, value uint16) {
	image[addr] = byte(value & 0xFF)
	image[addr+1] = byte(value >> 8)
}

// decodeLiteralValue parses a literal token's raw numeric value, without
// any range checking against a target field width.
func decodeLiteralValue(tok Token) (int64, error) {
	v := tok.Value

	switch {
	case strings.HasPrefix(v, "'"):
		c, err := encoding.DecodeChar(v)
		if err != nil {
			return 0, &InvalidLiteralError{tok.Position, v}
		}
		return int64(c), nil

	case strings.ContainsAny(v, "xX"):
		h, err := encoding.DecodeHex(v)
		if err != nil {
			return 0, &InvalidLiteralError{tok.Position, v}
		}
		return int64(h), nil

	default:
		i, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, &InvalidLiteralError{tok.Position, v}
		}
		return i, nil
	}
}

// resolveLiteral decodes a numeric literal token and range-checks it
// against [min, max] inclusive.
func resolveLiteral(tok Token, min, max int64) (int64, error) {
	if tok.Type != TOKEN_LITERAL {
		return 0, &InvalidOperandError{tok.Position, []TokenType{TOKEN_LITERAL}, tok.Type}
	}

	value, err := decodeLiteralValue(tok)
	if err != nil {
		return 0, err
	}

	if value < min || value > max {
		return 0, &OversizedLiteralError{tok.Position, min, max, value}
	}

	return value, nil
}

// resolveWord resolves a .word operand, which may be a label or a literal
// spanning the full signed/unsigned 16-bit range.
func resolveWord(tok Token, labels map[string]uint16) (uint16, error) {
	if tok.Type == TOKEN_IDENT {
		addr, ok := labels[tok.Value]
		if !ok {
			return 0, &UnknownLabelError{tok.Position, tok.Value}
		}
		return addr, nil
	}

	value, err := resolveLiteral(tok, -32768, 65535)
	if err != nil {
		return 0, err
	}
	return uint16(value), nil
}

// resolveAddress resolves a two-word instruction's absolute-address
// operand, which may be a label or a literal in [0, 0xFFFF].
func resolveAddress(tok Token, labels map[string]uint16) (uint16, error) {
	if tok.Type == TOKEN_IDENT {
		addr, ok := labels[tok.Value]
		if !ok {
			return 0, &UnknownLabelError{tok.Position, tok.Value}
		}
		return addr, nil
	}

	value, err := resolveLiteral(tok, 0, 0xFFFF)
	if err != nil {
		return 0, err
	}
	return uint16(value), nil
}

// parseImmediate decodes an operand token as an immediate that must fit in
// bits bits, sign-extended (signed) or zero-extended (unsigned) per
// spec.md §3. The returned value is the raw field pattern, ready to OR
// into an instruction word.
func parseImmediate(tok Token, bits uint, signed bool) (uint16, error) {
	var min, max int64
	if signed {
		min = -(int64(1) << (bits - 1))
		max = (int64(1) << (bits - 1)) - 1
	} else {
		min = 0
		max = (int64(1) << bits) - 1
	}

	value, err := resolveLiteral(tok, min, max)
	if err != nil {
		return 0, err
	}

	return uint16(value) & (uint16(1)<<bits - 1), nil
}

func parseRegister(tok Token) (uint16, error) {
	if tok.Type != TOKEN_IDENT {
		return 0, &InvalidOperandError{tok.Position, []TokenType{TOKEN_IDENT}, tok.Type}
	}

	v := tok.Value
	if len(v) == 2 && (v[0] == 'R' || v[0] == 'r') && v[1] >= '0' && v[1] <= '7' {
		return uint16(v[1] - '0'), nil
	}

	return 0, &InvalidRegisterError{tok.Position, v}
}

func checkArgCount(keyword Token, operands []Token, want int) error {
	if len(operands) != want {
		return &InvalidNumArgumentsError{keyword.Position, want, len(operands)}
	}
	return nil
}

func encodeInstruction(image []byte, p linePlan, labels map[string]uint16) []error {
	op, _ := isa.Find(p.Keyword.Value)
	operands := p.Operands

	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	reg := func(i int) uint16 {
		r, err := parseRegister(operands[i])
		if err != nil {
			fail(err)
		}
		return r
	}

	imm := func(i int, bits uint, signed bool) uint16 {
		v, err := parseImmediate(operands[i], bits, signed)
		if err != nil {
			fail(err)
		}
		return v
	}

	addr := func(i int) uint16 {
		v, err := resolveAddress(operands[i], labels)
		if err != nil {
			fail(err)
		}
		return v
	}

	var instr uint16
	var second uint16
	var hasSecond bool

	switch op {
	case isa.NOP:
		if len(operands) == 0 {
			instr = isa.Encode(op, 0, 0, 0)
		} else if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), 0)
		}

	case isa.MOVI:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.EncodeImm7(op, reg(0), imm(1, 7, true))
		}

	case isa.LOAD_IND, isa.NOT:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), 0)
		}

	case isa.STORE_IND:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), 0)
		}

	case isa.LOAD_DIR:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			rd := reg(0)
			target := addr(1)
			instr = isa.Encode(op, rd, 0, 0)
			second, hasSecond = target, true
		}

	case isa.STORE_DIR:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			target := addr(0)
			rs := reg(1)
			instr = isa.Encode(op, 0, rs, 0)
			second, hasSecond = target, true
		}

	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.AND, isa.OR, isa.XOR, isa.SHL, isa.SHR:
		if err := checkArgCount(p.Keyword, operands, 3); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), reg(2))
		}

	case isa.ADDI, isa.SUBI:
		if err := checkArgCount(p.Keyword, operands, 3); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), imm(2, 4, true))
		}

	case isa.ANDI, isa.ORI, isa.SHLI, isa.SHRI:
		if err := checkArgCount(p.Keyword, operands, 3); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), reg(1), imm(2, 4, false))
		}

	case isa.INC, isa.DEC, isa.POP:
		if err := checkArgCount(p.Keyword, operands, 1); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, reg(0), 0, 0)
		}

	case isa.PUSH:
		if err := checkArgCount(p.Keyword, operands, 1); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, 0, reg(0), 0)
		}

	case isa.CMP:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, 0, reg(0), reg(1))
		}

	case isa.CMPI:
		if err := checkArgCount(p.Keyword, operands, 2); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, 0, reg(0), imm(1, 4, true))
		}

	case isa.JMP, isa.JZ, isa.JNZ, isa.JC, isa.JNC, isa.JN, isa.CALL:
		if err := checkArgCount(p.Keyword, operands, 1); err != nil {
			fail(err)
		} else {
			target := addr(0)
			instr = isa.Encode(op, 0, 0, 0)
			second, hasSecond = target, true
		}

	case isa.RET, isa.HALT:
		if err := checkArgCount(p.Keyword, operands, 0); err != nil {
			fail(err)
		} else {
			instr = isa.Encode(op, 0, 0, 0)
		}

	default:
		fail(&UnknownIdentifierError{p.Keyword.Position, p.Keyword.Value})
	}

	if len(errs) > 0 {
		return errs
	}

	putWord(image, p.Addr, instr)
	if hasSecond {
		putWord(image, p.Addr+2, second)
	}

	return nil
}
