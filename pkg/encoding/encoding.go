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

// Package encoding holds the small numeric-literal parsing helpers shared
// by the assembler and the debugger REPL: decimal, 0x-prefixed hex, and
// character literals.
package encoding

import (
	"errors"
	"strconv"
	"strings"
)

// DecodeHex decodes a hexadecimal string in the formats 0xFFFF, xFFFF.
func DecodeHex(s string) (uint16, error) {
	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i != 1 {
		return 0, errors.New("invalid hex literal")
	}

	result, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}

	return uint16(result), nil
}

// DecodeInt decodes a base-10 string, e.g. "42" or "-7".
func DecodeInt(s string) (int16, error) {
	result, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, err
	}

	return int16(result), nil
}

// DecodeChar decodes a single-quoted character literal such as 'A' or
// '\n' into its byte value.
func DecodeChar(s string) (uint16, error) {
	unquoted, err := strconv.Unquote(strings.Replace(s, "'", "\"", 2))
	if err != nil || len(unquoted) != 1 {
		return 0, errors.New("invalid character literal")
	}

	return uint16(unquoted[0]), nil
}
