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

package encoding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rgiles/m16/pkg/encoding"
)

func TestDecodeHexWithLeadingZero(t *testing.T) {
	got, err := encoding.DecodeHex("0xFF")
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xFF), got)
}

func TestDecodeHexWithoutLeadingZero(t *testing.T) {
	got, err := encoding.DecodeHex("xBEEF")
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), got)
}

func TestDecodeHexUppercaseMarker(t *testing.T) {
	got, err := encoding.DecodeHex("0XAB")
	assert.NoError(t, err)
	assert.Equal(t, uint16(0xAB), got)
}

func TestDecodeHexRejectsMissingMarker(t *testing.T) {
	_, err := encoding.DecodeHex("FF")
	assert.Error(t, err)
}

func TestDecodeHexRejectsGarbage(t *testing.T) {
	_, err := encoding.DecodeHex("0xZZ")
	assert.Error(t, err)
}

func TestDecodeIntPositiveAndNegative(t *testing.T) {
	got, err := encoding.DecodeInt("42")
	assert.NoError(t, err)
	assert.Equal(t, int16(42), got)

	got, err = encoding.DecodeInt("-7")
	assert.NoError(t, err)
	assert.Equal(t, int16(-7), got)
}

func TestDecodeIntRejectsTrailingLetters(t *testing.T) {
	_, err := encoding.DecodeInt("12abc")
	assert.Error(t, err)
}

func TestDecodeIntRejectsOutOfRange(t *testing.T) {
	_, err := encoding.DecodeInt("99999")
	assert.Error(t, err)
}

func TestDecodeCharPlainLetter(t *testing.T) {
	got, err := encoding.DecodeChar("'A'")
	assert.NoError(t, err)
	assert.Equal(t, uint16('A'), got)
}

func TestDecodeCharEscapeSequence(t *testing.T) {
	got, err := encoding.DecodeChar(`'\n'`)
	assert.NoError(t, err)
	assert.Equal(t, uint16('\n'), got)
}

func TestDecodeCharRejectsEmpty(t *testing.T) {
	_, err := encoding.DecodeChar("''")
	assert.Error(t, err)
}

func TestDecodeCharRejectsMultipleCharacters(t *testing.T) {
	_, err := encoding.DecodeChar("'AB'")
	assert.Error(t, err)
}
