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

package memory_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgiles/m16/pkg/memory"
)

func TestLittleEndianWordAccess(t *testing.T) {
	m := memory.NewFlat()
	m.WriteWord(0x1000, 0x1234)

	assert.Equal(t, byte(0x34), m.ReadByte(0x1000))
	assert.Equal(t, byte(0x12), m.ReadByte(0x1001))
	assert.Equal(t, uint16(0x1234), m.ReadWord(0x1000))
}

func TestLoadProgramRejectsOverflow(t *testing.T) {
	m := memory.NewFlat()
	program := make([]byte, 10)

	require.NoError(t, m.LoadProgram(program, 0xFFFE-8))
	require.Error(t, m.LoadProgram(program, 0xFFFF))
}

func TestLoadProgramCopiesContiguously(t *testing.T) {
	m := memory.NewFlat()
	require.NoError(t, m.LoadProgram([]byte{1, 2, 3, 4}, 0x10))

	assert.Equal(t, byte(1), m.ReadByte(0x10))
	assert.Equal(t, byte(4), m.ReadByte(0x13))
}

func TestClearZeroesEverything(t *testing.T) {
	m := memory.NewFlat()
	m.WriteWord(0x2000, 0xBEEF)
	m.Clear()

	assert.Zero(t, m.ReadWord(0x2000))
}

type byteBuf struct {
	bytes.Buffer
}

func (b *byteBuf) WriteByte(c byte) error {
	return b.Buffer.WriteByte(c)
}

func TestConsoleWriteInterceptsOnlyConsoleAddress(t *testing.T) {
	backing := memory.NewFlat()
	var sink byteBuf

	console := memory.NewConsole(backing, &sink)
	console.WriteByte(0xF000, 'H')
	console.WriteByte(0xF000, 'i')
	console.WriteByte(0x9000, 0x42)

	assert.Equal(t, "Hi", sink.String())
	assert.Equal(t, byte(0), backing.ReadByte(0xF000), "console address must not update backing memory")
	assert.Equal(t, byte(0x42), backing.ReadByte(0x9000), "non-console addresses pass through")
}

func TestConsoleWriteWordSplitsIntoTwoByteWrites(t *testing.T) {
	backing := memory.NewFlat()
	var sink byteBuf

	console := memory.NewConsole(backing, &sink)
	console.WriteWord(0x9000, 0x1234)

	assert.Equal(t, uint16(0x1234), backing.ReadWord(0x9000))
}
