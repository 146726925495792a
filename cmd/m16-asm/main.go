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

// Command m16-asm is the two-pass assembler CLI described in spec.md §6:
// `m16-asm <input.asm> <output.bin>`, exit 0 on success, exit 1 on any
// failure with diagnostics on standard error.
package main

import (
	"bufio"
	"encoding/gob"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rgiles/m16/pkg/assembler"
)

var helpvar bool
var debugvar bool
var outvar string

const usage = "m16-asm [-debug] [-o outfile] <input.asm> [output.bin]"

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&helpvar, "h", false, "Displays command usage")
	flag.BoolVar(
		&debugvar, "debug", false,
		"Specifies whether to generate debugging information as a symbol "+
			"table. The table will use the output filename with extension "+
			"'.m16db'",
	)
	flag.StringVar(
		&outvar, "o", "",
		"Specifies a precise name for the output file, "+
			"overriding the default means of determining it",
	)
	flag.Parse()
}

func assemble() int {
	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	args := flag.Args()

	var infile string
	var input io.ReadSeeker

	if stat, _ := os.Stdin.Stat(); stat.Mode()&os.ModeCharDevice == 0 && len(args) == 0 {
		input = os.Stdin
		log.SetPrefix("\033[1m<stdin>:\033[0m ")

		if outvar == "" {
			outvar = "out.bin"
		}
	} else {
		if len(args) < 1 || len(args) > 2 {
			log.Println(usage)
			return 1
		}

		file, err := os.Open(args[0])
		if err != nil {
			log.Println(err)
			return 1
		}
		defer file.Close()

		filename := filepath.Base(file.Name())

		if stat, err := file.Stat(); err != nil {
			log.Println(err)
			return 1
		} else if stat.IsDir() {
			log.Printf("%s is not a valid m16 assembly file", filename)
			return 1
		}

		input = file
		infile = file.Name()
		log.SetPrefix(fmt.Sprintf("\033[1m%s:\033[0m ", filename))

		if len(args) == 2 {
			outvar = args[1]
		} else if outvar == "" {
			outvar = strings.ReplaceAll(filename, filepath.Ext(filename), ".bin")
		}
	}

	var symtable assembler.SymTable
	var symtarget *assembler.SymTable

	if debugvar {
		if input != os.Stdin {
			var err error
			if symtable.Source, err = filepath.Abs(infile); err != nil {
				log.Println(err)
				symtable.Source = ""
			}
		}
		symtable.Symbols = make(map[uint16]int64)
		symtable.Labels = make(map[uint16]string)
		symtarget = &symtable
	}

	image, errs := assembler.Assemble(input, symtarget)

	if len(errs) > 0 {
		if input == os.Stdin {
			for _, err := range errs {
				log.Println(err)
			}
		} else {
			for _, err := range errs {
				printDiagnostic(input, err)
			}
		}

		return 1
	}

	if err := os.WriteFile(outvar, image, 0666); err != nil {
		log.Println("Error writing output file")
		log.Println(err)
		return 1
	}

	if debugvar {
		dbname := strings.ReplaceAll(
			filepath.Base(outvar), filepath.Ext(outvar), ".m16db",
		)
		dbpath := filepath.Join(filepath.Dir(outvar), dbname)

		file, err := os.OpenFile(dbpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			log.Println("Error creating symbol table")
			log.Println(err)
			return 1
		}
		defer file.Close()

		if err := gob.NewEncoder(file).Encode(symtable); err != nil {
			log.Println("Error writing symbol table")
			log.Println(err)
			return 1
		}
	}

	return 0
}

// printDiagnostic prints err with the offending source line and a ^~~~
// underline built from its Cursor, when err carries one.
func printDiagnostic(input io.ReadSeeker, err error) {
	tokenErr, ok := err.(assembler.TokenError)
	if !ok {
		log.Println(err)
		return
	}

	cursor := tokenErr.GetPosition()

	if _, seekErr := input.Seek(cursor.LineByte, os.SEEK_SET); seekErr != nil {
		log.Println(err)
		return
	}

	line, _ := bufio.NewReader(input).ReadString('\n')
	line = strings.TrimRight(line, "\n")

	underlinefmt := fmt.Sprintf(
		"%% %ds%s",
		int(cursor.Byte-cursor.LineByte)+1,
		strings.Repeat("~", max(int(cursor.Size)-1, 0)),
	)

	log.Printf(
		"%s\n%s\n\033[31m%s\033[0m",
		err, line, fmt.Sprintf(underlinefmt, "^"),
	)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func main() {
	os.Exit(assemble())
}
