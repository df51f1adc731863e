// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table formats data into a text-based table for human consumption.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ebay/akgraph/util/cmp"
	"golang.org/x/text/unicode/norm"
)

// Options represents different ways to control how the table is generated.
type Options int

const (
	// HeaderRow formats the first row in the table as a header (there is a
	// separator between it and the next row).
	HeaderRow Options = 1 << iota
	// FooterRow formats the last row of the table as a footer (there is a
	// separator between it and the previous row).
	FooterRow
	// SkipEmpty causes nothing to be generated when the table has no rows
	// besides the header and footer rows.
	SkipEmpty
	// RightJustify right justifies (left pads) cells, rather than the default
	// of left justifying them.
	RightJustify
)

func (o Options) has(flag Options) bool {
	return o&flag != 0
}

func (o Options) chromeRows() int {
	r := 0
	if o.has(HeaderRow) {
		r++
	}
	if o.has(FooterRow) {
		r++
	}
	return r
}

// PrettyPrint writes 't' as a formatted table to dest.
//
// Cells may span multiple lines, using \n as a line break. Rows shorter than
// the first row are padded with empty cells.
func PrettyPrint(dest io.Writer, t [][]string, opts Options) {
	if len(t) == 0 || (opts.has(SkipEmpty) && len(t) <= opts.chromeRows()) {
		return
	}
	numCols := len(t[0])
	cells := make([][][]string, len(t))
	widths := make([]int, numCols)
	heights := make([]int, len(t))
	for r, row := range t {
		cells[r] = make([][]string, numCols)
		heights[r] = 1
		for c := 0; c < numCols; c++ {
			text := ""
			if c < len(row) {
				text = row[c]
			}
			lines := strings.Split(text, "\n")
			cells[r][c] = lines
			heights[r] = cmp.MaxInt(heights[r], len(lines))
			for _, l := range lines {
				widths[c] = cmp.MaxInt(widths[c], charsWide(l))
			}
		}
	}

	w := bufio.NewWriterSize(dest, 256)
	defer w.Flush()
	divider := func() {
		for _, width := range widths {
			w.WriteByte(' ')
			w.WriteString(strings.Repeat("-", width))
			w.WriteString(" |")
		}
		w.WriteByte('\n')
	}
	for r := range cells {
		for line := 0; line < heights[r]; line++ {
			for c, lines := range cells[r] {
				text := ""
				if line < len(lines) {
					text = lines[line]
				}
				pad := strings.Repeat(" ", widths[c]-charsWide(text))
				w.WriteByte(' ')
				if opts.has(RightJustify) {
					w.WriteString(pad)
					w.WriteString(text)
				} else {
					w.WriteString(text)
					w.WriteString(pad)
				}
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
		if (opts.has(HeaderRow) && r == 0) || (opts.has(FooterRow) && r == len(cells)-2) {
			divider()
		}
	}
}

// charsWide estimates how wide a string will be on a typical terminal. Strings
// are NFC normalized first so that combining characters aren't counted.
func charsWide(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}
