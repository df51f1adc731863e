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

package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PrettyPrint_utf8(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{
		{"Beyoncé"},
		{"shrt"},
	}, RightJustify)
	assert.Equal(t, `
 Beyoncé |
    shrt |
`, "\n"+buf.String())
}

func Test_PrettyPrint_justify(t *testing.T) {
	table := [][]string{
		{"name", "age"},
		{"alice", "31"},
	}
	t.Run("Left", func(t *testing.T) {
		var buf strings.Builder
		PrettyPrint(&buf, table, HeaderRow)
		assert.Equal(t, `
 name  | age |
 ----- | --- |
 alice | 31  |
`, "\n"+buf.String())
	})
	t.Run("Right", func(t *testing.T) {
		var buf strings.Builder
		PrettyPrint(&buf, table, HeaderRow|RightJustify)
		assert.Equal(t, `
  name | age |
 ----- | --- |
 alice |  31 |
`, "\n"+buf.String())
	})
}

func Test_PrettyPrint_footer(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{
		{"n", "x"},
		{"1", "a"},
		{"rows", "1"},
	}, HeaderRow|FooterRow)
	assert.Equal(t, `
 n    | x |
 ---- | - |
 1    | a |
 ---- | - |
 rows | 1 |
`, "\n"+buf.String())
}

func Test_PrettyPrint_skipEmpty(t *testing.T) {
	headers := [][]string{{"a", "b"}}
	var buf strings.Builder
	PrettyPrint(&buf, headers, SkipEmpty|HeaderRow)
	assert.Equal(t, "", buf.String())
	PrettyPrint(&buf, headers, SkipEmpty)
	assert.Equal(t, " a | b |\n", buf.String())
}

func Test_PrettyPrint_multiline(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{
		{"op", "rows"},
		{"Scan\nPerson", "4"},
		{"short"},
	}, HeaderRow)
	assert.Equal(t, `
 op     | rows |
 ------ | ---- |
 Scan   | 4    |
 Person |      |
 short  |      |
`, "\n"+buf.String())
}

func Test_charsWide(t *testing.T) {
	tests := []struct {
		s string
		w int
	}{
		{"Aeyonce", 7},
		{"Beyoncé", 7},
		{"Ceyonce\u0301", 7},
	}
	for _, test := range tests {
		assert.Equal(t, test.w, charsWide(test.s), "width of %#v", test.s)
	}
}
