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

// Package dataframe holds the columnar buffers that flow between pipeline
// processors. A Dataframe is an ordered list of named columns, each identified
// by a ColumnTag.
//
// Columns are treated as immutable once they have been written to a pipeline
// port: processors build new columns for each batch rather than modifying
// columns they've received. This lets a downstream dataframe keep referring to
// an upstream column after the upstream processor has moved on.
package dataframe

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the element type of a column.
type Kind uint8

// Kinds of columns.
const (
	KindUnknown Kind = iota
	KindUInt64
	KindInt64
	KindFloat64
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindUInt64:
		return "uint64"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Element is the set of Go types a column can hold.
type Element interface {
	uint64 | int64 | float64 | string | bool
}

// Column is a typed vector of values, with optional nulls.
type Column interface {
	// Kind returns the element type.
	Kind() Kind
	// Len returns the number of values.
	Len() int
	// IsConst returns true if the column is a single value that should be
	// broadcast against columns of any length.
	IsConst() bool
	// IsNull returns true if the value at index i is null.
	IsNull(i int) bool
	// ValueAt returns the value at index i, or nil if it's null.
	ValueAt(i int) interface{}
	// Gather returns a new column where row j is row indices[j] of this one.
	Gather(indices []int) Column
	// Filter returns a new column with only the rows where keep is true.
	Filter(keep []bool) Column
	// Repeat returns a new column where each row is repeated 'each' times in
	// place: [a b] -> [a a b b].
	Repeat(each int) Column
	// Tile returns a new column where the whole column is repeated 'times'
	// times: [a b] -> [a b a b].
	Tile(times int) Column
	// Empty returns a new zero-length column of the same kind.
	Empty() Column
}

// Vector is the Column implementation for every element type.
type Vector[T Element] struct {
	Values []T
	// If not nil, Nulls[i] is true when row i has no value. Must have the same
	// length as Values.
	Nulls []bool
	// If true, Values has a single element that's broadcast.
	Const bool
}

// The concrete column types.
type (
	UInt64s  = Vector[uint64]
	Int64s   = Vector[int64]
	Float64s = Vector[float64]
	Strings  = Vector[string]
	Bools    = Vector[bool]
)

// NewVector returns a column holding the given values.
func NewVector[T Element](values ...T) *Vector[T] {
	if values == nil {
		values = []T{}
	}
	return &Vector[T]{Values: values}
}

// NewConst returns a single-valued broadcast column.
func NewConst[T Element](value T) *Vector[T] {
	return &Vector[T]{Values: []T{value}, Const: true}
}

// NewNullable returns a column where the rows with valid[i] false are null.
func NewNullable[T Element](values []T, valid []bool) *Vector[T] {
	nulls := make([]bool, len(values))
	hasNull := false
	for i := range values {
		if !valid[i] {
			nulls[i] = true
			hasNull = true
		}
	}
	if !hasNull {
		nulls = nil
	}
	return &Vector[T]{Values: values, Nulls: nulls}
}

// Kind implements Column.
func (v *Vector[T]) Kind() Kind {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return KindUInt64
	case int64:
		return KindInt64
	case float64:
		return KindFloat64
	case string:
		return KindString
	case bool:
		return KindBool
	}
	return KindUnknown
}

// Len implements Column.
func (v *Vector[T]) Len() int {
	return len(v.Values)
}

// IsConst implements Column.
func (v *Vector[T]) IsConst() bool {
	return v.Const
}

// IsNull implements Column.
func (v *Vector[T]) IsNull(i int) bool {
	if v.Nulls == nil {
		return false
	}
	if v.Const {
		i = 0
	}
	return v.Nulls[i]
}

// At returns the value at row i. When the column is a constant, every row
// returns the single value.
func (v *Vector[T]) At(i int) T {
	if v.Const {
		return v.Values[0]
	}
	return v.Values[i]
}

// ValueAt implements Column.
func (v *Vector[T]) ValueAt(i int) interface{} {
	if v.Const {
		i = 0
	}
	if v.IsNull(i) {
		return nil
	}
	return v.Values[i]
}

// Gather implements Column.
func (v *Vector[T]) Gather(indices []int) Column {
	res := &Vector[T]{Values: make([]T, len(indices))}
	if v.Nulls != nil {
		res.Nulls = make([]bool, len(indices))
	}
	for j, i := range indices {
		if v.Const {
			i = 0
		}
		res.Values[j] = v.Values[i]
		if v.Nulls != nil {
			res.Nulls[j] = v.Nulls[i]
		}
	}
	return res
}

// Filter implements Column.
func (v *Vector[T]) Filter(keep []bool) Column {
	res := &Vector[T]{Values: make([]T, 0, len(keep))}
	if v.Nulls != nil {
		res.Nulls = make([]bool, 0, len(keep))
	}
	for i, k := range keep {
		if !k {
			continue
		}
		res.Values = append(res.Values, v.At(i))
		if v.Nulls != nil {
			res.Nulls = append(res.Nulls, v.IsNull(i))
		}
	}
	return res
}

// Repeat implements Column.
func (v *Vector[T]) Repeat(each int) Column {
	indices := make([]int, 0, len(v.Values)*each)
	for i := range v.Values {
		for k := 0; k < each; k++ {
			indices = append(indices, i)
		}
	}
	return v.Gather(indices)
}

// Tile implements Column.
func (v *Vector[T]) Tile(times int) Column {
	indices := make([]int, 0, len(v.Values)*times)
	for k := 0; k < times; k++ {
		for i := range v.Values {
			indices = append(indices, i)
		}
	}
	return v.Gather(indices)
}

// Empty implements Column.
func (v *Vector[T]) Empty() Column {
	return &Vector[T]{Values: []T{}}
}

// Append returns a new column with the rows of 'other' after the rows of this
// one. Both must be of the same kind.
func (v *Vector[T]) Append(other *Vector[T]) *Vector[T] {
	res := &Vector[T]{Values: make([]T, 0, len(v.Values)+len(other.Values))}
	res.Values = append(append(res.Values, v.Values...), other.Values...)
	if v.Nulls != nil || other.Nulls != nil {
		res.Nulls = make([]bool, 0, len(res.Values))
		for i := range v.Values {
			res.Nulls = append(res.Nulls, v.IsNull(i))
		}
		for i := range other.Values {
			res.Nulls = append(res.Nulls, other.IsNull(i))
		}
	}
	return res
}

// Concat appends the rows of b to the rows of a. It returns an error if the
// columns are of different kinds.
func Concat(a, b Column) (Column, error) {
	switch av := a.(type) {
	case *UInt64s:
		if bv, ok := b.(*UInt64s); ok {
			return av.Append(bv), nil
		}
	case *Int64s:
		if bv, ok := b.(*Int64s); ok {
			return av.Append(bv), nil
		}
	case *Float64s:
		if bv, ok := b.(*Float64s); ok {
			return av.Append(bv), nil
		}
	case *Strings:
		if bv, ok := b.(*Strings); ok {
			return av.Append(bv), nil
		}
	case *Bools:
		if bv, ok := b.(*Bools); ok {
			return av.Append(bv), nil
		}
	}
	return nil, fmt.Errorf("cannot concatenate %v column with %v column", a.Kind(), b.Kind())
}

// NewEmpty returns a zero-length column of the given kind.
func NewEmpty(kind Kind) Column {
	switch kind {
	case KindUInt64:
		return NewVector[uint64]()
	case KindInt64:
		return NewVector[int64]()
	case KindFloat64:
		return NewVector[float64]()
	case KindString:
		return NewVector[string]()
	case KindBool:
		return NewVector[bool]()
	}
	panic(fmt.Sprintf("dataframe.NewEmpty: unknown kind %v", kind))
}

// FormatValue renders a single column value for display. Null is rendered as
// "null".
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(value)
}

// String renders the column values, for debugging.
func String(c Column) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < c.Len(); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(FormatValue(c.ValueAt(i)))
	}
	b.WriteByte(']')
	return b.String()
}
