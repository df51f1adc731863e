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

package dataframe

import (
	"fmt"
	"strings"
)

// ColumnTag identifies a column across all the dataframes of a pipeline. The
// zero value is not a valid tag.
type ColumnTag uint32

// Valid returns true if the tag has been allocated.
func (t ColumnTag) Valid() bool {
	return t != 0
}

func (t ColumnTag) String() string {
	if !t.Valid() {
		return "$-"
	}
	return fmt.Sprintf("$%d", uint32(t))
}

// TagAllocator hands out unique ColumnTags. The zero value is ready to use.
type TagAllocator struct {
	last ColumnTag
}

// Next returns a new tag, greater than all previously returned tags.
func (a *TagAllocator) Next() ColumnTag {
	a.last++
	return a.last
}

// NamedColumn is a column in a dataframe.
type NamedColumn struct {
	Tag ColumnTag
	// Name is used for display only; it's typically the variable or
	// expression that the column holds.
	Name string
	// Col is nil until the column's producer has written a batch.
	Col Column
}

// Rename returns a copy of the named column with a different tag and name,
// referring to the same values.
func (nc *NamedColumn) Rename(tag ColumnTag, name string) *NamedColumn {
	return &NamedColumn{Tag: tag, Name: name, Col: nc.Col}
}

// Len returns the number of rows in the column, or 0 if it has no values yet.
func (nc *NamedColumn) Len() int {
	if nc.Col == nil {
		return 0
	}
	return nc.Col.Len()
}

// Dataframe is an ordered set of columns. Every column in a dataframe is
// expected to have the same number of rows, except inside a materialize chain,
// where the dataframe carries the columns of several expansion steps.
type Dataframe struct {
	cols []*NamedColumn
}

// New returns an empty dataframe.
func New() *Dataframe {
	return &Dataframe{}
}

// Add appends a column to the dataframe. It panics if the tag is already
// present, which indicates a bug in the pipeline builder.
func (df *Dataframe) Add(col *NamedColumn) {
	if df.Get(col.Tag) != nil {
		panic(fmt.Sprintf("dataframe already contains column %v", col.Tag))
	}
	df.cols = append(df.cols, col)
}

// AddNew allocates a column with the given tag and name and appends it.
func (df *Dataframe) AddNew(tag ColumnTag, name string) *NamedColumn {
	col := &NamedColumn{Tag: tag, Name: name}
	df.Add(col)
	return col
}

// Get returns the column with the given tag, or nil if it's not present.
func (df *Dataframe) Get(tag ColumnTag) *NamedColumn {
	for _, c := range df.cols {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// MustGet is like Get but returns an error if the column isn't present.
func (df *Dataframe) MustGet(tag ColumnTag) (*NamedColumn, error) {
	c := df.Get(tag)
	if c == nil {
		return nil, fmt.Errorf("dataframe %v has no column %v", df.Tags(), tag)
	}
	return c, nil
}

// Cols returns the columns in order. The caller must not modify the slice.
func (df *Dataframe) Cols() []*NamedColumn {
	return df.cols
}

// Size returns the number of columns.
func (df *Dataframe) Size() int {
	return len(df.cols)
}

// Tags returns the tags of all the columns, in order.
func (df *Dataframe) Tags() []ColumnTag {
	tags := make([]ColumnTag, len(df.cols))
	for i, c := range df.cols {
		tags[i] = c.Tag
	}
	return tags
}

// RowCount returns the number of rows in the first column, or 0 for a
// dataframe without columns.
func (df *Dataframe) RowCount() int {
	if len(df.cols) == 0 {
		return 0
	}
	return df.cols[0].Len()
}

// CloneShape returns a new dataframe with the same tags and names, but
// without values.
func (df *Dataframe) CloneShape() *Dataframe {
	res := &Dataframe{cols: make([]*NamedColumn, len(df.cols))}
	for i, c := range df.cols {
		res.cols[i] = &NamedColumn{Tag: c.Tag, Name: c.Name}
	}
	return res
}

// HasSameShape returns true if both dataframes have the same tags in the same
// order.
func (df *Dataframe) HasSameShape(other *Dataframe) bool {
	if len(df.cols) != len(other.cols) {
		return false
	}
	for i := range df.cols {
		if df.cols[i].Tag != other.cols[i].Tag {
			return false
		}
	}
	return true
}

// Clear drops the values of every column, keeping the shape.
func (df *Dataframe) Clear() {
	for _, c := range df.cols {
		c.Col = nil
	}
}

// String renders the dataframe as one line per column, for debugging.
func (df *Dataframe) String() string {
	var b strings.Builder
	for _, c := range df.cols {
		fmt.Fprintf(&b, "%v %s: ", c.Tag, c.Name)
		if c.Col == nil {
			b.WriteString("<unset>")
		} else {
			b.WriteString(String(c.Col))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Forward copies the column values of src into the columns of dst that have
// the same tag. Columns of dst that aren't in src are left alone.
func Forward(dst, src *Dataframe) {
	for _, c := range dst.cols {
		if from := src.Get(c.Tag); from != nil {
			c.Col = from.Col
		}
	}
}
