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

// Package exprprog evaluates expressions over dataframes. An expression is
// compiled into a Program: a flat list of instructions, each of which
// computes one column from up to two operand columns. Operands are columns of
// the input dataframe, results of earlier instructions, or constants.
package exprprog

import (
	"fmt"
	"strings"

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/pkg/errors"
)

// Operand is an input to an Instruction. Exactly one of Tag and Const is set.
type Operand struct {
	// Tag refers to a column of the input dataframe or to the result of an
	// earlier instruction.
	Tag dataframe.ColumnTag
	// Const is a constant column, usually created with dataframe.NewConst.
	Const dataframe.Column
}

// Ref returns an operand that reads the column with the given tag.
func Ref(tag dataframe.ColumnTag) Operand {
	return Operand{Tag: tag}
}

// Const returns an operand with a constant value.
func Const(c dataframe.Column) Operand {
	return Operand{Const: c}
}

// Null returns a constant null operand.
func Null() Operand {
	return Const(&dataframe.Bools{Values: []bool{false}, Nulls: []bool{true}, Const: true})
}

// IsZero returns true for the operand that unary instructions leave unset.
func (o Operand) IsZero() bool {
	return !o.Tag.Valid() && o.Const == nil
}

func (o Operand) String() string {
	switch {
	case o.Tag.Valid():
		return o.Tag.String()
	case o.Const == nil:
		return "_"
	case o.Const.IsConst():
		return dataframe.FormatValue(o.Const.ValueAt(0))
	}
	return dataframe.String(o.Const)
}

// Instruction computes Result = Op(LHS, RHS).
type Instruction struct {
	Op     Op
	Result dataframe.ColumnTag
	LHS    Operand
	RHS    Operand
	// Table is only used by OpLookup.
	Table map[uint64]string
}

func (in *Instruction) String() string {
	if in.Op.IsUnary() {
		return fmt.Sprintf("%v = %v %v", in.Result, in.Op, in.LHS)
	}
	return fmt.Sprintf("%v = %v %v, %v", in.Result, in.Op, in.LHS, in.RHS)
}

// Program is a list of instructions, evaluated in order. An instruction may
// read the results of any instruction before it.
type Program struct {
	Instrs []Instruction
}

// Add appends an instruction. For unary operators, rhs is ignored.
func (p *Program) Add(op Op, result dataframe.ColumnTag, lhs, rhs Operand) {
	if op.IsUnary() {
		rhs = Operand{}
	}
	p.Instrs = append(p.Instrs, Instruction{Op: op, Result: result, LHS: lhs, RHS: rhs})
}

// AddLookup appends an OpLookup instruction.
func (p *Program) AddLookup(result dataframe.ColumnTag, lhs Operand, table map[uint64]string) {
	p.Instrs = append(p.Instrs, Instruction{Op: OpLookup, Result: result, LHS: lhs, Table: table})
}

// AddInSet appends instructions that set result to true for the rows where
// column 'tag' holds one of the candidate values, and false otherwise. This
// is how label set and edge type tests are compiled: a chain of EQUAL
// instructions folded together with OR. With no candidates, the result is a
// constant false. tags allocates the intermediate result columns.
func (p *Program) AddInSet(result, tag dataframe.ColumnTag, candidates []uint64, tags *dataframe.TagAllocator) {
	if len(candidates) == 0 {
		f := Const(dataframe.NewConst(false))
		p.Add(OpOr, result, f, f)
		return
	}
	eqTag := func(last bool) dataframe.ColumnTag {
		if last {
			return result
		}
		return tags.Next()
	}
	acc := eqTag(len(candidates) == 1)
	p.Add(OpEqual, acc, Ref(tag), Const(dataframe.NewConst(candidates[0])))
	for i := 1; i < len(candidates); i++ {
		eq := tags.Next()
		p.Add(OpEqual, eq, Ref(tag), Const(dataframe.NewConst(candidates[i])))
		or := eqTag(i == len(candidates)-1)
		p.Add(OpOr, or, Ref(acc), Ref(eq))
		acc = or
	}
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instrs)
}

func (p *Program) String() string {
	var b strings.Builder
	for i := range p.Instrs {
		b.WriteString(p.Instrs[i].String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Results holds the columns computed by a Program, keyed by result tag.
type Results map[dataframe.ColumnTag]dataframe.Column

// Evaluate runs the program over the dataframe. It returns an error if an
// operand refers to a column that's neither in the dataframe nor computed
// earlier, or if an operator can't be applied to its operand kinds.
func (p *Program) Evaluate(df *dataframe.Dataframe) (Results, error) {
	res := make(Results, len(p.Instrs))
	for i := range p.Instrs {
		in := &p.Instrs[i]
		lhs, err := res.operand(df, in.LHS)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %v", in)
		}
		var rhs dataframe.Column
		if !in.Op.IsUnary() {
			rhs, err = res.operand(df, in.RHS)
			if err != nil {
				return nil, errors.Wrapf(err, "evaluating %v", in)
			}
		}
		col, err := eval(in, lhs, rhs)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %v", in)
		}
		res[in.Result] = col
	}
	return res, nil
}

// operand returns the column for o. Results of earlier instructions shadow
// dataframe columns with the same tag.
func (res Results) operand(df *dataframe.Dataframe, o Operand) (dataframe.Column, error) {
	if !o.Tag.Valid() {
		if o.Const == nil {
			return nil, errors.New("missing operand")
		}
		return o.Const, nil
	}
	if c, ok := res[o.Tag]; ok {
		return c, nil
	}
	nc := df.Get(o.Tag)
	if nc == nil {
		return nil, errors.Errorf("column %v is not in the dataframe", o.Tag)
	}
	if nc.Col == nil {
		return nil, errors.Errorf("column %v (%v) has no values", o.Tag, nc.Name)
	}
	return nc.Col, nil
}

// PredicateProgram is a Program used as a filter. Each column listed in
// Predicates must be a bool column; a row passes the filter only if all of
// them are true in that row. Null counts as false.
type PredicateProgram struct {
	Program
	Predicates []dataframe.ColumnTag
}

// AddPredicate marks the column as one that must be true for a row to pass.
func (p *PredicateProgram) AddPredicate(tag dataframe.ColumnTag) {
	p.Predicates = append(p.Predicates, tag)
}

func (p *PredicateProgram) String() string {
	tags := make([]string, len(p.Predicates))
	for i, t := range p.Predicates {
		tags[i] = t.String()
	}
	return p.Program.String() + "where " + strings.Join(tags, " AND ") + "\n"
}

// Mask evaluates the program and returns, for each of the dataframe's rows,
// whether the row passes all the predicates.
func (p *PredicateProgram) Mask(df *dataframe.Dataframe) ([]bool, error) {
	res, err := p.Evaluate(df)
	if err != nil {
		return nil, err
	}
	rows := df.RowCount()
	mask := make([]bool, rows)
	for i := range mask {
		mask[i] = true
	}
	for _, tag := range p.Predicates {
		col, err := res.operand(df, Ref(tag))
		if err != nil {
			return nil, err
		}
		bools, ok := col.(*dataframe.Bools)
		if !ok {
			return nil, errors.Errorf("predicate %v is %v, not bool", tag, col.Kind())
		}
		if !bools.Const && bools.Len() != rows {
			return nil, errors.Errorf("predicate %v has %d rows, expected %d",
				tag, bools.Len(), rows)
		}
		for i := range mask {
			if mask[i] && (bools.IsNull(i) || !bools.At(i)) {
				mask[i] = false
			}
		}
	}
	return mask, nil
}
