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

package exprprog

import (
	"cmp"
	"math"
	"strings"

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/pkg/errors"
)

// eval applies a single instruction to its resolved operands. rhs is nil for
// unary operators.
func eval(in *Instruction, lhs, rhs dataframe.Column) (dataframe.Column, error) {
	switch {
	case in.Op.IsArithmetic():
		return arithmetic(in.Op, lhs, rhs)
	case in.Op.IsComparison():
		return compare(in.Op, lhs, rhs)
	case in.Op == OpAnd || in.Op == OpOr:
		return logic(in.Op, lhs, rhs)
	case in.Op == OpIsNull || in.Op == OpIsNotNull:
		return isNull(in.Op == OpIsNull, lhs), nil
	case in.Op == OpCopy:
		return lhs, nil
	}
	if isNullConst(lhs) {
		return allNull(unaryKind(in.Op), 1, true), nil
	}
	switch in.Op {
	case OpNot:
		return not(lhs)
	case OpNeg, OpAbs:
		return negate(in.Op, lhs)
	case OpToUpper, OpToLower:
		return changeCase(in.Op, lhs)
	case OpToInt:
		return toInt(lhs)
	case OpLookup:
		return lookup(lhs, in.Table)
	}
	return nil, errors.Errorf("unsupported operator %v", in.Op)
}

func unaryKind(op Op) dataframe.Kind {
	switch op {
	case OpNot:
		return dataframe.KindBool
	case OpToUpper, OpToLower, OpLookup:
		return dataframe.KindString
	}
	return dataframe.KindInt64
}

// shape returns the number of rows of a value computed from the given columns
// and whether it's a constant. Constant columns broadcast against the others;
// all the other columns must have the same length.
func shape(cols ...dataframe.Column) (int, bool, error) {
	n, isConst := 1, true
	for _, c := range cols {
		if c.IsConst() {
			continue
		}
		if !isConst && c.Len() != n {
			return 0, false, errors.Errorf("operand lengths differ: %d and %d", n, c.Len())
		}
		n, isConst = c.Len(), false
	}
	return n, isConst, nil
}

func alloc[T dataframe.Element](n int, isConst bool) *dataframe.Vector[T] {
	return &dataframe.Vector[T]{Values: make([]T, n), Const: isConst}
}

func setNull[T dataframe.Element](v *dataframe.Vector[T], i int) {
	if v.Nulls == nil {
		v.Nulls = make([]bool, len(v.Values))
	}
	v.Nulls[i] = true
}

// isNullConst returns true for a constant null of any kind.
func isNullConst(c dataframe.Column) bool {
	return c.IsConst() && c.IsNull(0)
}

func allNull(kind dataframe.Kind, n int, isConst bool) dataframe.Column {
	nulls := make([]bool, n)
	for i := range nulls {
		nulls[i] = true
	}
	switch kind {
	case dataframe.KindUInt64:
		return &dataframe.UInt64s{Values: make([]uint64, n), Nulls: nulls, Const: isConst}
	case dataframe.KindFloat64:
		return &dataframe.Float64s{Values: make([]float64, n), Nulls: nulls, Const: isConst}
	case dataframe.KindString:
		return &dataframe.Strings{Values: make([]string, n), Nulls: nulls, Const: isConst}
	case dataframe.KindBool:
		return &dataframe.Bools{Values: make([]bool, n), Nulls: nulls, Const: isConst}
	}
	return &dataframe.Int64s{Values: make([]int64, n), Nulls: nulls, Const: isConst}
}

// numeric reads the rows of any numeric column.
type numeric struct {
	kind dataframe.Kind
	i    func(int) int64
	u    func(int) uint64
	f    func(int) float64
}

func asNumeric(c dataframe.Column) (numeric, bool) {
	switch v := c.(type) {
	case *dataframe.Int64s:
		return numeric{
			kind: dataframe.KindInt64,
			i:    v.At,
			u:    func(i int) uint64 { return uint64(v.At(i)) },
			f:    func(i int) float64 { return float64(v.At(i)) },
		}, true
	case *dataframe.UInt64s:
		return numeric{
			kind: dataframe.KindUInt64,
			i:    func(i int) int64 { return int64(v.At(i)) },
			u:    v.At,
			f:    func(i int) float64 { return float64(v.At(i)) },
		}, true
	case *dataframe.Float64s:
		return numeric{
			kind: dataframe.KindFloat64,
			i:    func(i int) int64 { return int64(v.At(i)) },
			u:    func(i int) uint64 { return uint64(v.At(i)) },
			f:    v.At,
		}, true
	}
	return numeric{}, false
}

func arithmetic(op Op, lhs, rhs dataframe.Column) (dataframe.Column, error) {
	n, isConst, err := shape(lhs, rhs)
	if err != nil {
		return nil, err
	}
	if isNullConst(lhs) || isNullConst(rhs) {
		kind := lhs.Kind()
		if isNullConst(lhs) {
			kind = rhs.Kind()
		}
		switch kind {
		case dataframe.KindFloat64, dataframe.KindString:
		default:
			kind = dataframe.KindInt64
		}
		return allNull(kind, n, isConst), nil
	}
	if op == OpAdd {
		ls, lok := lhs.(*dataframe.Strings)
		rs, rok := rhs.(*dataframe.Strings)
		if lok && rok {
			res := alloc[string](n, isConst)
			for i := range res.Values {
				if ls.IsNull(i) || rs.IsNull(i) {
					setNull(res, i)
					continue
				}
				res.Values[i] = ls.At(i) + rs.At(i)
			}
			return res, nil
		}
	}
	l, lok := asNumeric(lhs)
	r, rok := asNumeric(rhs)
	if !lok || !rok {
		return nil, errors.Errorf("can't apply %v to %v and %v", op, lhs.Kind(), rhs.Kind())
	}
	if l.kind == dataframe.KindFloat64 || r.kind == dataframe.KindFloat64 {
		res := alloc[float64](n, isConst)
		for i := range res.Values {
			if lhs.IsNull(i) || rhs.IsNull(i) {
				setNull(res, i)
				continue
			}
			a, b := l.f(i), r.f(i)
			switch op {
			case OpAdd:
				res.Values[i] = a + b
			case OpSub:
				res.Values[i] = a - b
			case OpMul:
				res.Values[i] = a * b
			case OpDiv:
				res.Values[i] = a / b
			case OpMod:
				res.Values[i] = math.Mod(a, b)
			}
		}
		return res, nil
	}
	res := alloc[int64](n, isConst)
	for i := range res.Values {
		if lhs.IsNull(i) || rhs.IsNull(i) {
			setNull(res, i)
			continue
		}
		a, b := l.i(i), r.i(i)
		switch op {
		case OpAdd:
			res.Values[i] = a + b
		case OpSub:
			res.Values[i] = a - b
		case OpMul:
			res.Values[i] = a * b
		case OpDiv, OpMod:
			if b == 0 {
				setNull(res, i)
				continue
			}
			if op == OpDiv {
				res.Values[i] = a / b
			} else {
				res.Values[i] = a % b
			}
		}
	}
	return res, nil
}

// compare never produces null: comparing with null is false.
func compare(op Op, lhs, rhs dataframe.Column) (dataframe.Column, error) {
	n, isConst, err := shape(lhs, rhs)
	if err != nil {
		return nil, err
	}
	res := alloc[bool](n, isConst)
	if isNullConst(lhs) || isNullConst(rhs) {
		return res, nil
	}
	c, err := comparator(lhs, rhs)
	if err != nil {
		return nil, errors.Wrapf(err, "can't apply %v", op)
	}
	for i := range res.Values {
		if lhs.IsNull(i) || rhs.IsNull(i) {
			continue
		}
		res.Values[i] = holds(op, c(i))
	}
	return res, nil
}

func holds(op Op, c int) bool {
	switch op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// comparator returns a function that compares row i of lhs with row i of
// rhs.
func comparator(lhs, rhs dataframe.Column) (func(int) int, error) {
	l, lok := asNumeric(lhs)
	r, rok := asNumeric(rhs)
	if lok && rok {
		switch {
		case l.kind == dataframe.KindFloat64 || r.kind == dataframe.KindFloat64:
			return func(i int) int { return cmp.Compare(l.f(i), r.f(i)) }, nil
		case l.kind == dataframe.KindUInt64 && r.kind == dataframe.KindUInt64:
			return func(i int) int { return cmp.Compare(l.u(i), r.u(i)) }, nil
		}
		return func(i int) int { return cmp.Compare(l.i(i), r.i(i)) }, nil
	}
	switch lv := lhs.(type) {
	case *dataframe.Strings:
		if rv, ok := rhs.(*dataframe.Strings); ok {
			return func(i int) int { return strings.Compare(lv.At(i), rv.At(i)) }, nil
		}
	case *dataframe.Bools:
		if rv, ok := rhs.(*dataframe.Bools); ok {
			return func(i int) int { return cmp.Compare(b2i(lv.At(i)), b2i(rv.At(i))) }, nil
		}
	}
	return nil, errors.Errorf("%v and %v are not comparable", lhs.Kind(), rhs.Kind())
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// asBools reads the rows of a bool column. A constant null of any kind
// counts as a bool null.
func asBools(c dataframe.Column) (func(int) bool, bool) {
	if v, ok := c.(*dataframe.Bools); ok {
		return v.At, true
	}
	if isNullConst(c) {
		return func(int) bool { return false }, true
	}
	return nil, false
}

// logic implements AND and OR with three-valued logic: false AND null is
// false, true OR null is true, and otherwise null wins.
func logic(op Op, lhs, rhs dataframe.Column) (dataframe.Column, error) {
	n, isConst, err := shape(lhs, rhs)
	if err != nil {
		return nil, err
	}
	l, lok := asBools(lhs)
	r, rok := asBools(rhs)
	if !lok || !rok {
		return nil, errors.Errorf("can't apply %v to %v and %v", op, lhs.Kind(), rhs.Kind())
	}
	res := alloc[bool](n, isConst)
	for i := range res.Values {
		lNull, rNull := lhs.IsNull(i), rhs.IsNull(i)
		lTrue, rTrue := !lNull && l(i), !rNull && r(i)
		lFalse, rFalse := !lNull && !lTrue, !rNull && !rTrue
		if op == OpAnd {
			switch {
			case lFalse || rFalse:
			case lNull || rNull:
				setNull(res, i)
			default:
				res.Values[i] = true
			}
			continue
		}
		switch {
		case lTrue || rTrue:
			res.Values[i] = true
		case lNull || rNull:
			setNull(res, i)
		}
	}
	return res, nil
}

func not(c dataframe.Column) (dataframe.Column, error) {
	v, ok := c.(*dataframe.Bools)
	if !ok {
		return nil, errors.Errorf("can't apply NOT to %v", c.Kind())
	}
	res := alloc[bool](len(v.Values), v.Const)
	for i := range res.Values {
		if v.IsNull(i) {
			setNull(res, i)
			continue
		}
		res.Values[i] = !v.Values[i]
	}
	return res, nil
}

// isNull never produces null.
func isNull(want bool, c dataframe.Column) dataframe.Column {
	res := alloc[bool](c.Len(), c.IsConst())
	for i := range res.Values {
		res.Values[i] = c.IsNull(i) == want
	}
	return res
}

func negate(op Op, c dataframe.Column) (dataframe.Column, error) {
	num, ok := asNumeric(c)
	if !ok {
		return nil, errors.Errorf("can't apply %v to %v", op, c.Kind())
	}
	if num.kind == dataframe.KindFloat64 {
		res := alloc[float64](c.Len(), c.IsConst())
		for i := range res.Values {
			if c.IsNull(i) {
				setNull(res, i)
				continue
			}
			v := num.f(i)
			if op == OpAbs {
				res.Values[i] = math.Abs(v)
			} else {
				res.Values[i] = -v
			}
		}
		return res, nil
	}
	res := alloc[int64](c.Len(), c.IsConst())
	for i := range res.Values {
		if c.IsNull(i) {
			setNull(res, i)
			continue
		}
		v := num.i(i)
		if op == OpNeg || v < 0 {
			v = -v
		}
		res.Values[i] = v
	}
	return res, nil
}

func changeCase(op Op, c dataframe.Column) (dataframe.Column, error) {
	v, ok := c.(*dataframe.Strings)
	if !ok {
		return nil, errors.Errorf("can't apply %v to %v", op, c.Kind())
	}
	conv := strings.ToLower
	if op == OpToUpper {
		conv = strings.ToUpper
	}
	res := alloc[string](len(v.Values), v.Const)
	for i := range res.Values {
		if v.IsNull(i) {
			setNull(res, i)
			continue
		}
		res.Values[i] = conv(v.Values[i])
	}
	return res, nil
}

func toInt(c dataframe.Column) (dataframe.Column, error) {
	switch v := c.(type) {
	case *dataframe.Int64s:
		return v, nil
	case *dataframe.UInt64s:
		res := alloc[int64](len(v.Values), v.Const)
		for i, x := range v.Values {
			res.Values[i] = int64(x)
		}
		if v.Nulls != nil {
			res.Nulls = append([]bool(nil), v.Nulls...)
		}
		return res, nil
	}
	return nil, errors.Errorf("can't apply %v to %v", OpToInt, c.Kind())
}

func lookup(c dataframe.Column, table map[uint64]string) (dataframe.Column, error) {
	v, ok := c.(*dataframe.UInt64s)
	if !ok {
		return nil, errors.Errorf("can't apply %v to %v", OpLookup, c.Kind())
	}
	res := alloc[string](len(v.Values), v.Const)
	for i, x := range v.Values {
		s, found := table[x]
		if v.IsNull(i) || !found {
			setNull(res, i)
			continue
		}
		res.Values[i] = s
	}
	return res, nil
}
