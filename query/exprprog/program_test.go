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
	"testing"

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tagAge dataframe.ColumnTag = iota + 1
	tagName
	tagScore
	tagLabels
	tagFlag
	tagOut
	tagTmp
)

// people returns a dataframe with 4 rows. The third person has no age, and
// the fourth has no name.
func people() *dataframe.Dataframe {
	df := dataframe.New()
	df.AddNew(tagAge, "p.age").Col = dataframe.NewNullable(
		[]int64{30, 25, 0, 41}, []bool{true, true, false, true})
	df.AddNew(tagName, "p.name").Col = dataframe.NewNullable(
		[]string{"alice", "bob", "carol", ""}, []bool{true, true, true, false})
	df.AddNew(tagScore, "p.score").Col = dataframe.NewVector(1.5, 2.0, -3.25, 0)
	df.AddNew(tagLabels, "labels(p)").Col = dataframe.NewVector[uint64](1, 2, 3, 1)
	df.AddNew(tagFlag, "p.flag").Col = dataframe.NewNullable(
		[]bool{true, false, false, true}, []bool{true, true, false, false})
	return df
}

func values(c dataframe.Column) []interface{} {
	res := make([]interface{}, c.Len())
	for i := range res {
		res[i] = c.ValueAt(i)
	}
	return res
}

func Test_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		lhs  Operand
		rhs  Operand
		exp  []interface{}
	}{
		{"int plus const", OpAdd, Ref(tagAge), Const(dataframe.NewConst[int64](1)),
			[]interface{}{int64(31), int64(26), nil, int64(42)}},
		{"int times float", OpMul, Ref(tagAge), Ref(tagScore),
			[]interface{}{45.0, 50.0, nil, 0.0}},
		{"const divided by int", OpDiv, Const(dataframe.NewConst[int64](60)), Ref(tagAge),
			[]interface{}{int64(2), int64(2), nil, int64(1)}},
		{"mod", OpMod, Ref(tagAge), Const(dataframe.NewConst[int64](7)),
			[]interface{}{int64(2), int64(4), nil, int64(6)}},
		{"mod by zero", OpMod, Ref(tagAge), Const(dataframe.NewConst[int64](0)),
			[]interface{}{nil, nil, nil, nil}},
		{"uint minus int", OpSub, Ref(tagLabels), Const(dataframe.NewConst[int64](1)),
			[]interface{}{int64(0), int64(1), int64(2), int64(0)}},
		{"string concat", OpAdd, Ref(tagName), Const(dataframe.NewConst("!")),
			[]interface{}{"alice!", "bob!", "carol!", nil}},
		{"plus null", OpAdd, Ref(tagScore), Null(),
			[]interface{}{nil, nil, nil, nil}},
		{"greater", OpGreater, Ref(tagAge), Const(dataframe.NewConst[int64](28)),
			[]interface{}{true, false, false, true}},
		{"int less than float", OpLess, Ref(tagAge), Const(dataframe.NewConst(25.5)),
			[]interface{}{false, true, false, false}},
		{"string equal", OpEqual, Ref(tagName), Const(dataframe.NewConst("bob")),
			[]interface{}{false, true, false, false}},
		{"not equal with null is false", OpNotEqual, Ref(tagName), Const(dataframe.NewConst("bob")),
			[]interface{}{true, false, true, false}},
		{"compare to null const", OpEqual, Ref(tagAge), Null(),
			[]interface{}{false, false, false, false}},
		{"uint greater equal", OpGreaterEqual, Ref(tagLabels), Const(dataframe.NewConst[uint64](2)),
			[]interface{}{false, true, true, false}},
		{"and", OpAnd, Ref(tagFlag), Const(dataframe.NewConst(true)),
			[]interface{}{true, false, nil, nil}},
		{"and false", OpAnd, Ref(tagFlag), Const(dataframe.NewConst(false)),
			[]interface{}{false, false, false, false}},
		{"or true", OpOr, Ref(tagFlag), Const(dataframe.NewConst(true)),
			[]interface{}{true, true, true, true}},
		{"or false", OpOr, Ref(tagFlag), Const(dataframe.NewConst(false)),
			[]interface{}{true, false, nil, nil}},
		{"or null", OpOr, Ref(tagFlag), Null(),
			[]interface{}{true, nil, nil, nil}},
		{"not", OpNot, Ref(tagFlag), Operand{},
			[]interface{}{false, true, nil, nil}},
		{"is null", OpIsNull, Ref(tagAge), Operand{},
			[]interface{}{false, false, true, false}},
		{"is not null", OpIsNotNull, Ref(tagName), Operand{},
			[]interface{}{true, true, true, false}},
		{"neg", OpNeg, Ref(tagAge), Operand{},
			[]interface{}{int64(-30), int64(-25), nil, int64(-41)}},
		{"abs", OpAbs, Ref(tagScore), Operand{},
			[]interface{}{1.5, 2.0, 3.25, 0.0}},
		{"upper", OpToUpper, Ref(tagName), Operand{},
			[]interface{}{"ALICE", "BOB", "CAROL", nil}},
		{"to int", OpToInt, Ref(tagLabels), Operand{},
			[]interface{}{int64(1), int64(2), int64(3), int64(1)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var p Program
			p.Add(test.op, tagOut, test.lhs, test.rhs)
			res, err := p.Evaluate(people())
			require.NoError(t, err)
			require.Contains(t, res, tagOut)
			assert.False(t, res[tagOut].IsConst())
			assert.Equal(t, test.exp, values(res[tagOut]))
		})
	}
}

func Test_Evaluate_constFolding(t *testing.T) {
	var p Program
	p.Add(OpMul, tagTmp, Const(dataframe.NewConst[int64](6)), Const(dataframe.NewConst[int64](7)))
	p.Add(OpEqual, tagOut, Ref(tagTmp), Const(dataframe.NewConst(42.0)))
	res, err := p.Evaluate(dataframe.New())
	require.NoError(t, err)
	assert.True(t, res[tagTmp].IsConst())
	assert.Equal(t, int64(42), res[tagTmp].ValueAt(0))
	assert.True(t, res[tagOut].IsConst())
	assert.Equal(t, true, res[tagOut].ValueAt(0))
}

func Test_Evaluate_copy(t *testing.T) {
	var p Program
	p.Add(OpCopy, tagTmp, Const(dataframe.NewConst("x")), Operand{})
	p.Add(OpCopy, tagOut, Ref(tagName), Operand{})
	res, err := p.Evaluate(people())
	require.NoError(t, err)
	assert.True(t, res[tagTmp].IsConst())
	assert.Equal(t, "x", res[tagTmp].ValueAt(0))
	assert.Equal(t, []interface{}{"alice", "bob", "carol", nil}, values(res[tagOut]))
}

func Test_Evaluate_earlierResultsShadowInputs(t *testing.T) {
	var p Program
	p.Add(OpAdd, tagTmp, Ref(tagAge), Const(dataframe.NewConst[int64](100)))
	p.Add(OpAdd, tagAge, Ref(tagTmp), Const(dataframe.NewConst[int64](1)))
	p.Add(OpSub, tagOut, Ref(tagAge), Ref(tagTmp))
	res, err := p.Evaluate(people())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(131), int64(126), nil, int64(142)}, values(res[tagAge]))
	assert.Equal(t, []interface{}{int64(1), int64(1), nil, int64(1)}, values(res[tagOut]))
}

func Test_Evaluate_lookup(t *testing.T) {
	var p Program
	p.AddLookup(tagOut, Ref(tagLabels), map[uint64]string{1: "Person", 2: "Company"})
	res, err := p.Evaluate(people())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Person", "Company", nil, "Person"}, values(res[tagOut]))
}

func Test_Evaluate_errors(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		lhs  Operand
		rhs  Operand
		err  string
	}{
		{"missing column", OpAdd, Ref(99), Const(dataframe.NewConst[int64](1)),
			"column $99 is not in the dataframe"},
		{"missing operand", OpAdd, Ref(tagAge), Operand{},
			"missing operand"},
		{"string minus int", OpSub, Ref(tagName), Ref(tagAge),
			"can't apply SUB to string and int64"},
		{"string less than int", OpLess, Ref(tagName), Ref(tagAge),
			"string and int64 are not comparable"},
		{"and on ints", OpAnd, Ref(tagAge), Ref(tagFlag),
			"can't apply AND to int64 and bool"},
		{"not on string", OpNot, Ref(tagName), Operand{},
			"can't apply NOT to string"},
		{"length mismatch", OpAdd, Ref(tagAge), Const(dataframe.NewVector[int64](1, 2)),
			"operand lengths differ: 4 and 2"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var p Program
			p.Add(test.op, tagOut, test.lhs, test.rhs)
			_, err := p.Evaluate(people())
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.err)
		})
	}
}

func Test_AddInSet(t *testing.T) {
	tests := []struct {
		name       string
		candidates []uint64
		instrs     int
		exp        []bool
	}{
		{"none", nil, 1, []bool{false, false, false, false}},
		{"one", []uint64{2}, 1, []bool{false, true, false, false}},
		{"two", []uint64{1, 3}, 3, []bool{true, false, true, true}},
		{"three", []uint64{1, 2, 3}, 5, []bool{true, true, true, true}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tags := &dataframe.TagAllocator{}
			for i := 0; i < int(tagTmp); i++ {
				tags.Next()
			}
			var p PredicateProgram
			p.AddInSet(tagOut, tagLabels, test.candidates, tags)
			p.AddPredicate(tagOut)
			assert.Equal(t, test.instrs, p.Len())
			mask, err := p.Mask(people())
			require.NoError(t, err)
			assert.Equal(t, test.exp, mask)
		})
	}
}

func Test_PredicateProgram_Mask(t *testing.T) {
	var p PredicateProgram
	p.Add(OpGreater, tagTmp, Ref(tagAge), Const(dataframe.NewConst[int64](20)))
	p.AddPredicate(tagTmp)
	p.AddPredicate(tagFlag)
	mask, err := p.Mask(people())
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false}, mask)
	assert.Equal(t, "$7 = GREATER $1, 20\nwhere $7 AND $5\n", p.String())

	var notBool PredicateProgram
	notBool.AddPredicate(tagAge)
	_, err = notBool.Mask(people())
	assert.EqualError(t, err, "predicate $1 is int64, not bool")
}

func Test_Op_String(t *testing.T) {
	for op := OpInvalid; op < numOps; op++ {
		assert.NotEmpty(t, op.String())
	}
	assert.Equal(t, "GREATER_EQUAL", OpGreaterEqual.String())
	assert.Equal(t, "Op(200)", Op(200).String())
	assert.True(t, OpMod.IsArithmetic())
	assert.False(t, OpEqual.IsArithmetic())
	assert.True(t, OpLessEqual.IsComparison())
	assert.True(t, OpLookup.IsUnary())
	assert.False(t, OpOr.IsUnary())
}
