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

package ast

import (
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/stretchr/testify/assert"
)

func Test_DeclContext(t *testing.T) {
	assert := assert.New(t)
	var decls DeclContext
	a := decls.Declare("a", VarNode)
	anon := decls.Declare("", VarEdge)
	v := decls.Declare("total", VarValue)
	assert.Equal(0, a.ID)
	assert.Equal(TypeNode, a.Type)
	assert.Equal(TypeEdge, anon.Type)
	assert.Equal(TypeInvalid, v.Type)
	assert.Equal("_1", anon.String())
	assert.Equal(a, decls.Lookup("a"))
	assert.Nil(decls.Lookup(""))
	assert.Nil(decls.Lookup("b"))
	assert.Equal([]*VarDecl{a, anon, v}, decls.Decls())
}

func Test_Location(t *testing.T) {
	assert.Equal(t, "line 2, column 7", Location{2, 7}.String())
	assert.Equal(t, "unknown location", Location{}.String())
	lit := &Literal{Location: Location{1, 3}, Value: int64(4)}
	assert.Equal(t, Location{1, 3}, lit.Loc())
}

func Test_ExprTypes(t *testing.T) {
	var decls DeclContext
	n := decls.Declare("n", VarNode)
	age := &Property{Decl: n, PropType: graph.PropertyType{Name: "age", Kind: graph.ValueInt64}}
	score := &Property{Decl: n, PropType: graph.PropertyType{Name: "score", Kind: graph.ValueFloat64}}
	name := &Property{Decl: n, PropType: graph.PropertyType{Name: "name", Kind: graph.ValueString}}
	tests := []struct {
		expr Expr
		exp  EvaluatedType
		str  string
	}{
		{&Literal{Value: int64(1)}, TypeInteger, "1"},
		{&Literal{Value: 1.5}, TypeDouble, "1.5"},
		{&Literal{Value: "x"}, TypeString, `"x"`},
		{&Literal{Value: nil}, TypeNull, "null"},
		{&Symbol{Decl: n}, TypeNode, "n"},
		{age, TypeInteger, "n.age"},
		{&Binary{Op: OpAdd, LHS: age, RHS: age}, TypeInteger, "(n.age + n.age)"},
		{&Binary{Op: OpMult, LHS: age, RHS: score}, TypeDouble, "(n.age * n.score)"},
		{&Binary{Op: OpAdd, LHS: name, RHS: name}, TypeString, "(n.name + n.name)"},
		{&Binary{Op: OpSub, LHS: name, RHS: age}, TypeInvalid, "(n.name - n.age)"},
		{&Binary{Op: OpGreater, LHS: age, RHS: &Literal{Value: int64(3)}}, TypeBool, "(n.age > 3)"},
		{&Unary{Op: OpMinus, Operand: score}, TypeDouble, "-n.score"},
		{&Unary{Op: OpIsNull, Operand: name}, TypeBool, "(n.name IS NULL)"},
		{&Unary{Op: OpNot, Operand: &Literal{Value: true}}, TypeBool, "(NOT true)"},
		{&EntityTypes{Decl: n, Names: []string{"A", "B"}}, TypeBool, "n:A:B"},
		{&FunctionInvocation{Name: "count", Aggregate: true, ResultType: TypeInteger}, TypeInteger, "count(*)"},
		{&FunctionInvocation{Name: "max", Args: []Expr{age}, Aggregate: true, ResultType: TypeInteger}, TypeInteger, "max(n.age)"},
	}
	for _, test := range tests {
		t.Run(test.str, func(t *testing.T) {
			assert.Equal(t, test.exp, test.expr.Type())
			assert.Equal(t, test.str, test.expr.String())
		})
	}
}

func Test_ColumnKind(t *testing.T) {
	assert.Equal(t, dataframe.KindUInt64, TypeNode.ColumnKind())
	assert.Equal(t, dataframe.KindInt64, TypeInteger.ColumnKind())
	assert.Equal(t, dataframe.KindUnknown, TypeNull.ColumnKind())
}

func Test_Conjuncts(t *testing.T) {
	a := &Literal{Value: true}
	b := &Literal{Value: false}
	c := &Literal{Value: int64(1)}
	or := &Binary{Op: OpOr, LHS: a, RHS: b}
	e := &Binary{Op: OpAnd, LHS: &Binary{Op: OpAnd, LHS: a, RHS: or}, RHS: c}
	assert.Equal(t, []Expr{a, or, c}, Conjuncts(e))
	assert.Equal(t, []Expr{or}, Conjuncts(or))
}

func Test_HasAggregate(t *testing.T) {
	count := &FunctionInvocation{Name: "count", Aggregate: true}
	assert.True(t, HasAggregate(&Binary{Op: OpAdd, LHS: &Literal{Value: int64(1)}, RHS: count}))
	assert.False(t, HasAggregate(&Unary{Op: OpMinus, Operand: &Literal{Value: int64(1)}}))
}

func Test_ParseBinaryOp(t *testing.T) {
	op, ok := ParseBinaryOp("and")
	assert.True(t, ok)
	assert.Equal(t, OpAnd, op)
	op, ok = ParseBinaryOp("<>")
	assert.True(t, ok)
	assert.Equal(t, OpNotEqual, op)
	_, ok = ParseBinaryOp("~")
	assert.False(t, ok)
}

func Test_PatternString(t *testing.T) {
	var decls DeclContext
	a := decls.Declare("a", VarNode)
	e := decls.Declare("", VarEdge)
	b := decls.Declare("b", VarNode)
	p := &PatternElement{
		Origin: &NodePattern{Decl: a, LabelNames: []string{"Person"}},
		Chain: []PatternLink{{
			Edge: &EdgePattern{Decl: e, Direction: DirOut, TypeNames: []string{"KNOWS"}},
			Target: &NodePattern{Decl: b, Props: []PropConstraint{{
				PropType: graph.PropertyType{Name: "name"},
				Value:    &Literal{Value: "Bob"},
			}}},
		}},
	}
	assert.Equal(t, `(a:Person)-[:KNOWS]->(b {name: "Bob"})`, p.String())
	p.Chain[0].Edge.Direction = DirIn
	assert.Equal(t, `(a:Person)<-[:KNOWS]-(b {name: "Bob"})`, p.String())
}
