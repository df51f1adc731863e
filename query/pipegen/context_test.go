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

package pipegen

import (
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/plangraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoweringContext_tagsPerBranch(t *testing.T) {
	decls := new(ast.DeclContext)
	a := decls.Declare("a", ast.VarNode)
	ctx := NewLoweringContext()
	left, right := dataframe.New(), dataframe.New()
	left.AddNew(1, "a.name")
	right.AddNew(2, "a.name")

	_, ok := ctx.PropTag(a, 7, left)
	assert.False(t, ok)
	ctx.AddProp(a, 7, 1)
	ctx.AddProp(a, 7, 2)
	tag, ok := ctx.PropTag(a, 7, left)
	assert.True(t, ok)
	assert.Equal(t, dataframe.ColumnTag(1), tag)
	tag, ok = ctx.PropTag(a, 7, right)
	assert.True(t, ok)
	assert.Equal(t, dataframe.ColumnTag(2), tag)
	_, ok = ctx.PropTag(a, 8, right)
	assert.False(t, ok)

	ctx.AddType(a, 2)
	_, ok = ctx.TypeTag(a, left)
	assert.False(t, ok)
	tag, ok = ctx.TypeTag(a, right)
	assert.True(t, ok)
	assert.Equal(t, dataframe.ColumnTag(2), tag)
}

func Test_LoweringContext_binary(t *testing.T) {
	ctx := NewLoweringContext()
	_, ok := ctx.takeBinary(3)
	assert.False(t, ok)
	b := newBuilder(pipeline.New())
	ctx.deferBinary(3, pendingInput{branch: b, isLhs: true})
	assert.Equal(t, []plangraph.NodeID{3}, ctx.pendingBinaries())
	in, ok := ctx.takeBinary(3)
	assert.True(t, ok)
	assert.True(t, in.isLhs)
	assert.Same(t, b, in.branch)
	assert.Empty(t, ctx.pendingBinaries())
}

// Test_compiler evaluates compiled expressions over a two-row dataframe
// holding a's node IDs and ages.
func Test_compiler(t *testing.T) {
	decls := new(ast.DeclContext)
	a := decls.Declare("a", ast.VarNode)
	total := decls.Declare("total", ast.VarValue)
	age := graph.PropertyType{ID: 1, Name: "age", Kind: graph.ValueInt64}

	g := &Generator{
		p:             pipeline.New(),
		ctx:           NewLoweringContext(),
		labelSets:     []graph.LabelSetEntry{{ID: 0, Labels: graph.NewLabelSet(0)}, {ID: 1, Labels: graph.NewLabelSet(0, 1)}},
		labelNames:    map[uint64]string{0: "Person", 1: "Person:Employee"},
		edgeTypeNames: map[uint64]string{},
	}
	ids, ages, types := g.p.NewTag(), g.p.NewTag(), g.p.NewTag()
	frame := dataframe.New()
	frame.AddNew(ids, "a").Col = &dataframe.UInt64s{Values: []uint64{1, 2}}
	frame.AddNew(ages, "a.age").Col = &dataframe.Int64s{Values: []int64{31, 25}}
	frame.AddNew(types, "labels(a)").Col = &dataframe.UInt64s{Values: []uint64{0, 1}}
	g.ctx.BindDecl(a, ids)
	g.ctx.AddProp(a, age.ID, ages)
	g.ctx.AddType(a, types)

	prop := &ast.Property{Decl: a, PropType: age}
	sum := &ast.Binary{Op: ast.OpAdd, LHS: prop, RHS: &ast.Literal{Value: int64(1)}}
	g.ctx.AddAlias(total, sum)

	tests := []struct {
		name     string
		expr     ast.Expr
		computed bool
		exp      []interface{}
	}{
		{name: "column", expr: prop, exp: []interface{}{int64(31), int64(25)}},
		{name: "variable", expr: &ast.Symbol{Decl: a}, exp: []interface{}{uint64(1), uint64(2)}},
		{name: "arithmetic", expr: sum, computed: true, exp: []interface{}{int64(32), int64(26)}},
		{name: "alias", expr: &ast.Symbol{Decl: total}, computed: true, exp: []interface{}{int64(32), int64(26)}},
		{name: "literal", expr: &ast.Literal{Value: "x"}, computed: true, exp: []interface{}{"x", "x"}},
		{
			name:     "label test",
			expr:     &ast.EntityTypes{Decl: a, Labels: graph.NewLabelSet(1)},
			computed: true,
			exp:      []interface{}{false, true},
		},
		{
			name:     "labels function",
			expr:     &ast.FunctionInvocation{Name: "labels", Args: []ast.Expr{&ast.Symbol{Decl: a}}},
			computed: true,
			exp:      []interface{}{"Person", "Person:Employee"},
		},
		{
			name:     "is null",
			expr:     &ast.Unary{Op: ast.OpIsNull, Operand: prop},
			computed: true,
			exp:      []interface{}{false, false},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := g.newCompiler(frame, new(exprprog.Program))
			tag, err := c.column(test.expr)
			require.NoError(t, err)
			if test.computed {
				require.Len(t, c.computed, 1)
				assert.Equal(t, tag, c.computed[0].Tag)
				assert.Equal(t, test.expr.String(), c.computed[0].Name)
			} else {
				assert.Empty(t, c.computed)
			}
			res, err := c.prog.Evaluate(frame)
			require.NoError(t, err)
			col := res[tag]
			if col == nil {
				col = frame.Get(tag).Col
			}
			got := make([]interface{}, 2)
			for i := range got {
				got[i] = col.ValueAt(i)
			}
			assert.Equal(t, test.exp, got)
		})
	}

	c := g.newCompiler(frame, new(exprprog.Program))
	_, err := c.column(&ast.Property{Decl: a, PropType: graph.PropertyType{ID: 9, Name: "height"}})
	assert.IsType(t, &pipeline.FatalError{}, err)
}
