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
	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/plangraph"
)

type propKey struct {
	decl *ast.VarDecl
	prop graph.PropertyTypeID
}

// pendingInput is the first branch to reach a binary node. It waits in the
// LoweringContext until the second branch arrives.
type pendingInput struct {
	branch *Builder
	isLhs  bool
}

// LoweringContext holds what the generator learns while it walks the plan:
// which column holds each variable, property, entity type, and function
// result. The generator owns it for the duration of one call to Generate.
//
// A variable is held by one column throughout the pipeline. A property or an
// entity type may be fetched separately on several branches, so lookups take
// the dataframe they read from and return the column present in it.
type LoweringContext struct {
	decls   map[*ast.VarDecl]dataframe.ColumnTag
	props   map[propKey][]dataframe.ColumnTag
	types   map[*ast.VarDecl][]dataframe.ColumnTag
	funcs   map[*ast.FunctionInvocation]dataframe.ColumnTag
	aliases map[*ast.VarDecl]ast.Expr
	binary  map[plangraph.NodeID]pendingInput
}

// NewLoweringContext returns an empty context.
func NewLoweringContext() *LoweringContext {
	return &LoweringContext{
		decls:   make(map[*ast.VarDecl]dataframe.ColumnTag),
		props:   make(map[propKey][]dataframe.ColumnTag),
		types:   make(map[*ast.VarDecl][]dataframe.ColumnTag),
		funcs:   make(map[*ast.FunctionInvocation]dataframe.ColumnTag),
		aliases: make(map[*ast.VarDecl]ast.Expr),
		binary:  make(map[plangraph.NodeID]pendingInput),
	}
}

// BindDecl records the column that holds a variable's values.
func (c *LoweringContext) BindDecl(decl *ast.VarDecl, tag dataframe.ColumnTag) {
	c.decls[decl] = tag
}

// DeclTag returns the column bound to a variable.
func (c *LoweringContext) DeclTag(decl *ast.VarDecl) (dataframe.ColumnTag, bool) {
	tag, ok := c.decls[decl]
	return tag, ok
}

// AddProp records a column holding a property of a variable.
func (c *LoweringContext) AddProp(decl *ast.VarDecl, prop graph.PropertyTypeID, tag dataframe.ColumnTag) {
	key := propKey{decl, prop}
	c.props[key] = append(c.props[key], tag)
}

// PropTag returns the column of df that holds the property of the variable.
func (c *LoweringContext) PropTag(decl *ast.VarDecl, prop graph.PropertyTypeID, df *dataframe.Dataframe) (dataframe.ColumnTag, bool) {
	return present(c.props[propKey{decl, prop}], df)
}

// AddType records a column holding the label set IDs of a node variable or
// the edge type IDs of an edge variable.
func (c *LoweringContext) AddType(decl *ast.VarDecl, tag dataframe.ColumnTag) {
	c.types[decl] = append(c.types[decl], tag)
}

// TypeTag returns the column of df that holds the variable's entity types.
func (c *LoweringContext) TypeTag(decl *ast.VarDecl, df *dataframe.Dataframe) (dataframe.ColumnTag, bool) {
	return present(c.types[decl], df)
}

// BindFunc records the column that holds the result of a function
// invocation.
func (c *LoweringContext) BindFunc(f *ast.FunctionInvocation, tag dataframe.ColumnTag) {
	c.funcs[f] = tag
}

// FuncTag returns the column bound to a function invocation.
func (c *LoweringContext) FuncTag(f *ast.FunctionInvocation) (dataframe.ColumnTag, bool) {
	tag, ok := c.funcs[f]
	return tag, ok
}

// AddAlias records the expression that a RETURN item's name stands for.
func (c *LoweringContext) AddAlias(decl *ast.VarDecl, e ast.Expr) {
	c.aliases[decl] = e
}

// Alias returns the expression that a variable declared by a RETURN item
// stands for.
func (c *LoweringContext) Alias(decl *ast.VarDecl) (ast.Expr, bool) {
	e, ok := c.aliases[decl]
	return e, ok
}

// deferBinary records the first branch to reach a binary node.
func (c *LoweringContext) deferBinary(node plangraph.NodeID, in pendingInput) {
	c.binary[node] = in
}

// takeBinary returns and forgets the branch waiting at a binary node.
func (c *LoweringContext) takeBinary(node plangraph.NodeID) (pendingInput, bool) {
	in, ok := c.binary[node]
	if ok {
		delete(c.binary, node)
	}
	return in, ok
}

// pendingBinaries returns the binary nodes that only one branch reached.
func (c *LoweringContext) pendingBinaries() []plangraph.NodeID {
	res := make([]plangraph.NodeID, 0, len(c.binary))
	for id := range c.binary {
		res = append(res, id)
	}
	return res
}

func present(tags []dataframe.ColumnTag, df *dataframe.Dataframe) (dataframe.ColumnTag, bool) {
	for _, tag := range tags {
		if df.Get(tag) != nil {
			return tag, true
		}
	}
	return 0, false
}
