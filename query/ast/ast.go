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

// Package ast defines the annotated statement tree consumed by the query
// planner. Trees are produced by the semantic analyzer: every variable
// reference has been resolved to a VarDecl, every expression carries its
// EvaluatedType, and label, edge type, and property names have been validated
// against the graph catalog.
package ast

import (
	"fmt"

	"github.com/ebay/akgraph/query/dataframe"
)

// Location is a position in the query text. The zero value means the
// position is unknown.
type Location struct {
	Line   int
	Column int
}

// Loc returns the location. It's promoted to every type that embeds a
// Location, which is how AST nodes implement the Loc() method of Expr and
// Stmt.
func (l Location) Loc() Location {
	return l
}

// IsZero returns true if the location is unknown.
func (l Location) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return "unknown location"
	}
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// EvaluatedType is the type an expression evaluates to.
type EvaluatedType uint8

// Evaluated types.
const (
	TypeInvalid EvaluatedType = iota
	TypeInteger
	TypeDouble
	TypeString
	TypeBool
	// TypeNode is the type of a node variable; its value is the node ID.
	TypeNode
	// TypeEdge is the type of an edge variable; its value is the edge ID.
	TypeEdge
	// TypeNull is the type of the null literal.
	TypeNull
)

func (t EvaluatedType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeDouble:
		return "Double"
	case TypeString:
		return "String"
	case TypeBool:
		return "Bool"
	case TypeNode:
		return "Node"
	case TypeEdge:
		return "Edge"
	case TypeNull:
		return "Null"
	}
	return "Invalid"
}

// ColumnKind returns the kind of dataframe column that holds values of this
// type. It returns KindUnknown for TypeInvalid and TypeNull.
func (t EvaluatedType) ColumnKind() dataframe.Kind {
	switch t {
	case TypeInteger:
		return dataframe.KindInt64
	case TypeDouble:
		return dataframe.KindFloat64
	case TypeString:
		return dataframe.KindString
	case TypeBool:
		return dataframe.KindBool
	case TypeNode, TypeEdge:
		return dataframe.KindUInt64
	}
	return dataframe.KindUnknown
}

// IsNumeric returns true for TypeInteger and TypeDouble.
func (t EvaluatedType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDouble
}

// VarKind says what a variable refers to.
type VarKind uint8

// Kinds of variables.
const (
	VarNode VarKind = iota + 1
	VarEdge
	// VarValue is a variable bound to a computed value, such as a RETURN
	// item or a procedure's YIELD column.
	VarValue
)

func (k VarKind) String() string {
	switch k {
	case VarNode:
		return "node"
	case VarEdge:
		return "edge"
	case VarValue:
		return "value"
	}
	return fmt.Sprintf("VarKind(%d)", uint8(k))
}

// VarDecl is the declaration of a variable. All references to the same
// variable share one VarDecl, so the pointer is its identity.
type VarDecl struct {
	// ID is unique within a query and is used for stable rendering.
	ID int
	// Name is the name used in the query text, or empty for anonymous
	// pattern entities.
	Name string
	Kind VarKind
	// Type is TypeNode or TypeEdge for pattern variables, or the type of the
	// bound value for VarValue.
	Type EvaluatedType
}

func (d *VarDecl) String() string {
	if d.Name == "" {
		return fmt.Sprintf("_%d", d.ID)
	}
	return d.Name
}

// DeclContext allocates VarDecls for one query.
type DeclContext struct {
	decls []*VarDecl
}

// Declare creates a new variable. An empty name declares an anonymous
// variable.
func (c *DeclContext) Declare(name string, kind VarKind) *VarDecl {
	d := &VarDecl{
		ID:   len(c.decls),
		Name: name,
		Kind: kind,
	}
	switch kind {
	case VarNode:
		d.Type = TypeNode
	case VarEdge:
		d.Type = TypeEdge
	}
	c.decls = append(c.decls, d)
	return d
}

// Lookup returns the named variable, or nil. Anonymous variables can't be
// looked up.
func (c *DeclContext) Lookup(name string) *VarDecl {
	if name == "" {
		return nil
	}
	for _, d := range c.decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Decls returns all the declared variables in declaration order.
func (c *DeclContext) Decls() []*VarDecl {
	return c.decls
}
