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
	"fmt"
	"strings"

	"github.com/ebay/akgraph/graph"
)

// Stmt is a statement of a query.
type Stmt interface {
	aStmt()
	Loc() Location
}

// Ensures that each of these implements the Stmt interface.
var _ = []Stmt{
	new(MatchStmt),
	new(ReturnStmt),
	new(CreateStmt),
	new(SetStmt),
	new(DeleteStmt),
	new(CallStmt),
	new(CreateGraphStmt),
	new(LoadGraphStmt),
	new(ListGraphStmt),
	new(S3ConnectStmt),
	new(S3TransferStmt),
}

func (*MatchStmt) aStmt()       {}
func (*ReturnStmt) aStmt()      {}
func (*CreateStmt) aStmt()      {}
func (*SetStmt) aStmt()         {}
func (*DeleteStmt) aStmt()      {}
func (*CallStmt) aStmt()        {}
func (*CreateGraphStmt) aStmt() {}
func (*LoadGraphStmt) aStmt()   {}
func (*ListGraphStmt) aStmt()   {}
func (*S3ConnectStmt) aStmt()   {}
func (*S3TransferStmt) aStmt()  {}

// Query is an ordered list of statements, such as MATCH ... RETURN ...
type Query struct {
	Stmts []Stmt
	// Decls holds the query's variables.
	Decls *DeclContext
}

// PropConstraint is a property in a pattern, as in (n {name: "Bob"}).
type PropConstraint struct {
	Location
	// PropType is resolved for MATCH patterns. For CREATE patterns, only
	// PropType.Name is required, since the property may not exist yet.
	PropType graph.PropertyType
	Value    Expr
}

// NodePattern is a node in a pattern, as in (n:Person {name: "Bob"}).
type NodePattern struct {
	Location
	Decl *VarDecl
	// Labels is resolved for MATCH patterns.
	Labels graph.LabelSet
	// LabelNames holds the label names as written.
	LabelNames []string
	Props      []PropConstraint
}

func (n *NodePattern) String() string {
	var b strings.Builder
	b.WriteByte('(')
	if n.Decl.Name != "" {
		b.WriteString(n.Decl.Name)
	}
	for _, l := range n.LabelNames {
		b.WriteByte(':')
		b.WriteString(l)
	}
	writeProps(&b, n.Props)
	b.WriteByte(')')
	return b.String()
}

// Direction is the direction of an edge pattern relative to the node
// before it.
type Direction uint8

// Edge directions.
const (
	// DirOut matches (a)-->(b).
	DirOut Direction = iota + 1
	// DirIn matches (a)<--(b).
	DirIn
	// DirAny matches (a)--(b).
	DirAny
)

func (d Direction) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirIn:
		return "in"
	case DirAny:
		return "any"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// EdgePattern is an edge in a pattern, as in -[e:KNOWS]->.
type EdgePattern struct {
	Location
	Decl      *VarDecl
	Direction Direction
	// Types is resolved for MATCH patterns.
	Types     []graph.EdgeTypeID
	TypeNames []string
	Props     []PropConstraint
}

func (e *EdgePattern) String() string {
	var b strings.Builder
	if e.Direction == DirIn {
		b.WriteByte('<')
	}
	b.WriteString("-[")
	if e.Decl.Name != "" {
		b.WriteString(e.Decl.Name)
	}
	if len(e.TypeNames) > 0 {
		b.WriteByte(':')
		b.WriteString(strings.Join(e.TypeNames, "|"))
	}
	writeProps(&b, e.Props)
	b.WriteString("]-")
	if e.Direction == DirOut {
		b.WriteByte('>')
	}
	return b.String()
}

func writeProps(b *strings.Builder, props []PropConstraint) {
	if len(props) == 0 {
		return
	}
	b.WriteString(" {")
	for i, p := range props {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s: %v", p.PropType.Name, p.Value)
	}
	b.WriteByte('}')
}

// PatternLink is one hop of a pattern: an edge and the node it leads to.
type PatternLink struct {
	Edge   *EdgePattern
	Target *NodePattern
}

// PatternElement is a chain of nodes and edges, as in (a)-[e]->(b)<--(c).
type PatternElement struct {
	Location
	Origin *NodePattern
	Chain  []PatternLink
}

func (p *PatternElement) String() string {
	var b strings.Builder
	b.WriteString(p.Origin.String())
	for _, link := range p.Chain {
		b.WriteString(link.Edge.String())
		b.WriteString(link.Target.String())
	}
	return b.String()
}

// MatchStmt is a MATCH clause with an optional WHERE clause.
type MatchStmt struct {
	Location
	Patterns []*PatternElement
	// Where is nil if there's no WHERE clause.
	Where Expr
}

// ReturnItem is one projected expression in a RETURN clause.
type ReturnItem struct {
	Expr Expr
	// Name is the column name: the alias, or the expression text.
	Name string
	// Decl is the variable the item is bound to, which ORDER BY may refer to.
	Decl *VarDecl
}

// SortItem is one expression in an ORDER BY clause.
type SortItem struct {
	Expr       Expr
	Descending bool
}

// ReturnStmt is a RETURN clause with its modifiers.
type ReturnStmt struct {
	Location
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	// Skip and Limit are nil when absent.
	Skip  Expr
	Limit Expr
}

// CreateStmt is a CREATE clause. Node variables that were bound by an
// earlier MATCH refer to existing nodes; all other pattern entities are
// created.
type CreateStmt struct {
	Location
	Patterns []*PatternElement
}

// SetItem is one assignment in a SET clause, as in SET n.age = 32.
type SetItem struct {
	Location
	Decl  *VarDecl
	Prop  string
	Value Expr
}

// SetStmt is a SET clause.
type SetStmt struct {
	Location
	Items []*SetItem
}

// DeleteStmt is a DELETE clause.
type DeleteStmt struct {
	Location
	Targets []*VarDecl
}

// YieldItem binds one output column of a procedure to a variable.
type YieldItem struct {
	Field string
	Decl  *VarDecl
}

// CallStmt is a procedure call, as in CALL db.labels().
type CallStmt struct {
	Location
	Procedure string
	// Yield lists the bound columns. If empty, every column of the
	// procedure is returned.
	Yield []*YieldItem
}

// CreateGraphStmt is CREATE GRAPH name.
type CreateGraphStmt struct {
	Location
	Name string
}

// LoadGraphStmt is LOAD GRAPH name FROM path.
type LoadGraphStmt struct {
	Location
	Name string
	Path string
}

// ListGraphStmt is LIST GRAPHS.
type ListGraphStmt struct {
	Location
}

// S3ConnectStmt configures S3 credentials.
type S3ConnectStmt struct {
	Location
	AccessID  string
	SecretKey string
	Region    string
}

// TransferDirection is the direction of an S3 transfer.
type TransferDirection uint8

// Transfer directions.
const (
	S3Pull TransferDirection = iota
	S3Push
)

// S3TransferStmt copies files between S3 and a local directory.
type S3TransferStmt struct {
	Location
	Direction TransferDirection
	URL       string
	LocalDir  string
}
