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

package plangraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/util/cmp"
)

// Opcode identifies the kind of a plan node's operator.
type Opcode uint8

// Opcodes of the plan operators.
const (
	OpInvalid Opcode = iota
	OpVar
	OpScanNodes
	OpScanNodesByLabel
	OpNodeFilter
	OpEdgeFilter
	OpGetOutEdges
	OpGetInEdges
	OpGetEdges
	OpGetEdgeTarget
	OpGetProperty
	OpGetPropertyWithNull
	OpGetEntityType
	OpJoin
	OpCartesianProduct
	OpMaterialize
	OpFuncEval
	OpAggregateEval
	OpOrderBy
	OpSkip
	OpLimit
	OpProduceResults
	OpWrite
	OpProcedureEval
	OpCreateGraph
	OpLoadGraph
	OpListGraph
	OpS3Connect
	OpS3Transfer
)

var opcodeNames = [...]string{
	OpInvalid:             "Invalid",
	OpVar:                 "Var",
	OpScanNodes:           "ScanNodes",
	OpScanNodesByLabel:    "ScanNodesByLabel",
	OpNodeFilter:          "NodeFilter",
	OpEdgeFilter:          "EdgeFilter",
	OpGetOutEdges:         "GetOutEdges",
	OpGetInEdges:          "GetInEdges",
	OpGetEdges:            "GetEdges",
	OpGetEdgeTarget:       "GetEdgeTarget",
	OpGetProperty:         "GetProperty",
	OpGetPropertyWithNull: "GetPropertyWithNull",
	OpGetEntityType:       "GetEntityType",
	OpJoin:                "Join",
	OpCartesianProduct:    "CartesianProduct",
	OpMaterialize:         "Materialize",
	OpFuncEval:            "FuncEval",
	OpAggregateEval:       "AggregateEval",
	OpOrderBy:             "OrderBy",
	OpSkip:                "Skip",
	OpLimit:               "Limit",
	OpProduceResults:      "ProduceResults",
	OpWrite:               "Write",
	OpProcedureEval:       "ProcedureEval",
	OpCreateGraph:         "CreateGraph",
	OpLoadGraph:           "LoadGraph",
	OpListGraph:           "ListGraph",
	OpS3Connect:           "S3Connect",
	OpS3Transfer:          "S3Transfer",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Operator is the payload of a plan node. Each concrete type corresponds to
// one Opcode, except Filter, which is a node or an edge filter depending on
// its variable.
type Operator interface {
	String() string
	cmp.Key
	Opcode() Opcode
	anOperator()
}

// ImplementOperator is a list of types that implement Operator.
// This serves as documentation and as a compile-time check.
var ImplementOperator = []Operator{
	new(Var),
	new(ScanNodes),
	new(ScanNodesByLabel),
	new(Filter),
	new(GetOutEdges),
	new(GetInEdges),
	new(GetEdges),
	new(GetEdgeTarget),
	new(GetProperty),
	new(GetPropertyWithNull),
	new(GetEntityType),
	new(Join),
	new(CartesianProduct),
	new(Materialize),
	new(FuncEval),
	new(AggregateEval),
	new(OrderBy),
	new(Skip),
	new(Limit),
	new(ProduceResults),
	new(Write),
	new(ProcedureEval),
	new(CreateGraph),
	new(LoadGraph),
	new(ListGraph),
	new(S3Connect),
	new(S3Transfer),
}

// IsTerminal returns true for operators that are allowed to end a plan: they
// deliver results or have side effects. Nodes of other operators that have no
// outputs are dead.
func IsTerminal(op Operator) bool {
	switch op.(type) {
	case *ProduceResults, *Write, *ProcedureEval,
		*CreateGraph, *LoadGraph, *ListGraph, *S3Connect, *S3Transfer:
		return true
	}
	return false
}

// Var binds a pattern variable to the entity stream flowing into it.
type Var struct {
	Decl *ast.VarDecl
	// Order is the declaration order of the variable within its pattern
	// element, used to find the most recently bound dependency of a
	// predicate.
	Order int
}

func (*Var) anOperator() {}

// Opcode implements Operator.
func (*Var) Opcode() Opcode { return OpVar }

func (op *Var) String() string {
	return fmt.Sprintf("Var %v order=%d", op.Decl, op.Order)
}

// Key implements cmp.Key.
func (op *Var) Key(b *strings.Builder) {
	b.WriteString("Var ")
	writeDecl(b, op.Decl)
}

// ScanNodes produces every node of the graph.
type ScanNodes struct{}

func (*ScanNodes) anOperator() {}

// Opcode implements Operator.
func (*ScanNodes) Opcode() Opcode { return OpScanNodes }

func (op *ScanNodes) String() string { return "ScanNodes" }

// Key implements cmp.Key.
func (op *ScanNodes) Key(b *strings.Builder) { b.WriteString("ScanNodes") }

// ScanNodesByLabel produces the nodes that have all the given labels. The
// optimizer creates it from a ScanNodes followed by a label-only filter.
type ScanNodesByLabel struct {
	Labels graph.LabelSet
	Names  []string
}

func (*ScanNodesByLabel) anOperator() {}

// Opcode implements Operator.
func (*ScanNodesByLabel) Opcode() Opcode { return OpScanNodesByLabel }

func (op *ScanNodesByLabel) String() string {
	return "ScanNodesByLabel " + strings.Join(op.Names, ":")
}

// Key implements cmp.Key.
func (op *ScanNodesByLabel) Key(b *strings.Builder) {
	b.WriteString("ScanNodesByLabel ")
	b.WriteString(op.Labels.Key())
}

// Filter holds the constraints on one pattern variable: labels for a node,
// an edge type for an edge, and predicates. It's placed just before the
// variable's Var node.
type Filter struct {
	Decl       *ast.VarDecl
	Labels     graph.LabelSet
	LabelNames []string
	// EdgeTypes has at most one entry.
	EdgeTypes  []graph.EdgeTypeID
	TypeNames  []string
	Predicates []*Predicate
}

func (*Filter) anOperator() {}

// Opcode implements Operator.
func (op *Filter) Opcode() Opcode {
	if op.Decl != nil && op.Decl.Kind == ast.VarEdge {
		return OpEdgeFilter
	}
	return OpNodeFilter
}

// IsEmpty returns true if the filter has no constraints, in which case it
// passes every row through.
func (op *Filter) IsEmpty() bool {
	return len(op.Labels) == 0 && len(op.EdgeTypes) == 0 && len(op.Predicates) == 0
}

// AddLabels adds label constraints, given as IDs and as names for display.
// Labels already required are ignored.
func (op *Filter) AddLabels(labels graph.LabelSet, names []string) {
	if len(labels) == 0 {
		return
	}
	all := make([]graph.LabelID, 0, len(op.Labels)+len(labels))
	all = append(append(all, op.Labels...), labels...)
	op.Labels = graph.NewLabelSet(all...)
	for _, name := range names {
		known := false
		for _, have := range op.LabelNames {
			known = known || have == name
		}
		if !known {
			op.LabelNames = append(op.LabelNames, name)
		}
	}
}

// AddEdgeType adds an edge type constraint.
func (op *Filter) AddEdgeType(id graph.EdgeTypeID, name string) {
	for _, t := range op.EdgeTypes {
		if t == id {
			return
		}
	}
	op.EdgeTypes = append(op.EdgeTypes, id)
	op.TypeNames = append(op.TypeNames, name)
}

// AddPredicate attaches a predicate to the filter.
func (op *Filter) AddPredicate(p *Predicate) {
	op.Predicates = append(op.Predicates, p)
}

// RemovePredicate detaches a predicate from the filter, if present.
func (op *Filter) RemovePredicate(p *Predicate) {
	for i, x := range op.Predicates {
		if x == p {
			op.Predicates = append(op.Predicates[:i:i], op.Predicates[i+1:]...)
			return
		}
	}
}

func (op *Filter) String() string {
	var b strings.Builder
	b.WriteString(op.Opcode().String())
	b.WriteByte(' ')
	b.WriteString(op.Decl.String())
	for _, name := range op.LabelNames {
		b.WriteByte(':')
		b.WriteString(name)
	}
	for _, name := range op.TypeNames {
		b.WriteByte(':')
		b.WriteString(name)
	}
	for _, p := range op.Predicates {
		b.WriteString(" where ")
		b.WriteString(p.Expr.String())
	}
	return b.String()
}

// Key implements cmp.Key.
func (op *Filter) Key(b *strings.Builder) {
	b.WriteString(op.Opcode().String())
	b.WriteByte(' ')
	writeDecl(b, op.Decl)
	b.WriteString(" labels=")
	b.WriteString(op.Labels.Key())
	b.WriteString(" types=")
	for i, t := range op.EdgeTypes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	}
	for _, p := range op.Predicates {
		b.WriteByte(' ')
		b.WriteString(p.Expr.String())
	}
}

// GetOutEdges expands each node of the incoming stream to its outgoing edges.
type GetOutEdges struct{}

// GetInEdges expands each node of the incoming stream to its incoming edges.
type GetInEdges struct{}

// GetEdges expands each node of the incoming stream to all its edges.
type GetEdges struct{}

// GetEdgeTarget turns an edge stream back into a node stream of the nodes at
// the other end of each edge.
type GetEdgeTarget struct{}

func (*GetOutEdges) anOperator()   {}
func (*GetInEdges) anOperator()    {}
func (*GetEdges) anOperator()      {}
func (*GetEdgeTarget) anOperator() {}

// Opcode implements Operator.
func (*GetOutEdges) Opcode() Opcode { return OpGetOutEdges }

// Opcode implements Operator.
func (*GetInEdges) Opcode() Opcode { return OpGetInEdges }

// Opcode implements Operator.
func (*GetEdges) Opcode() Opcode { return OpGetEdges }

// Opcode implements Operator.
func (*GetEdgeTarget) Opcode() Opcode { return OpGetEdgeTarget }

func (op *GetOutEdges) String() string   { return "GetOutEdges" }
func (op *GetInEdges) String() string    { return "GetInEdges" }
func (op *GetEdges) String() string      { return "GetEdges" }
func (op *GetEdgeTarget) String() string { return "GetEdgeTarget" }

// Key implements cmp.Key.
func (op *GetOutEdges) Key(b *strings.Builder) { b.WriteString("GetOutEdges") }

// Key implements cmp.Key.
func (op *GetInEdges) Key(b *strings.Builder) { b.WriteString("GetInEdges") }

// Key implements cmp.Key.
func (op *GetEdges) Key(b *strings.Builder) { b.WriteString("GetEdges") }

// Key implements cmp.Key.
func (op *GetEdgeTarget) Key(b *strings.Builder) { b.WriteString("GetEdgeTarget") }

// GetProperty fetches a property of the entity in the incoming stream and
// drops the rows where the entity doesn't have it.
type GetProperty struct {
	Decl     *ast.VarDecl
	PropType graph.PropertyType
}

func (*GetProperty) anOperator() {}

// Opcode implements Operator.
func (*GetProperty) Opcode() Opcode { return OpGetProperty }

func (op *GetProperty) String() string {
	return fmt.Sprintf("GetProperty %v.%s", op.Decl, op.PropType.Name)
}

// Key implements cmp.Key.
func (op *GetProperty) Key(b *strings.Builder) {
	b.WriteString("GetProperty ")
	writeDecl(b, op.Decl)
	fmt.Fprintf(b, ".%d", op.PropType.ID)
}

// GetPropertyWithNull fetches a property of a variable's entities, producing
// null where the entity doesn't have it. Rows are never dropped.
type GetPropertyWithNull struct {
	Decl     *ast.VarDecl
	PropType graph.PropertyType
}

func (*GetPropertyWithNull) anOperator() {}

// Opcode implements Operator.
func (*GetPropertyWithNull) Opcode() Opcode { return OpGetPropertyWithNull }

func (op *GetPropertyWithNull) String() string {
	return fmt.Sprintf("GetPropertyWithNull %v.%s", op.Decl, op.PropType.Name)
}

// Key implements cmp.Key.
func (op *GetPropertyWithNull) Key(b *strings.Builder) {
	b.WriteString("GetPropertyWithNull ")
	writeDecl(b, op.Decl)
	fmt.Fprintf(b, ".%d", op.PropType.ID)
}

// GetEntityType fetches the label set of a node variable or the edge type of
// an edge variable.
type GetEntityType struct {
	Decl *ast.VarDecl
}

func (*GetEntityType) anOperator() {}

// Opcode implements Operator.
func (*GetEntityType) Opcode() Opcode { return OpGetEntityType }

func (op *GetEntityType) String() string {
	return fmt.Sprintf("GetEntityType %v", op.Decl)
}

// Key implements cmp.Key.
func (op *GetEntityType) Key(b *strings.Builder) {
	b.WriteString("GetEntityType ")
	writeDecl(b, op.Decl)
}

// JoinKind says how a Join matches the rows of its two inputs.
type JoinKind uint8

// Kinds of joins.
const (
	// JoinOnAncestor joins two branches that split from a common ancestor
	// variable. Rows match when they agree on the columns both branches
	// inherited, which include the ancestor's column.
	JoinOnAncestor JoinKind = iota + 1
	// JoinOnTarget joins two entity streams that reach the same variable.
	// Rows match when they lead to the same entity, and agree on any
	// columns both branches inherited.
	JoinOnTarget
)

func (k JoinKind) String() string {
	switch k {
	case JoinOnAncestor:
		return "ancestor"
	case JoinOnTarget:
		return "target"
	}
	return fmt.Sprintf("JoinKind(%d)", uint8(k))
}

// Join is a hash join of its two inputs. The first input is the left side.
type Join struct {
	Kind JoinKind
	// Ancestor is the common ancestor variable for JoinOnAncestor.
	Ancestor *ast.VarDecl
}

func (*Join) anOperator() {}

// Opcode implements Operator.
func (*Join) Opcode() Opcode { return OpJoin }

func (op *Join) String() string {
	if op.Ancestor != nil {
		return fmt.Sprintf("Join on %v %v", op.Kind, op.Ancestor)
	}
	return fmt.Sprintf("Join on %v", op.Kind)
}

// Key implements cmp.Key.
func (op *Join) Key(b *strings.Builder) {
	b.WriteString("Join ")
	b.WriteString(op.Kind.String())
	if op.Ancestor != nil {
		b.WriteByte(' ')
		writeDecl(b, op.Ancestor)
	}
}

// CartesianProduct combines every row of its first input with every row of
// its second input.
type CartesianProduct struct{}

func (*CartesianProduct) anOperator() {}

// Opcode implements Operator.
func (*CartesianProduct) Opcode() Opcode { return OpCartesianProduct }

func (op *CartesianProduct) String() string { return "CartesianProduct" }

// Key implements cmp.Key.
func (op *CartesianProduct) Key(b *strings.Builder) { b.WriteString("CartesianProduct") }

// Materialize pins the rows of the incoming stream into a rectangular
// dataframe. The planner inserts one where a predicate reads a variable bound
// earlier on the same branch.
type Materialize struct{}

func (*Materialize) anOperator() {}

// Opcode implements Operator.
func (*Materialize) Opcode() Opcode { return OpMaterialize }

func (op *Materialize) String() string { return "Materialize" }

// Key implements cmp.Key.
func (op *Materialize) Key(b *strings.Builder) { b.WriteString("Materialize") }

// FuncEval evaluates non-aggregate function invocations for each row.
type FuncEval struct {
	Funcs []*ast.FunctionInvocation
}

func (*FuncEval) anOperator() {}

// Opcode implements Operator.
func (*FuncEval) Opcode() Opcode { return OpFuncEval }

func (op *FuncEval) String() string {
	return "FuncEval " + joinExprs(funcExprs(op.Funcs))
}

// Key implements cmp.Key.
func (op *FuncEval) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// AggregateEval folds its input into one row per group.
type AggregateEval struct {
	Aggregates []*ast.FunctionInvocation
	// GroupBy holds the grouping keys, each a Symbol or a Property. Empty
	// means all the rows form one group.
	GroupBy []ast.Expr
}

func (*AggregateEval) anOperator() {}

// Opcode implements Operator.
func (*AggregateEval) Opcode() Opcode { return OpAggregateEval }

func (op *AggregateEval) String() string {
	s := "AggregateEval " + joinExprs(funcExprs(op.Aggregates))
	if len(op.GroupBy) > 0 {
		s += " by " + joinExprs(op.GroupBy)
	}
	return s
}

// Key implements cmp.Key.
func (op *AggregateEval) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// OrderBy sorts its whole input.
type OrderBy struct {
	Items []*ast.SortItem
}

func (*OrderBy) anOperator() {}

// Opcode implements Operator.
func (*OrderBy) Opcode() Opcode { return OpOrderBy }

func (op *OrderBy) String() string {
	var b strings.Builder
	b.WriteString("OrderBy")
	for _, item := range op.Items {
		b.WriteByte(' ')
		if item.Descending {
			fmt.Fprintf(&b, "DESC(%v)", item.Expr)
		} else {
			fmt.Fprintf(&b, "ASC(%v)", item.Expr)
		}
	}
	return b.String()
}

// Key implements cmp.Key.
func (op *OrderBy) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// Skip drops the first Count rows.
type Skip struct {
	Count uint64
}

// Limit passes at most Count rows.
type Limit struct {
	Count uint64
}

func (*Skip) anOperator()  {}
func (*Limit) anOperator() {}

// Opcode implements Operator.
func (*Skip) Opcode() Opcode { return OpSkip }

// Opcode implements Operator.
func (*Limit) Opcode() Opcode { return OpLimit }

func (op *Skip) String() string  { return fmt.Sprintf("Skip %d", op.Count) }
func (op *Limit) String() string { return fmt.Sprintf("Limit %d", op.Count) }

// Key implements cmp.Key.
func (op *Skip) Key(b *strings.Builder) { b.WriteString(op.String()) }

// Key implements cmp.Key.
func (op *Limit) Key(b *strings.Builder) { b.WriteString(op.String()) }

// ProduceResults projects the return items and hands each batch to the
// caller.
type ProduceResults struct {
	Items []*ast.ReturnItem
}

func (*ProduceResults) anOperator() {}

// Opcode implements Operator.
func (*ProduceResults) Opcode() Opcode { return OpProduceResults }

func (op *ProduceResults) String() string {
	if len(op.Items) == 0 {
		return "ProduceResults"
	}
	exprs := make([]string, len(op.Items))
	for i, item := range op.Items {
		exprs[i] = item.Expr.String()
		if item.Name != "" && item.Name != exprs[i] {
			exprs[i] += " AS " + item.Name
		}
	}
	return "ProduceResults " + strings.Join(exprs, ", ")
}

// Key implements cmp.Key.
func (op *ProduceResults) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// PendingNode is a node that a Write creates.
type PendingNode struct {
	Decl   *ast.VarDecl
	Labels []string
	Props  []ast.PropConstraint
}

// PendingEdge is an edge that a Write creates. Src and Tgt are either bound
// node variables or pending nodes of the same Write.
type PendingEdge struct {
	Decl  *ast.VarDecl
	Src   *ast.VarDecl
	Tgt   *ast.VarDecl
	Type  string
	Props []ast.PropConstraint
}

// Write applies the changes of CREATE, SET, and DELETE statements once per
// incoming row, or once if it has no input.
type Write struct {
	Nodes       []*PendingNode
	Edges       []*PendingEdge
	Sets        []*ast.SetItem
	DeleteNodes []*ast.VarDecl
	DeleteEdges []*ast.VarDecl
}

func (*Write) anOperator() {}

// Opcode implements Operator.
func (*Write) Opcode() Opcode { return OpWrite }

// IsPending returns true if the variable is created by this Write.
func (op *Write) IsPending(decl *ast.VarDecl) bool {
	for _, n := range op.Nodes {
		if n.Decl == decl {
			return true
		}
	}
	for _, e := range op.Edges {
		if e.Decl == decl {
			return true
		}
	}
	return false
}

func (op *Write) String() string {
	var b strings.Builder
	b.WriteString("Write")
	for _, n := range op.Nodes {
		fmt.Fprintf(&b, " +(%v", n.Decl)
		for _, l := range n.Labels {
			b.WriteByte(':')
			b.WriteString(l)
		}
		b.WriteByte(')')
	}
	for _, e := range op.Edges {
		fmt.Fprintf(&b, " +(%v)-[%v:%s]->(%v)", e.Src, e.Decl, e.Type, e.Tgt)
	}
	for _, s := range op.Sets {
		fmt.Fprintf(&b, " %v.%s=%v", s.Decl, s.Prop, s.Value)
	}
	for _, d := range op.DeleteNodes {
		fmt.Fprintf(&b, " -(%v)", d)
	}
	for _, d := range op.DeleteEdges {
		fmt.Fprintf(&b, " -[%v]", d)
	}
	return b.String()
}

// Key implements cmp.Key.
func (op *Write) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// ProcedureEval invokes a built-in procedure.
type ProcedureEval struct {
	Procedure *ast.Procedure
	Yield     []*ast.YieldItem
}

func (*ProcedureEval) anOperator() {}

// Opcode implements Operator.
func (*ProcedureEval) Opcode() Opcode { return OpProcedureEval }

func (op *ProcedureEval) String() string {
	var b strings.Builder
	b.WriteString("ProcedureEval ")
	b.WriteString(op.Procedure.Name)
	for i, y := range op.Yield {
		if i == 0 {
			b.WriteString(" yield ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(y.Field)
		if y.Decl.Name != y.Field {
			fmt.Fprintf(&b, " AS %v", y.Decl)
		}
	}
	return b.String()
}

// Key implements cmp.Key.
func (op *ProcedureEval) Key(b *strings.Builder) {
	b.WriteString(op.String())
}

// CreateGraph adds an empty graph to the catalog.
type CreateGraph struct {
	Name string
}

// LoadGraph loads a graph into the catalog from a dataset file.
type LoadGraph struct {
	Name string
	Path string
}

// ListGraph lists the graphs of the catalog.
type ListGraph struct{}

// S3Connect configures the credentials used by S3Transfer.
type S3Connect struct {
	AccessID  string
	SecretKey string
	Region    string
}

// S3Transfer copies a graph between S3 and a local directory.
type S3Transfer struct {
	Direction ast.TransferDirection
	URL       string
	LocalDir  string
}

func (*CreateGraph) anOperator() {}
func (*LoadGraph) anOperator()   {}
func (*ListGraph) anOperator()   {}
func (*S3Connect) anOperator()   {}
func (*S3Transfer) anOperator()  {}

// Opcode implements Operator.
func (*CreateGraph) Opcode() Opcode { return OpCreateGraph }

// Opcode implements Operator.
func (*LoadGraph) Opcode() Opcode { return OpLoadGraph }

// Opcode implements Operator.
func (*ListGraph) Opcode() Opcode { return OpListGraph }

// Opcode implements Operator.
func (*S3Connect) Opcode() Opcode { return OpS3Connect }

// Opcode implements Operator.
func (*S3Transfer) Opcode() Opcode { return OpS3Transfer }

func (op *CreateGraph) String() string { return "CreateGraph " + strconv.Quote(op.Name) }

func (op *LoadGraph) String() string {
	return fmt.Sprintf("LoadGraph %q from %q", op.Name, op.Path)
}

func (op *ListGraph) String() string { return "ListGraph" }

// String doesn't include the secret key, since plans get logged.
func (op *S3Connect) String() string {
	return fmt.Sprintf("S3Connect %s region=%s", op.AccessID, op.Region)
}

func (op *S3Transfer) String() string {
	if op.Direction == ast.S3Push {
		return fmt.Sprintf("S3Transfer push %q to %s", op.LocalDir, op.URL)
	}
	return fmt.Sprintf("S3Transfer pull %s to %q", op.URL, op.LocalDir)
}

// Key implements cmp.Key.
func (op *CreateGraph) Key(b *strings.Builder) { b.WriteString(op.String()) }

// Key implements cmp.Key.
func (op *LoadGraph) Key(b *strings.Builder) { b.WriteString(op.String()) }

// Key implements cmp.Key.
func (op *ListGraph) Key(b *strings.Builder) { b.WriteString(op.String()) }

// Key implements cmp.Key.
func (op *S3Connect) Key(b *strings.Builder) { b.WriteString(op.String()) }

// Key implements cmp.Key.
func (op *S3Transfer) Key(b *strings.Builder) { b.WriteString(op.String()) }

// writeDecl writes the variable's name and ID, so that two anonymous
// variables have distinct keys.
func writeDecl(b *strings.Builder, decl *ast.VarDecl) {
	if decl == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString(decl.String())
	if decl.Name != "" {
		fmt.Fprintf(b, "#%d", decl.ID)
	}
}

func funcExprs(funcs []*ast.FunctionInvocation) []ast.Expr {
	exprs := make([]ast.Expr, len(funcs))
	for i, f := range funcs {
		exprs[i] = f
	}
	return exprs
}

func joinExprs(exprs []ast.Expr) string {
	strs := make([]string, len(exprs))
	for i, e := range exprs {
		strs[i] = e.String()
	}
	return strings.Join(strs, ", ")
}
