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
	"strconv"
	"strings"

	"github.com/ebay/akgraph/graph"
)

// Expr is an annotated expression.
type Expr interface {
	// Marker method to prevent other types from implementing Expr.
	anExpr()
	// Type returns the type the expression evaluates to.
	Type() EvaluatedType
	// Loc returns where the expression starts in the query text.
	Loc() Location
	// String returns a Cypher-like rendering of the expression.
	String() string
}

// Ensures that each of these implements the Expr interface.
var _ = []Expr{
	new(Literal),
	new(Symbol),
	new(Property),
	new(EntityTypes),
	new(Binary),
	new(Unary),
	new(FunctionInvocation),
	new(PathExpr),
}

func (*Literal) anExpr()            {}
func (*Symbol) anExpr()             {}
func (*Property) anExpr()           {}
func (*EntityTypes) anExpr()        {}
func (*Binary) anExpr()             {}
func (*Unary) anExpr()              {}
func (*FunctionInvocation) anExpr() {}
func (*PathExpr) anExpr()           {}

// Literal is a constant. Value is one of int64, float64, string, bool, or nil
// for the null literal.
type Literal struct {
	Location
	Value interface{}
}

// Type implements Expr.
func (l *Literal) Type() EvaluatedType {
	switch l.Value.(type) {
	case int64:
		return TypeInteger
	case float64:
		return TypeDouble
	case string:
		return TypeString
	case bool:
		return TypeBool
	case nil:
		return TypeNull
	}
	return TypeInvalid
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(l.Value)
}

// Symbol is a reference to a variable.
type Symbol struct {
	Location
	Decl *VarDecl
}

// Type implements Expr.
func (s *Symbol) Type() EvaluatedType {
	return s.Decl.Type
}

func (s *Symbol) String() string {
	return s.Decl.String()
}

// Property is a property lookup on a node or edge variable, such as n.age.
type Property struct {
	Location
	Decl     *VarDecl
	PropType graph.PropertyType
}

// Type implements Expr.
func (p *Property) Type() EvaluatedType {
	return ValueKindType(p.PropType.Kind)
}

func (p *Property) String() string {
	return p.Decl.String() + "." + p.PropType.Name
}

// ValueKindType returns the EvaluatedType of property values of the given
// kind. Unsigned values are exposed as integers.
func ValueKindType(k graph.ValueKind) EvaluatedType {
	switch k {
	case graph.ValueInt64, graph.ValueUInt64:
		return TypeInteger
	case graph.ValueFloat64:
		return TypeDouble
	case graph.ValueString:
		return TypeString
	case graph.ValueBool:
		return TypeBool
	}
	return TypeInvalid
}

// EntityTypes is a label test on a node variable, as in WHERE n:Person, or an
// edge type test on an edge variable, as in WHERE e:KNOWS.
type EntityTypes struct {
	Location
	Decl *VarDecl
	// Labels is set when Decl is a node variable.
	Labels graph.LabelSet
	// EdgeTypes is set when Decl is an edge variable.
	EdgeTypes []graph.EdgeTypeID
	// Names holds the label or edge type names, for display.
	Names []string
}

// Type implements Expr.
func (e *EntityTypes) Type() EvaluatedType {
	return TypeBool
}

func (e *EntityTypes) String() string {
	return e.Decl.String() + ":" + strings.Join(e.Names, ":")
}

// BinaryOp is the operator of a Binary expression.
type BinaryOp uint8

// Binary operators.
const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMult
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
)

var binaryOpStrings = map[BinaryOp]string{
	OpAdd:          "+",
	OpSub:          "-",
	OpMult:         "*",
	OpDiv:          "/",
	OpMod:          "%",
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpAnd:          "AND",
	OpOr:           "OR",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(op))
}

// ParseBinaryOp returns the operator for its string form, as returned by
// String.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, str := range binaryOpStrings {
		if strings.EqualFold(s, str) {
			return op, true
		}
	}
	return 0, false
}

// IsComparison returns true for the operators that compare two values.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// IsArithmetic returns true for +, -, *, / and %.
func (op BinaryOp) IsArithmetic() bool {
	return op >= OpAdd && op <= OpMod
}

// Binary is an expression with two operands.
type Binary struct {
	Location
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// Type implements Expr.
func (b *Binary) Type() EvaluatedType {
	if !b.Op.IsArithmetic() {
		return TypeBool
	}
	l, r := b.LHS.Type(), b.RHS.Type()
	switch {
	case b.Op == OpAdd && l == TypeString && r == TypeString:
		return TypeString
	case l == TypeInteger && r == TypeInteger:
		return TypeInteger
	case l.IsNumeric() && r.IsNumeric():
		return TypeDouble
	}
	return TypeInvalid
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%v %v %v)", b.LHS, b.Op, b.RHS)
}

// UnaryOp is the operator of a Unary expression.
type UnaryOp uint8

// Unary operators.
const (
	OpNot UnaryOp = iota + 1
	OpMinus
	OpIsNull
	OpIsNotNull
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "NOT"
	case OpMinus:
		return "-"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(op))
}

// Unary is an expression with one operand.
type Unary struct {
	Location
	Op      UnaryOp
	Operand Expr
}

// Type implements Expr.
func (u *Unary) Type() EvaluatedType {
	if u.Op == OpMinus {
		return u.Operand.Type()
	}
	return TypeBool
}

func (u *Unary) String() string {
	switch u.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("(%v %v)", u.Operand, u.Op)
	case OpMinus:
		return fmt.Sprintf("-%v", u.Operand)
	}
	return fmt.Sprintf("(%v %v)", u.Op, u.Operand)
}

// FunctionInvocation is a call to a built-in function. Args is empty for
// count(*).
type FunctionInvocation struct {
	Location
	Name string
	Args []Expr
	// Aggregate is true for functions that fold many rows into one value.
	Aggregate  bool
	ResultType EvaluatedType
}

// Type implements Expr.
func (f *FunctionInvocation) Type() EvaluatedType {
	return f.ResultType
}

func (f *FunctionInvocation) String() string {
	if len(f.Args) == 0 {
		return f.Name + "(*)"
	}
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// PathExpr is a pattern used as an expression. The planner doesn't support
// them; they're represented so that it can report a located error.
type PathExpr struct {
	Location
	Pattern *PatternElement
}

// Type implements Expr.
func (p *PathExpr) Type() EvaluatedType {
	return TypeBool
}

func (p *PathExpr) String() string {
	return p.Pattern.String()
}

// Conjuncts splits an expression on its top-level AND operators. It does no
// other boolean rewriting.
func Conjuncts(e Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == OpAnd {
		return append(Conjuncts(b.LHS), Conjuncts(b.RHS)...)
	}
	return []Expr{e}
}

// Walk calls fn for e and each of its sub-expressions, parents first. If fn
// returns false, Walk doesn't descend into that expression.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	switch x := e.(type) {
	case *Binary:
		Walk(x.LHS, fn)
		Walk(x.RHS, fn)
	case *Unary:
		Walk(x.Operand, fn)
	case *FunctionInvocation:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	}
}

// HasAggregate returns true if the expression contains an aggregate function
// invocation.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		if f, ok := x.(*FunctionInvocation); ok && f.Aggregate {
			found = true
		}
		return !found
	})
	return found
}
