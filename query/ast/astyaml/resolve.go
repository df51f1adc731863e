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

package astyaml

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// resolver turns the decoded YAML into an annotated query, collecting every
// problem it finds.
type resolver struct {
	md    graph.Metadata
	query *ast.Query
	errs  *multierror.Error
}

func (r *resolver) errorf(loc ast.Location, format string, args ...interface{}) {
	r.errs = multierror.Append(r.errs, fmt.Errorf("%v: %s", loc, fmt.Sprintf(format, args...)))
}

func (r *resolver) decls() *ast.DeclContext {
	return r.query.Decls
}

func (r *resolver) stmt(s *stmtYAML) ast.Stmt {
	loc := s.loc
	var res []ast.Stmt
	if s.Match != nil {
		res = append(res, r.match(loc, s.Match))
	}
	if s.Return != nil {
		res = append(res, r.ret(loc, s.Return))
	}
	if s.Create != nil {
		res = append(res, &ast.CreateStmt{Location: loc, Patterns: r.patterns(s.Create.Patterns, true)})
	}
	if s.Set != nil {
		res = append(res, r.set(loc, s.Set))
	}
	if s.Delete != nil {
		res = append(res, r.delete(loc, s.Delete))
	}
	if s.Call != nil {
		res = append(res, r.call(loc, s.Call))
	}
	if s.CreateGraph != "" {
		res = append(res, &ast.CreateGraphStmt{Location: loc, Name: s.CreateGraph})
	}
	if s.LoadGraph != nil {
		if s.LoadGraph.Name == "" || s.LoadGraph.Path == "" {
			r.errorf(loc, "loadGraph needs a name and a path")
		}
		res = append(res, &ast.LoadGraphStmt{Location: loc, Name: s.LoadGraph.Name, Path: s.LoadGraph.Path})
	}
	if s.ListGraphs {
		res = append(res, &ast.ListGraphStmt{Location: loc})
	}
	if s.S3Connect != nil {
		res = append(res, &ast.S3ConnectStmt{
			Location:  loc,
			AccessID:  s.S3Connect.AccessID,
			SecretKey: s.S3Connect.SecretKey,
			Region:    s.S3Connect.Region,
		})
	}
	if s.S3Transfer != nil {
		res = append(res, r.s3Transfer(loc, s.S3Transfer))
	}
	if len(res) != 1 {
		r.errorf(loc, "a statement needs exactly one clause, found %d", len(res))
		return nil
	}
	return res[0]
}

func (r *resolver) match(loc ast.Location, m *matchYAML) *ast.MatchStmt {
	if len(m.Patterns) == 0 {
		r.errorf(loc, "match needs at least one pattern")
	}
	res := &ast.MatchStmt{
		Location: loc,
		Patterns: r.patterns(m.Patterns, false),
	}
	if m.Where != nil {
		res.Where = r.expr(m.Where)
		if res.Where != nil && res.Where.Type() != ast.TypeBool {
			r.errorf(m.Where.loc, "where clause must be Bool, got %v", res.Where.Type())
		}
	}
	return res
}

func (r *resolver) patterns(in []patternYAML, create bool) []*ast.PatternElement {
	res := make([]*ast.PatternElement, 0, len(in))
	for _, p := range in {
		if elem := r.pattern(p, create); elem != nil {
			res = append(res, elem)
		}
	}
	return res
}

func (r *resolver) pattern(parts patternYAML, create bool) *ast.PatternElement {
	if len(parts) == 0 {
		r.errs = multierror.Append(r.errs, fmt.Errorf("empty pattern"))
		return nil
	}
	if len(parts)%2 == 0 {
		r.errorf(parts[0].loc, "a pattern must start and end with a node")
		return nil
	}
	origin := r.node(parts[0], create)
	if origin == nil {
		return nil
	}
	res := &ast.PatternElement{Location: parts[0].loc, Origin: origin}
	for i := 1; i < len(parts); i += 2 {
		edge := r.edge(parts[i], create)
		target := r.node(parts[i+1], create)
		if edge == nil || target == nil {
			return nil
		}
		res.Chain = append(res.Chain, ast.PatternLink{Edge: edge, Target: target})
	}
	return res
}

// entityVar returns the variable for a pattern entity, declaring it if
// needed.
func (r *resolver) entityVar(loc ast.Location, name string, kind ast.VarKind) *ast.VarDecl {
	if name != "" {
		if d := r.decls().Lookup(name); d != nil {
			if d.Kind != kind {
				r.errorf(loc, "%s is a %v variable, not a %v", name, d.Kind, kind)
			}
			return d
		}
	}
	return r.decls().Declare(name, kind)
}

func (r *resolver) node(p *partYAML, create bool) *ast.NodePattern {
	e := p.Node
	if e == nil || p.Edge != nil {
		r.errorf(p.loc, "expected a node")
		return nil
	}
	if len(e.Types) > 0 || e.Dir != "" {
		r.errorf(p.loc, "nodes can't have edge types or a direction")
	}
	res := &ast.NodePattern{
		Location:   p.loc,
		Decl:       r.entityVar(p.loc, e.Var, ast.VarNode),
		LabelNames: e.Labels,
		Props:      r.props(p.loc, e.Props, create),
	}
	if !create {
		res.Labels = r.labels(p.loc, e.Labels)
	}
	return res
}

func (r *resolver) edge(p *partYAML, create bool) *ast.EdgePattern {
	e := p.Edge
	if e == nil || p.Node != nil {
		r.errorf(p.loc, "expected an edge")
		return nil
	}
	if len(e.Labels) > 0 {
		r.errorf(p.loc, "edges can't have labels")
	}
	res := &ast.EdgePattern{
		Location:  p.loc,
		Decl:      r.entityVar(p.loc, e.Var, ast.VarEdge),
		TypeNames: e.Types,
		Props:     r.props(p.loc, e.Props, create),
	}
	switch strings.ToLower(e.Dir) {
	case "", "out":
		res.Direction = ast.DirOut
	case "in":
		res.Direction = ast.DirIn
	case "any":
		res.Direction = ast.DirAny
	default:
		r.errorf(p.loc, "invalid edge direction %q", e.Dir)
	}
	if !create {
		res.Types = r.edgeTypes(p.loc, e.Types)
	}
	return res
}

func (r *resolver) labels(loc ast.Location, names []string) graph.LabelSet {
	known := r.md.Labels()
	ids := make([]graph.LabelID, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			r.errorf(loc, "unknown label %q", name)
			continue
		}
		ids = append(ids, id)
	}
	return graph.NewLabelSet(ids...)
}

func (r *resolver) edgeTypes(loc ast.Location, names []string) []graph.EdgeTypeID {
	known := r.md.EdgeTypes()
	var ids []graph.EdgeTypeID
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			r.errorf(loc, "unknown edge type %q", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *resolver) props(loc ast.Location, props map[string]*exprYAML, create bool) []ast.PropConstraint {
	if len(props) == 0 {
		return nil
	}
	known := r.md.PropTypes()
	res := make([]ast.PropConstraint, 0, len(props))
	for _, name := range sortedKeys(props) {
		c := ast.PropConstraint{
			Location: loc,
			PropType: graph.PropertyType{Name: name},
			Value:    r.expr(props[name]),
		}
		if !create {
			pt, ok := known[name]
			if !ok {
				r.errorf(loc, "unknown property %q", name)
				continue
			}
			c.PropType = pt
		}
		if c.Value != nil {
			res = append(res, c)
		}
	}
	return res
}

func (r *resolver) ret(loc ast.Location, in *returnYAML) *ast.ReturnStmt {
	res := &ast.ReturnStmt{Location: loc, Distinct: in.Distinct}
	if len(in.Items) == 0 {
		r.errorf(loc, "return needs at least one item")
	}
	for _, item := range in.Items {
		if item.Expr == nil {
			r.errorf(loc, "return item has no expression")
			continue
		}
		expr := r.expr(item.Expr)
		if expr == nil {
			continue
		}
		out := &ast.ReturnItem{Expr: expr, Name: item.As}
		if out.Name == "" {
			out.Name = expr.String()
		}
		if sym, ok := expr.(*ast.Symbol); ok && item.As == "" {
			out.Decl = sym.Decl
		} else {
			if item.As != "" && r.decls().Lookup(item.As) != nil {
				r.errorf(item.Expr.loc, "variable %q is already declared", item.As)
			}
			out.Decl = r.decls().Declare(item.As, ast.VarValue)
			out.Decl.Type = expr.Type()
		}
		res.Items = append(res.Items, out)
	}
	for _, s := range in.OrderBy {
		if expr := r.expr(s.Expr); expr != nil {
			res.OrderBy = append(res.OrderBy, &ast.SortItem{Expr: expr, Descending: s.Desc})
		}
	}
	res.Skip = r.expr(in.Skip)
	res.Limit = r.expr(in.Limit)
	return res
}

// propRef resolves a "var.prop" reference.
func (r *resolver) propRef(loc ast.Location, ref string) (*ast.VarDecl, string, bool) {
	varName, prop, ok := strings.Cut(ref, ".")
	if !ok || varName == "" || prop == "" {
		r.errorf(loc, "invalid property reference %q", ref)
		return nil, "", false
	}
	d := r.decls().Lookup(varName)
	if d == nil {
		r.errorf(loc, "unknown variable %q", varName)
		return nil, "", false
	}
	if d.Kind == ast.VarValue {
		r.errorf(loc, "%s is not a node or edge variable", varName)
		return nil, "", false
	}
	return d, prop, true
}

func (r *resolver) set(loc ast.Location, items []*setYAML) *ast.SetStmt {
	res := &ast.SetStmt{Location: loc}
	for _, item := range items {
		d, prop, ok := r.propRef(item.loc, item.Prop)
		if !ok {
			continue
		}
		if item.Value == nil {
			r.errorf(item.loc, "set item has no value")
			continue
		}
		value := r.expr(item.Value)
		if value == nil {
			continue
		}
		res.Items = append(res.Items, &ast.SetItem{Location: item.loc, Decl: d, Prop: prop, Value: value})
	}
	return res
}

func (r *resolver) delete(loc ast.Location, names []string) *ast.DeleteStmt {
	res := &ast.DeleteStmt{Location: loc}
	for _, name := range names {
		d := r.decls().Lookup(name)
		switch {
		case d == nil:
			r.errorf(loc, "unknown variable %q", name)
		case d.Kind == ast.VarValue:
			r.errorf(loc, "can't delete %s: not a node or edge", name)
		default:
			res.Targets = append(res.Targets, d)
		}
	}
	return res
}

func (r *resolver) call(loc ast.Location, in *callYAML) *ast.CallStmt {
	proc := ast.LookupProcedure(in.Procedure)
	if proc == nil {
		r.errorf(loc, "unknown procedure %q", in.Procedure)
		return &ast.CallStmt{Location: loc, Procedure: in.Procedure}
	}
	res := &ast.CallStmt{Location: loc, Procedure: proc.Name}
	for _, y := range in.Yield {
		idx := proc.Column(y.Field)
		if idx < 0 {
			r.errorf(loc, "procedure %s has no field %q", proc.Name, y.Field)
			continue
		}
		name := y.As
		if name == "" {
			name = y.Field
		}
		d := r.decls().Declare(name, ast.VarValue)
		d.Type = proc.Columns[idx].Type
		res.Yield = append(res.Yield, &ast.YieldItem{Field: y.Field, Decl: d})
	}
	return res
}

func (r *resolver) s3Transfer(loc ast.Location, in *s3TransferYAML) *ast.S3TransferStmt {
	res := &ast.S3TransferStmt{Location: loc, URL: in.URL, LocalDir: in.LocalDir}
	switch strings.ToLower(in.Direction) {
	case "pull":
		res.Direction = ast.S3Pull
	case "push":
		res.Direction = ast.S3Push
	default:
		r.errorf(loc, "invalid transfer direction %q", in.Direction)
	}
	return res
}

// expr resolves an expression. It returns nil if e is nil or if the expression
// has errors, which have been recorded.
func (r *resolver) expr(e *exprYAML) ast.Expr {
	if e == nil {
		return nil
	}
	var set []string
	for name, isSet := range map[string]bool{
		"lit":  e.Lit.Kind != 0,
		"var":  e.Var != "",
		"prop": e.Prop != "",
		"is":   e.Is != nil,
		"op":   e.Op != "",
		"func": e.Func != "",
		"path": e.Path != nil,
	} {
		if isSet {
			set = append(set, name)
		}
	}
	if len(set) != 1 {
		sort.Strings(set)
		r.errorf(e.loc, "an expression needs exactly one of lit, var, prop, is, op, func, or path; found %v", set)
		return nil
	}
	loc := e.loc
	switch {
	case e.Lit.Kind != 0:
		return r.literal(loc, &e.Lit)
	case e.Var != "":
		d := r.decls().Lookup(e.Var)
		if d == nil {
			r.errorf(loc, "unknown variable %q", e.Var)
			return nil
		}
		return &ast.Symbol{Location: loc, Decl: d}
	case e.Prop != "":
		return r.property(loc, e.Prop)
	case e.Is != nil:
		return r.entityTypes(loc, e.Is)
	case e.Op != "":
		if e.Arg != nil {
			return r.unary(loc, e)
		}
		return r.binary(loc, e)
	case e.Func != "":
		return r.function(loc, e)
	default:
		pattern := r.pattern(*e.Path, false)
		if pattern == nil {
			return nil
		}
		return &ast.PathExpr{Location: loc, Pattern: pattern}
	}
}

func (r *resolver) literal(loc ast.Location, n *yaml.Node) ast.Expr {
	if n.Kind != yaml.ScalarNode {
		r.errorf(loc, "literal must be a scalar")
		return nil
	}
	res := &ast.Literal{Location: loc}
	var err error
	switch n.ShortTag() {
	case "!!null":
		return res
	case "!!int":
		var v int64
		err = n.Decode(&v)
		res.Value = v
	case "!!float":
		var v float64
		err = n.Decode(&v)
		res.Value = v
	case "!!bool":
		var v bool
		err = n.Decode(&v)
		res.Value = v
	case "!!str":
		res.Value = n.Value
	default:
		r.errorf(loc, "unsupported literal %v", n.Value)
		return nil
	}
	if err != nil {
		r.errorf(loc, "invalid literal %v: %v", n.Value, err)
		return nil
	}
	return res
}

func (r *resolver) property(loc ast.Location, ref string) ast.Expr {
	d, name, ok := r.propRef(loc, ref)
	if !ok {
		return nil
	}
	pt, ok := r.md.PropTypes()[name]
	if !ok {
		r.errorf(loc, "unknown property %q", name)
		return nil
	}
	return &ast.Property{Location: loc, Decl: d, PropType: pt}
}

func (r *resolver) entityTypes(loc ast.Location, in *isYAML) ast.Expr {
	d := r.decls().Lookup(in.Var)
	if d == nil {
		r.errorf(loc, "unknown variable %q", in.Var)
		return nil
	}
	if len(in.Types) == 0 {
		r.errorf(loc, "type test on %s needs at least one label or edge type", in.Var)
		return nil
	}
	res := &ast.EntityTypes{Location: loc, Decl: d, Names: in.Types}
	switch d.Kind {
	case ast.VarNode:
		res.Labels = r.labels(loc, in.Types)
	case ast.VarEdge:
		res.EdgeTypes = r.edgeTypes(loc, in.Types)
	default:
		r.errorf(loc, "%s is not a node or edge variable", in.Var)
		return nil
	}
	return res
}

var unaryOps = map[string]ast.UnaryOp{
	"NOT":         ast.OpNot,
	"-":           ast.OpMinus,
	"IS NULL":     ast.OpIsNull,
	"IS NOT NULL": ast.OpIsNotNull,
}

func (r *resolver) unary(loc ast.Location, e *exprYAML) ast.Expr {
	op, ok := unaryOps[strings.ToUpper(e.Op)]
	if !ok {
		r.errorf(loc, "unknown unary operator %q", e.Op)
		return nil
	}
	if e.LHS != nil || e.RHS != nil {
		r.errorf(loc, "unary operator %v takes only arg", op)
		return nil
	}
	operand := r.expr(e.Arg)
	if operand == nil {
		return nil
	}
	t := operand.Type()
	switch {
	case op == ast.OpNot && t != ast.TypeBool && t != ast.TypeNull:
		r.errorf(loc, "NOT needs a Bool operand, got %v", t)
		return nil
	case op == ast.OpMinus && !t.IsNumeric():
		r.errorf(loc, "- needs a numeric operand, got %v", t)
		return nil
	}
	return &ast.Unary{Location: loc, Op: op, Operand: operand}
}

func (r *resolver) binary(loc ast.Location, e *exprYAML) ast.Expr {
	op, ok := ast.ParseBinaryOp(e.Op)
	if !ok {
		r.errorf(loc, "unknown operator %q", e.Op)
		return nil
	}
	if e.LHS == nil || e.RHS == nil {
		r.errorf(loc, "operator %v needs lhs and rhs", op)
		return nil
	}
	lhs, rhs := r.expr(e.LHS), r.expr(e.RHS)
	if lhs == nil || rhs == nil {
		return nil
	}
	res := &ast.Binary{Location: loc, Op: op, LHS: lhs, RHS: rhs}
	lt, rt := lhs.Type(), rhs.Type()
	switch {
	case op.IsArithmetic():
		if res.Type() == ast.TypeInvalid {
			r.errorf(loc, "invalid operand types for %v: %v and %v", op, lt, rt)
			return nil
		}
	case op.IsComparison():
		if !canCompare(lt, rt) {
			r.errorf(loc, "can't compare %v with %v", lt, rt)
			return nil
		}
	default:
		if !boolish(lt) || !boolish(rt) {
			r.errorf(loc, "%v needs Bool operands, got %v and %v", op, lt, rt)
			return nil
		}
	}
	return res
}

func canCompare(a, b ast.EvaluatedType) bool {
	return a == b || (a.IsNumeric() && b.IsNumeric()) || a == ast.TypeNull || b == ast.TypeNull
}

func boolish(t ast.EvaluatedType) bool {
	return t == ast.TypeBool || t == ast.TypeNull
}

func (r *resolver) function(loc ast.Location, e *exprYAML) ast.Expr {
	args := make([]ast.Expr, 0, len(e.Args))
	types := make([]ast.EvaluatedType, 0, len(e.Args))
	for _, a := range e.Args {
		arg := r.expr(a)
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		types = append(types, arg.Type())
	}
	sig, err := ast.ResolveFunction(e.Func, types)
	if err != nil {
		r.errorf(loc, "%v", err)
		return nil
	}
	return &ast.FunctionInvocation{
		Location:   loc,
		Name:       sig.Name,
		Args:       args,
		Aggregate:  sig.Aggregate,
		ResultType: sig.Result,
	}
}
