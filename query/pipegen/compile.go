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
	"fmt"
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
)

var binaryOps = map[ast.BinaryOp]exprprog.Op{
	ast.OpAdd:          exprprog.OpAdd,
	ast.OpSub:          exprprog.OpSub,
	ast.OpMult:         exprprog.OpMul,
	ast.OpDiv:          exprprog.OpDiv,
	ast.OpMod:          exprprog.OpMod,
	ast.OpEqual:        exprprog.OpEqual,
	ast.OpNotEqual:     exprprog.OpNotEqual,
	ast.OpLess:         exprprog.OpLess,
	ast.OpLessEqual:    exprprog.OpLessEqual,
	ast.OpGreater:      exprprog.OpGreater,
	ast.OpGreaterEqual: exprprog.OpGreaterEqual,
	ast.OpAnd:          exprprog.OpAnd,
	ast.OpOr:           exprprog.OpOr,
}

var unaryOps = map[ast.UnaryOp]exprprog.Op{
	ast.OpNot:       exprprog.OpNot,
	ast.OpMinus:     exprprog.OpNeg,
	ast.OpIsNull:    exprprog.OpIsNull,
	ast.OpIsNotNull: exprprog.OpIsNotNull,
}

// compiler translates expressions into the instructions of a program that
// runs over one dataframe. The columns the expressions read must already be
// in the dataframe; see Generator.fetch.
type compiler struct {
	g     *Generator
	frame *dataframe.Dataframe
	prog  *exprprog.Program
	// computed lists the program results that column returned, which a
	// Compute processor has to add to the dataframe.
	computed []exec.Computed
	seen     map[dataframe.ColumnTag]bool
}

func (g *Generator) newCompiler(frame *dataframe.Dataframe, prog *exprprog.Program) *compiler {
	return &compiler{g: g, frame: frame, prog: prog, seen: make(map[dataframe.ColumnTag]bool)}
}

// column returns a column holding the value of e. It's either a column of
// the dataframe or a result of the program; in the latter case it's also
// appended to c.computed.
func (c *compiler) column(e ast.Expr) (dataframe.ColumnTag, error) {
	o, err := c.compile(e)
	if err != nil {
		return 0, err
	}
	tag := o.Tag
	if !tag.Valid() {
		tag = c.g.p.NewTag()
		c.prog.Add(exprprog.OpCopy, tag, o, exprprog.Operand{})
	}
	if c.frame.Get(tag) == nil && !c.seen[tag] {
		c.seen[tag] = true
		c.computed = append(c.computed, exec.Computed{Tag: tag, Name: e.String()})
	}
	return tag, nil
}

// result adds an instruction and returns its result as an operand.
func (c *compiler) result(op exprprog.Op, lhs, rhs exprprog.Operand) exprprog.Operand {
	tag := c.g.p.NewTag()
	c.prog.Add(op, tag, lhs, rhs)
	return exprprog.Ref(tag)
}

func (c *compiler) compile(e ast.Expr) (exprprog.Operand, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return literal(e)
	case *ast.Symbol:
		return c.symbol(e)
	case *ast.Property:
		tag, ok := c.g.ctx.PropTag(e.Decl, e.PropType.ID, c.frame)
		if !ok {
			return exprprog.Operand{}, pipeline.Fatalf("property %v was not fetched", e)
		}
		return exprprog.Ref(tag), nil
	case *ast.EntityTypes:
		return c.entityTypes(e)
	case *ast.Binary:
		op, ok := binaryOps[e.Op]
		if !ok {
			return exprprog.Operand{}, pipeline.Fatalf("no instruction for operator %v", e.Op)
		}
		lhs, err := c.compile(e.LHS)
		if err != nil {
			return exprprog.Operand{}, err
		}
		rhs, err := c.compile(e.RHS)
		if err != nil {
			return exprprog.Operand{}, err
		}
		return c.result(op, lhs, rhs), nil
	case *ast.Unary:
		op, ok := unaryOps[e.Op]
		if !ok {
			return exprprog.Operand{}, pipeline.Fatalf("no instruction for operator %v", e.Op)
		}
		operand, err := c.compile(e.Operand)
		if err != nil {
			return exprprog.Operand{}, err
		}
		return c.result(op, operand, exprprog.Operand{}), nil
	case *ast.FunctionInvocation:
		return c.function(e)
	case *ast.PathExpr:
		return exprprog.Operand{}, pipeline.Errorf("path expressions are not supported: %v", e)
	}
	return exprprog.Operand{}, pipeline.Fatalf("unexpected expression type %T", e)
}

func literal(l *ast.Literal) (exprprog.Operand, error) {
	switch v := l.Value.(type) {
	case nil:
		return exprprog.Null(), nil
	case int64:
		return exprprog.Const(dataframe.NewConst(v)), nil
	case float64:
		return exprprog.Const(dataframe.NewConst(v)), nil
	case string:
		return exprprog.Const(dataframe.NewConst(v)), nil
	case bool:
		return exprprog.Const(dataframe.NewConst(v)), nil
	}
	return exprprog.Operand{}, pipeline.Fatalf("unexpected literal %v of type %T", l, l.Value)
}

func (c *compiler) symbol(s *ast.Symbol) (exprprog.Operand, error) {
	if tag, ok := c.g.ctx.DeclTag(s.Decl); ok && c.frame.Get(tag) != nil {
		return exprprog.Ref(tag), nil
	}
	if alias, ok := c.g.ctx.Alias(s.Decl); ok {
		return c.compile(alias)
	}
	return exprprog.Operand{}, pipeline.Fatalf("variable %v has no column", s.Decl)
}

// entityTypes tests the labels of a node or the type of an edge.
func (c *compiler) entityTypes(e *ast.EntityTypes) (exprprog.Operand, error) {
	tag, ok := c.g.ctx.TypeTag(e.Decl, c.frame)
	if !ok {
		return exprprog.Operand{}, pipeline.Fatalf("entity types of %v were not fetched", e.Decl)
	}
	var candidates []uint64
	if e.Decl.Kind == ast.VarEdge {
		for _, t := range e.EdgeTypes {
			candidates = append(candidates, uint64(t))
		}
	} else {
		candidates = c.g.labelSetsWith(e.Labels)
	}
	res := c.g.p.NewTag()
	c.prog.AddInSet(res, tag, candidates, c.g.p.Tags())
	return exprprog.Ref(res), nil
}

func (c *compiler) function(f *ast.FunctionInvocation) (exprprog.Operand, error) {
	if tag, ok := c.g.ctx.FuncTag(f); ok {
		return exprprog.Ref(tag), nil
	}
	if f.Aggregate {
		return exprprog.Operand{}, pipeline.Fatalf("aggregate %v was not computed", f)
	}
	if len(f.Args) != 1 {
		return exprprog.Operand{}, pipeline.Fatalf("function %v takes one argument", f)
	}
	name := strings.ToLower(f.Name)
	switch name {
	case "labels", "edgetypes":
		sym, ok := f.Args[0].(*ast.Symbol)
		if !ok {
			return exprprog.Operand{}, pipeline.Errorf("%s() needs a variable, got %v", name, f.Args[0])
		}
		tag, ok := c.g.ctx.TypeTag(sym.Decl, c.frame)
		if !ok {
			return exprprog.Operand{}, pipeline.Fatalf("entity types of %v were not fetched", sym.Decl)
		}
		table := c.g.labelNames
		if name == "edgetypes" {
			table = c.g.edgeTypeNames
		}
		res := c.g.p.NewTag()
		c.prog.AddLookup(res, exprprog.Ref(tag), table)
		return exprprog.Ref(res), nil
	}
	arg, err := c.compile(f.Args[0])
	if err != nil {
		return exprprog.Operand{}, err
	}
	var op exprprog.Op
	switch name {
	case "toupper":
		op = exprprog.OpToUpper
	case "tolower":
		op = exprprog.OpToLower
	case "abs":
		op = exprprog.OpAbs
	case "id":
		op = exprprog.OpToInt
	default:
		return exprprog.Operand{}, pipeline.Fatalf("no instruction for function %s", f.Name)
	}
	return c.result(op, arg, exprprog.Operand{}), nil
}

// fetch adds lookups for the properties and entity types that the
// expressions read and that the branch's dataframe doesn't hold yet. It pins
// the branch first if anything is missing.
func (g *Generator) fetch(b *Builder, exprs ...ast.Expr) error {
	var err error
	visit := func(x ast.Expr) bool {
		if err != nil {
			return false
		}
		switch x := x.(type) {
		case *ast.Property:
			err = g.fetchProperty(b, x.Decl, x.PropType)
		case *ast.EntityTypes:
			err = g.fetchTypes(b, x.Decl)
		case *ast.Symbol:
			if tag, ok := g.ctx.DeclTag(x.Decl); ok && b.Frame().Get(tag) != nil {
				return true
			}
			if alias, ok := g.ctx.Alias(x.Decl); ok {
				err = g.fetch(b, alias)
			}
		case *ast.FunctionInvocation:
			if _, ok := g.ctx.FuncTag(x); ok {
				// Its arguments were read when it was computed.
				return false
			}
			switch strings.ToLower(x.Name) {
			case "labels", "edgetypes":
				if sym, ok := x.Args[0].(*ast.Symbol); ok {
					err = g.fetchTypes(b, sym.Decl)
				}
			}
		}
		return err == nil
	}
	for _, e := range exprs {
		ast.Walk(e, visit)
		if err != nil {
			return err
		}
	}
	return nil
}

// entity returns the column of the branch's dataframe that holds the
// variable's node or edge IDs.
func (g *Generator) entity(frame *dataframe.Dataframe, decl *ast.VarDecl) (exec.Entity, error) {
	tag, ok := g.ctx.DeclTag(decl)
	if !ok || frame.Get(tag) == nil {
		return exec.Entity{}, pipeline.Fatalf("variable %v has no column", decl)
	}
	switch decl.Kind {
	case ast.VarNode:
		return exec.Entity{Tag: tag}, nil
	case ast.VarEdge:
		return exec.Entity{Tag: tag, IsEdge: true}, nil
	}
	return exec.Entity{}, pipeline.Fatalf("variable %v is a %v, not an entity", decl, decl.Kind)
}

func (g *Generator) fetchProperty(b *Builder, decl *ast.VarDecl, pt graph.PropertyType) error {
	if _, ok := g.ctx.PropTag(decl, pt.ID, b.Frame()); ok {
		return nil
	}
	if err := b.Pin(); err != nil {
		return err
	}
	entity, err := g.entity(b.Frame(), decl)
	if err != nil {
		return err
	}
	lookup, err := exec.NewGetPropertyWithNull(g.p, b.Output(), entity, pt, fmt.Sprintf("%v.%s", decl, pt.Name))
	if err != nil {
		return err
	}
	b.Add(lookup.Output(), lookup.Result())
	g.ctx.AddProp(decl, pt.ID, lookup.Result())
	return nil
}

func (g *Generator) fetchTypes(b *Builder, decl *ast.VarDecl) error {
	if _, ok := g.ctx.TypeTag(decl, b.Frame()); ok {
		return nil
	}
	if err := b.Pin(); err != nil {
		return err
	}
	entity, err := g.entity(b.Frame(), decl)
	if err != nil {
		return err
	}
	var out *pipeline.OutputInterface
	var result dataframe.ColumnTag
	if entity.IsEdge {
		lookup, err := exec.NewGetEdgeTypeID(g.p, b.Output(), entity.Tag, fmt.Sprintf("type(%v)", decl))
		if err != nil {
			return err
		}
		out, result = lookup.Output(), lookup.Result()
	} else {
		lookup, err := exec.NewGetLabelSetID(g.p, b.Output(), entity.Tag, fmt.Sprintf("labels(%v)", decl))
		if err != nil {
			return err
		}
		out, result = lookup.Output(), lookup.Result()
	}
	b.Add(out, result)
	g.ctx.AddType(decl, result)
	return nil
}
