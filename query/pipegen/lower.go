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

	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/plangraph"
)

// compute adds a Compute processor for the program results that the
// compiler handed out, if there are any.
func (g *Generator) compute(b *Builder, c *compiler) error {
	if len(c.computed) == 0 {
		return nil
	}
	proc, err := exec.NewCompute(g.p, b.Output(), c.prog, c.computed)
	if err != nil {
		return err
	}
	tags := make([]dataframe.ColumnTag, len(c.computed))
	for i, r := range c.computed {
		tags[i] = r.Tag
	}
	b.Add(proc.Output(), tags...)
	return nil
}

func (g *Generator) filter(b *Builder, op *plangraph.Filter) error {
	if op.Decl == nil {
		return pipeline.Fatalf("filter without a variable: %v", op)
	}
	if err := g.bindStream(b, op.Decl); err != nil {
		return err
	}
	if op.IsEmpty() {
		return nil
	}
	if err := b.Pin(); err != nil {
		return err
	}
	prog := new(exprprog.PredicateProgram)
	if len(op.Labels) > 0 || len(op.EdgeTypes) > 0 {
		if err := g.fetchTypes(b, op.Decl); err != nil {
			return err
		}
		types, _ := g.ctx.TypeTag(op.Decl, b.Frame())
		var candidates []uint64
		if len(op.Labels) > 0 {
			candidates = g.labelSetsWith(op.Labels)
		} else {
			for _, t := range op.EdgeTypes {
				candidates = append(candidates, uint64(t))
			}
		}
		res := g.p.NewTag()
		prog.AddInSet(res, types, candidates, g.p.Tags())
		prog.AddPredicate(res)
	}
	exprs := make([]ast.Expr, len(op.Predicates))
	for i, p := range op.Predicates {
		exprs[i] = p.Expr
	}
	if err := g.fetch(b, exprs...); err != nil {
		return err
	}
	c := g.newCompiler(b.Frame(), &prog.Program)
	for _, e := range exprs {
		tag, err := c.column(e)
		if err != nil {
			return err
		}
		prog.AddPredicate(tag)
	}
	f, err := exec.NewFilter(g.p, b.Output(), prog)
	if err != nil {
		return err
	}
	b.Then(f.Output())
	return nil
}

func (g *Generator) getProperty(b *Builder, op *plangraph.GetProperty) error {
	if err := b.Pin(); err != nil {
		return err
	}
	entity, err := g.entity(b.Frame(), op.Decl)
	if err != nil {
		return err
	}
	lookup, err := exec.NewGetProperty(g.p, b.Output(), entity, op.PropType, fmt.Sprintf("%v.%s", op.Decl, op.PropType.Name))
	if err != nil {
		return err
	}
	b.Add(lookup.Output(), lookup.Result())
	g.ctx.AddProp(op.Decl, op.PropType.ID, lookup.Result())
	return nil
}

// funcEval computes scalar functions. They're listed innermost first, so an
// argument that is itself a function is already bound when it's read.
func (g *Generator) funcEval(b *Builder, op *plangraph.FuncEval) error {
	if err := b.Pin(); err != nil {
		return err
	}
	exprs := make([]ast.Expr, len(op.Funcs))
	for i, f := range op.Funcs {
		exprs[i] = f
	}
	if err := g.fetch(b, exprs...); err != nil {
		return err
	}
	c := g.newCompiler(b.Frame(), new(exprprog.Program))
	for _, f := range op.Funcs {
		tag, err := c.column(f)
		if err != nil {
			return err
		}
		g.ctx.BindFunc(f, tag)
	}
	return g.compute(b, c)
}

func isCountStar(f *ast.FunctionInvocation) bool {
	return strings.EqualFold(f.Name, "count") && len(f.Args) == 0
}

func (g *Generator) aggregate(b *Builder, op *plangraph.AggregateEval) error {
	if err := b.Pin(); err != nil {
		return err
	}
	if len(op.GroupBy) == 0 && len(op.Aggregates) == 1 && isCountStar(op.Aggregates[0]) {
		f := op.Aggregates[0]
		count, err := exec.NewCount(g.p, b.Output(), f.String())
		if err != nil {
			return err
		}
		g.ctx.BindFunc(f, count.Result())
		b.Reset(count.Output(), true)
		return nil
	}
	exprs := append([]ast.Expr(nil), op.GroupBy...)
	for _, f := range op.Aggregates {
		exprs = append(exprs, f.Args...)
	}
	if err := g.fetch(b, exprs...); err != nil {
		return err
	}
	c := g.newCompiler(b.Frame(), new(exprprog.Program))
	groupBy := make([]dataframe.ColumnTag, len(op.GroupBy))
	for i, e := range op.GroupBy {
		tag, err := c.column(e)
		if err != nil {
			return err
		}
		groupBy[i] = tag
	}
	items := make([]exec.AggregateItem, len(op.Aggregates))
	for i, f := range op.Aggregates {
		fn, err := exec.ParseAggFunc(f.Name)
		if err != nil {
			return err
		}
		item := exec.AggregateItem{
			Func:   fn,
			Result: g.p.NewTag(),
			Kind:   f.ResultType.ColumnKind(),
			Name:   f.String(),
		}
		switch len(f.Args) {
		case 0:
		case 1:
			if item.Arg, err = c.column(f.Args[0]); err != nil {
				return err
			}
		default:
			return pipeline.Errorf("aggregate %v takes at most one argument", f)
		}
		items[i] = item
	}
	if err := g.compute(b, c); err != nil {
		return err
	}
	agg, err := exec.NewAggregate(g.p, b.Output(), groupBy, items)
	if err != nil {
		return err
	}
	for i, f := range op.Aggregates {
		g.ctx.BindFunc(f, items[i].Result)
	}
	b.Reset(agg.Output(), true)
	return nil
}

func (g *Generator) orderBy(b *Builder, op *plangraph.OrderBy) error {
	if err := b.Pin(); err != nil {
		return err
	}
	exprs := make([]ast.Expr, len(op.Items))
	for i, item := range op.Items {
		exprs[i] = item.Expr
	}
	if err := g.fetch(b, exprs...); err != nil {
		return err
	}
	c := g.newCompiler(b.Frame(), new(exprprog.Program))
	keys := make([]exec.SortKey, len(op.Items))
	for i, item := range op.Items {
		tag, err := c.column(item.Expr)
		if err != nil {
			return err
		}
		keys[i] = exec.SortKey{Tag: tag, Descending: item.Descending}
	}
	if err := g.compute(b, c); err != nil {
		return err
	}
	sorted, err := exec.NewOrderBy(g.p, b.Output(), keys)
	if err != nil {
		return err
	}
	b.Reset(sorted.Output(), true)
	return nil
}

func (g *Generator) skip(b *Builder, count uint64, limit bool) error {
	if err := b.Pin(); err != nil {
		return err
	}
	var out *pipeline.OutputInterface
	if limit {
		l, err := exec.NewLimit(g.p, b.Output(), count)
		if err != nil {
			return err
		}
		out = l.Output()
	} else {
		s, err := exec.NewSkip(g.p, b.Output(), count)
		if err != nil {
			return err
		}
		out = s.Output()
	}
	b.Then(out)
	return nil
}

// produceResults projects the returned expressions into fresh columns in
// the order of the RETURN items and hands every batch to the caller. With
// no items, every column is returned as is.
func (g *Generator) produceResults(b *Builder, op *plangraph.ProduceResults) error {
	if err := b.Pin(); err != nil {
		return err
	}
	if len(op.Items) == 0 {
		for _, col := range b.Frame().Cols() {
			g.lowered.Columns = append(g.lowered.Columns, col.Name)
		}
		_, err := exec.NewLambda(g.p, b.Output(), "results", g.results)
		return err
	}
	exprs := make([]ast.Expr, len(op.Items))
	for i, item := range op.Items {
		exprs[i] = item.Expr
	}
	if err := g.fetch(b, exprs...); err != nil {
		return err
	}
	c := g.newCompiler(b.Frame(), new(exprprog.Program))
	items := make([]exec.ProjectionItem, len(op.Items))
	for i, item := range op.Items {
		tag, err := c.column(item.Expr)
		if err != nil {
			return err
		}
		name := item.Name
		if name == "" {
			name = item.Expr.String()
		}
		items[i] = exec.ProjectionItem{From: tag, To: g.p.NewTag(), Name: name}
	}
	if err := g.compute(b, c); err != nil {
		return err
	}
	proj, err := exec.NewProjection(g.p, b.Output(), items)
	if err != nil {
		return err
	}
	for _, item := range items {
		g.lowered.Columns = append(g.lowered.Columns, item.Name)
	}
	_, err = exec.NewLambda(g.p, proj.Output(), "results", g.results)
	return err
}

// write lowers CREATE, SET, and DELETE. SETs on entities that the same Write
// creates become properties of the create, since those entities have no
// column to read from until the Write runs.
func (g *Generator) write(b *Builder, node *plangraph.Node, op *plangraph.Write) (*Builder, error) {
	var exprs []ast.Expr
	for _, n := range op.Nodes {
		for _, pc := range n.Props {
			exprs = append(exprs, pc.Value)
		}
	}
	for _, e := range op.Edges {
		for _, pc := range e.Props {
			exprs = append(exprs, pc.Value)
		}
	}
	for _, s := range op.Sets {
		exprs = append(exprs, s.Value)
	}
	var upstream *pipeline.OutputInterface
	frame := dataframe.New()
	if b != nil {
		if err := b.Pin(); err != nil {
			return nil, err
		}
		if err := g.fetch(b, exprs...); err != nil {
			return nil, err
		}
		upstream, frame = b.Output(), b.Frame()
	}
	withOutput := len(node.Outputs()) > 0
	prog := new(exprprog.Program)
	c := g.newCompiler(frame, prog)
	props := func(decl *ast.VarDecl, constraints []ast.PropConstraint) ([]exec.PropValue, error) {
		var res []exec.PropValue
		for _, pc := range constraints {
			tag, err := c.column(pc.Value)
			if err != nil {
				return nil, err
			}
			res = append(res, exec.PropValue{Name: pc.PropType.Name, Value: tag})
		}
		for _, s := range op.Sets {
			if s.Decl != decl {
				continue
			}
			tag, err := c.column(s.Value)
			if err != nil {
				return nil, err
			}
			res = append(res, exec.PropValue{Name: s.Prop, Value: tag})
		}
		return res, nil
	}
	result := func() dataframe.ColumnTag {
		if withOutput {
			return g.p.NewTag()
		}
		return 0
	}

	spec := exec.WriteSpec{Prog: prog}
	created := make(map[*ast.VarDecl]int, len(op.Nodes))
	for i, n := range op.Nodes {
		vals, err := props(n.Decl, n.Props)
		if err != nil {
			return nil, err
		}
		created[n.Decl] = i
		spec.Nodes = append(spec.Nodes, exec.NodeCreate{
			Result: result(),
			Name:   n.Decl.String(),
			Labels: n.Labels,
			Props:  vals,
		})
	}
	endpoint := func(decl *ast.VarDecl) (exec.Endpoint, error) {
		if i, ok := created[decl]; ok {
			return exec.CreatedNode(i), nil
		}
		entity, err := g.entity(frame, decl)
		if err != nil {
			return exec.Endpoint{}, err
		}
		if entity.IsEdge {
			return exec.Endpoint{}, pipeline.Errorf("edge endpoint %v is not a node", decl)
		}
		return exec.ExistingNode(entity.Tag), nil
	}
	for _, e := range op.Edges {
		src, err := endpoint(e.Src)
		if err != nil {
			return nil, err
		}
		tgt, err := endpoint(e.Tgt)
		if err != nil {
			return nil, err
		}
		vals, err := props(e.Decl, e.Props)
		if err != nil {
			return nil, err
		}
		spec.Edges = append(spec.Edges, exec.EdgeCreate{
			Result: result(),
			Name:   e.Decl.String(),
			Src:    src,
			Tgt:    tgt,
			Type:   e.Type,
			Props:  vals,
		})
	}
	for _, s := range op.Sets {
		if op.IsPending(s.Decl) {
			continue
		}
		entity, err := g.entity(frame, s.Decl)
		if err != nil {
			return nil, err
		}
		tag, err := c.column(s.Value)
		if err != nil {
			return nil, err
		}
		spec.Sets = append(spec.Sets, exec.PropSet{Entity: entity, PropValue: exec.PropValue{Name: s.Prop, Value: tag}})
	}
	deletes := func(decls []*ast.VarDecl) ([]dataframe.ColumnTag, error) {
		var res []dataframe.ColumnTag
		for _, d := range decls {
			entity, err := g.entity(frame, d)
			if err != nil {
				return nil, err
			}
			res = append(res, entity.Tag)
		}
		return res, nil
	}
	var err error
	if spec.DeleteNodes, err = deletes(op.DeleteNodes); err != nil {
		return nil, err
	}
	if spec.DeleteEdges, err = deletes(op.DeleteEdges); err != nil {
		return nil, err
	}

	w, err := exec.NewWrite(g.p, upstream, spec, withOutput)
	if err != nil {
		return nil, err
	}
	g.lowered.Writes = append(g.lowered.Writes, w)
	if withOutput {
		for i, n := range op.Nodes {
			g.ctx.BindDecl(n.Decl, spec.Nodes[i].Result)
		}
		for i, e := range op.Edges {
			g.ctx.BindDecl(e.Decl, spec.Edges[i].Result)
		}
	}
	res := newBuilder(g.p)
	res.Reset(w.Output(), true)
	return res, nil
}

// procedure lowers CALL. Without YIELD, every column of the procedure is
// output.
func (g *Generator) procedure(op *plangraph.ProcedureEval) (*Builder, error) {
	proc := op.Procedure
	kinds := make([]dataframe.Kind, len(proc.Columns))
	for i, col := range proc.Columns {
		kinds[i] = col.Type.ColumnKind()
	}
	var fields []exec.ProcedureField
	if len(op.Yield) == 0 {
		for i, col := range proc.Columns {
			fields = append(fields, exec.ProcedureField{Index: i, Tag: g.p.NewTag(), Name: col.Name})
		}
	}
	for _, y := range op.Yield {
		idx := proc.Column(y.Field)
		if idx < 0 {
			return nil, pipeline.Errorf("procedure %s has no field %s", proc.Name, y.Field)
		}
		tag := g.p.NewTag()
		fields = append(fields, exec.ProcedureField{Index: idx, Tag: tag, Name: y.Decl.String()})
		g.ctx.BindDecl(y.Decl, tag)
	}
	d, err := exec.NewDatabaseProcedure(g.p, proc.Name, kinds, fields)
	if err != nil {
		return nil, err
	}
	b := newBuilder(g.p)
	b.Reset(d.Output(), true)
	return b, nil
}
