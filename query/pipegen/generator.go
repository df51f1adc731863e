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

// Package pipegen lowers an optimized plan graph into a pipeline of
// processors. It walks the plan depth first with an explicit stack, so deep
// chains don't grow the goroutine stack, and threads a Builder along each
// branch: the output the next processor connects to and the layout of the
// dataframe flowing out of it.
//
// Expansions add steps to the layout without copying rows. Processors that
// read whole rows get their input through a Materialize processor, which is
// skipped when the dataframe is already flat. A node with several outputs
// gets a Fork processor, and binary nodes are lowered once both of their
// inputs have been reached.
package pipegen

import (
	"sort"
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/plangraph"
	log "github.com/sirupsen/logrus"
)

// ResultFunc receives each batch of a query's results. The dataframe is only
// valid during the call.
type ResultFunc func(df *dataframe.Dataframe) error

// Lowered is a pipeline generated from a plan.
type Lowered struct {
	Pipeline *pipeline.Pipeline
	// Writes are the processors that change the graph. Their stats are
	// final once the pipeline has run.
	Writes []*exec.Write
	// Columns names the result columns.
	Columns []string
}

// WriteStats sums the changes of every Write processor.
func (l *Lowered) WriteStats() exec.WriteStats {
	var res exec.WriteStats
	for _, w := range l.Writes {
		res.Add(w.WriteStats())
	}
	return res
}

// Generator holds the state of one call to Generate.
type Generator struct {
	plan    *plangraph.Graph
	results ResultFunc
	p       *pipeline.Pipeline
	ctx     *LoweringContext
	lowered *Lowered

	labelSets     []graph.LabelSetEntry
	labelNames    map[uint64]string
	edgeTypeNames map[uint64]string
}

// Generate builds the pipeline for a plan. The graph metadata resolves
// label and edge type names; results receives the rows of ProduceResults
// and may be nil.
func Generate(plan *plangraph.Graph, md graph.Metadata, results ResultFunc) (*Lowered, error) {
	g := newGenerator(plan, md, results)
	if err := g.generate(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"processors": g.p.Len(),
		"writes":     len(g.lowered.Writes),
	}).Debugf("Generated pipeline:\n%v", g.p)
	return g.lowered, nil
}

func newGenerator(plan *plangraph.Graph, md graph.Metadata, results ResultFunc) *Generator {
	if results == nil {
		results = func(*dataframe.Dataframe) error { return nil }
	}
	p := pipeline.New()
	g := &Generator{
		plan:          plan,
		results:       results,
		p:             p,
		ctx:           NewLoweringContext(),
		lowered:       &Lowered{Pipeline: p},
		labelSets:     md.LabelSets(),
		labelNames:    make(map[uint64]string),
		edgeTypeNames: make(map[uint64]string),
	}
	names := make(map[graph.LabelID]string)
	for name, id := range md.Labels() {
		names[id] = name
	}
	for _, entry := range g.labelSets {
		parts := make([]string, len(entry.Labels))
		for i, id := range entry.Labels {
			parts[i] = names[id]
		}
		g.labelNames[uint64(entry.ID)] = strings.Join(parts, ":")
	}
	for name, id := range md.EdgeTypes() {
		g.edgeTypeNames[uint64(id)] = name
	}
	return g
}

// labelSetsWith returns the IDs of the label sets that include all the
// given labels, in ascending order.
func (g *Generator) labelSetsWith(labels graph.LabelSet) []uint64 {
	var res []uint64
	for _, entry := range g.labelSets {
		if entry.Labels.HasAll(labels) {
			res = append(res, uint64(entry.ID))
		}
	}
	return res
}

// visit is an entry on the traversal stack: a plan node reached from 'from'
// along the branch b. Roots have no branch.
type visit struct {
	node plangraph.NodeID
	from plangraph.NodeID
	b    *Builder
}

func (g *Generator) generate() error {
	for _, n := range g.plan.Nodes() {
		if op, ok := n.Op.(*plangraph.ProduceResults); ok {
			for _, item := range op.Items {
				if sym, ok := item.Expr.(*ast.Symbol); ok && sym.Decl == item.Decl {
					continue
				}
				if item.Decl != nil {
					g.ctx.AddAlias(item.Decl, item.Expr)
				}
			}
		}
	}
	roots := g.plan.Roots()
	if len(roots) == 0 {
		return pipeline.Fatalf("plan has no roots")
	}
	stack := make([]visit, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, visit{node: roots[i], from: plangraph.InvalidNode})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := g.plan.Node(top.node)
		b, err := g.lower(node, top)
		if err != nil {
			return err
		}
		if b == nil {
			// A binary node waiting for its other input.
			continue
		}
		outs := node.Outputs()
		switch len(outs) {
		case 0:
			if !plangraph.IsTerminal(node.Op) {
				return pipeline.Fatalf("#%d %v has no outputs", node.ID, node.Op)
			}
		case 1:
			stack = append(stack, visit{node: outs[0], from: node.ID, b: b})
		default:
			branches, err := b.Fork(len(outs))
			if err != nil {
				return err
			}
			for i := len(outs) - 1; i >= 0; i-- {
				stack = append(stack, visit{node: outs[i], from: node.ID, b: branches[i]})
			}
		}
	}
	if pending := g.ctx.pendingBinaries(); len(pending) > 0 {
		sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
		return pipeline.Fatalf("binary node #%d was reached from one input only", pending[0])
	}
	return nil
}

func isBinary(op plangraph.Operator) bool {
	switch op.(type) {
	case *plangraph.Join, *plangraph.CartesianProduct:
		return true
	}
	return false
}

// lower creates the processors of one plan node. It returns the branch that
// continues to the node's outputs, or nil if the node is a binary node that
// waits for its other input.
func (g *Generator) lower(node *plangraph.Node, v visit) (*Builder, error) {
	if isBinary(node.Op) {
		return g.binary(node, v)
	}
	if len(node.Inputs()) > 1 {
		return nil, pipeline.Fatalf("#%d %v has %d inputs", node.ID, node.Op, len(node.Inputs()))
	}
	b := v.b
	if b == nil {
		switch node.Op.(type) {
		case *plangraph.ScanNodes, *plangraph.ScanNodesByLabel, *plangraph.Write, *plangraph.ProcedureEval,
			*plangraph.CreateGraph, *plangraph.LoadGraph, *plangraph.ListGraph,
			*plangraph.S3Connect, *plangraph.S3Transfer:
		default:
			return nil, pipeline.Fatalf("#%d %v has no input", node.ID, node.Op)
		}
	}
	var err error
	switch op := node.Op.(type) {
	case *plangraph.ScanNodes:
		scan := exec.NewScanNodes(g.p)
		b = newBuilder(g.p)
		b.Reset(scan.Output(), false)
	case *plangraph.ScanNodesByLabel:
		scan := exec.NewScanNodesByLabel(g.p, op.Labels, op.Names)
		b = newBuilder(g.p)
		b.Reset(scan.Output(), false)
	case *plangraph.Var:
		err = g.bindStream(b, op.Decl)
	case *plangraph.Filter:
		err = g.filter(b, op)
	case *plangraph.GetOutEdges:
		err = g.expand(b, exec.Outgoing)
	case *plangraph.GetInEdges:
		err = g.expand(b, exec.Incoming)
	case *plangraph.GetEdges:
		err = g.expand(b, exec.Both)
	case *plangraph.GetEdgeTarget:
		err = b.Retarget()
	case *plangraph.GetProperty:
		err = g.getProperty(b, op)
	case *plangraph.GetPropertyWithNull:
		err = g.fetchProperty(b, op.Decl, op.PropType)
	case *plangraph.GetEntityType:
		err = g.fetchTypes(b, op.Decl)
	case *plangraph.Materialize:
		err = b.Pin()
	case *plangraph.FuncEval:
		err = g.funcEval(b, op)
	case *plangraph.AggregateEval:
		err = g.aggregate(b, op)
	case *plangraph.OrderBy:
		err = g.orderBy(b, op)
	case *plangraph.Skip:
		err = g.skip(b, op.Count, false)
	case *plangraph.Limit:
		err = g.skip(b, op.Count, true)
	case *plangraph.ProduceResults:
		err = g.produceResults(b, op)
	case *plangraph.Write:
		b, err = g.write(b, node, op)
	case *plangraph.ProcedureEval:
		b, err = g.procedure(op)
	case *plangraph.CreateGraph:
		b = g.admin(exec.NewCreateGraph(g.p, op.Name))
	case *plangraph.LoadGraph:
		b = g.admin(exec.NewLoadGraph(g.p, op.Name, op.Path))
	case *plangraph.ListGraph:
		b = g.admin(exec.NewListGraph(g.p))
	case *plangraph.S3Connect, *plangraph.S3Transfer:
		err = pipeline.Errorf("%v is not supported by this engine", op)
	default:
		err = pipeline.Fatalf("no processor for plan node #%d %v", node.ID, op)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// binary lowers a Join or CartesianProduct once both inputs have reached
// it. The first arrival is parked in the LoweringContext.
func (g *Generator) binary(node *plangraph.Node, v visit) (*Builder, error) {
	if v.b == nil || len(node.Inputs()) != 2 {
		return nil, pipeline.Fatalf("#%d %v needs two inputs", node.ID, node.Op)
	}
	if err := v.b.Pin(); err != nil {
		return nil, err
	}
	isLhs := node.Inputs()[0] == v.from
	first, ok := g.ctx.takeBinary(node.ID)
	if !ok {
		g.ctx.deferBinary(node.ID, pendingInput{branch: v.b, isLhs: isLhs})
		return nil, nil
	}
	lhs, rhs := first.branch, v.b
	if isLhs && !first.isLhs {
		lhs, rhs = v.b, first.branch
	}
	var out *pipeline.OutputInterface
	switch op := node.Op.(type) {
	case *plangraph.Join:
		var kind exec.JoinKind
		switch op.Kind {
		case plangraph.JoinOnAncestor:
			kind = exec.JoinOnAncestor
		case plangraph.JoinOnTarget:
			kind = exec.JoinOnTarget
		default:
			return nil, pipeline.Fatalf("unknown join kind %v", op.Kind)
		}
		join, err := exec.NewHashJoin(g.p, lhs.Output(), rhs.Output(), kind)
		if err != nil {
			return nil, err
		}
		out = join.Output()
	case *plangraph.CartesianProduct:
		cp, err := exec.NewCartesianProduct(g.p, lhs.Output(), rhs.Output())
		if err != nil {
			return nil, err
		}
		out = cp.Output()
	}
	b := newBuilder(g.p)
	b.Reset(out, true)
	return b, nil
}

// bindStream binds a pattern variable to the entity column of the branch's
// stream.
func (g *Generator) bindStream(b *Builder, decl *ast.VarDecl) error {
	s := b.Output().Stream
	switch {
	case decl.Kind == ast.VarNode && s.Kind == pipeline.NodeStream:
		g.ctx.BindDecl(decl, s.NodeIDs)
	case decl.Kind == ast.VarEdge && s.Kind == pipeline.EdgeStream:
		g.ctx.BindDecl(decl, s.EdgeIDs)
		if _, ok := g.ctx.TypeTag(decl, b.Frame()); !ok {
			g.ctx.AddType(decl, s.EdgeTypes)
		}
	default:
		return pipeline.Fatalf("can't bind %v variable %v to %v", decl.Kind, decl, s)
	}
	return nil
}

func (g *Generator) expand(b *Builder, dir exec.Direction) error {
	e, err := exec.NewGetEdges(g.p, b.Output(), dir)
	if err != nil {
		return err
	}
	b.Expand(e.Output(), e.Indices())
	return nil
}

func (g *Generator) admin(a *exec.GraphAdmin) *Builder {
	b := newBuilder(g.p)
	b.Reset(a.Output(), true)
	return b
}
