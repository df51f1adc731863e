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

package exec

import (
	"fmt"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// AdminColumns are the columns of the graph administration processors'
// output, in order.
var AdminColumns = []string{"name", "id", "nodes", "edges"}

// GraphAdmin runs a graph administration command against the catalog and
// emits one row per affected graph.
type GraphAdmin struct {
	pipeline.Base
	out     *pipeline.OutputInterface
	desc    string
	command func(graph.Catalog) ([]graph.GraphInfo, error)
	catalog graph.Catalog
}

func newGraphAdmin(p *pipeline.Pipeline, desc string, command func(graph.Catalog) ([]graph.GraphInfo, error)) *GraphAdmin {
	a := &GraphAdmin{desc: desc, command: command}
	p.Add(a)
	a.out = &pipeline.OutputInterface{Kind: pipeline.BlockInterface, Port: p.NewOutput(a)}
	for _, name := range AdminColumns {
		a.out.Dataframe().AddNew(p.NewTag(), name)
	}
	return a
}

// NewCreateGraph creates a processor that adds an empty graph.
func NewCreateGraph(p *pipeline.Pipeline, name string) *GraphAdmin {
	return newGraphAdmin(p, fmt.Sprintf("CreateGraph %q", name), func(c graph.Catalog) ([]graph.GraphInfo, error) {
		info, err := c.CreateGraph(name)
		if err != nil {
			return nil, err
		}
		return []graph.GraphInfo{info}, nil
	})
}

// NewLoadGraph creates a processor that loads a graph from a dataset file.
func NewLoadGraph(p *pipeline.Pipeline, name, path string) *GraphAdmin {
	return newGraphAdmin(p, fmt.Sprintf("LoadGraph %q from %q", name, path), func(c graph.Catalog) ([]graph.GraphInfo, error) {
		info, err := c.LoadGraph(name, path)
		if err != nil {
			return nil, err
		}
		return []graph.GraphInfo{info}, nil
	})
}

// NewListGraph creates a processor that lists the graphs of the catalog.
func NewListGraph(p *pipeline.Pipeline) *GraphAdmin {
	return newGraphAdmin(p, "ListGraph", func(c graph.Catalog) ([]graph.GraphInfo, error) {
		return c.ListGraphs(), nil
	})
}

// Output returns the processor's output interface.
func (a *GraphAdmin) Output() *pipeline.OutputInterface {
	return a.out
}

// Describe implements pipeline.Processor.
func (a *GraphAdmin) Describe() string {
	return a.desc
}

// Prepare implements pipeline.Processor.
func (a *GraphAdmin) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.Catalog == nil {
		return pipeline.Errorf("graph administration is not enabled")
	}
	a.catalog = ctx.Catalog
	return nil
}

// Execute implements pipeline.Processor.
func (a *GraphAdmin) Execute() error {
	infos, err := a.command(a.catalog)
	if err != nil {
		return pipeline.Errorf("%s: %v", a.desc, err)
	}
	if len(infos) > 0 {
		var names, ids []string
		var nodes, edges []int64
		for _, info := range infos {
			names = append(names, info.Name)
			ids = append(ids, info.ID)
			nodes = append(nodes, int64(info.Nodes))
			edges = append(edges, int64(info.Edges))
		}
		cols := a.out.Dataframe().Cols()
		cols[0].Col = dataframe.NewVector(names...)
		cols[1].Col = dataframe.NewVector(ids...)
		cols[2].Col = dataframe.NewVector(nodes...)
		cols[3].Col = dataframe.NewVector(edges...)
		a.out.Port.WriteData()
	}
	a.Finish()
	return nil
}
