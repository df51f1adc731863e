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
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// scan is the state shared by the node scans. Each execution emits the next
// batch of node IDs.
type scan struct {
	pipeline.Base
	out   *pipeline.OutputInterface
	view  graph.View
	batch int
	last  graph.NodeID
}

func (s *scan) init(p *pipeline.Pipeline, self pipeline.Processor, name string) {
	p.Add(self)
	tag := p.NewTag()
	s.out = &pipeline.OutputInterface{
		Kind:   pipeline.NodeInterface,
		Port:   p.NewOutput(self),
		Stream: pipeline.NodeStreamOf(tag),
	}
	s.out.Dataframe().AddNew(tag, name)
}

// Output returns the node interface of the scan.
func (s *scan) Output() *pipeline.OutputInterface {
	return s.out
}

// Prepare implements pipeline.Processor.
func (s *scan) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.View == nil {
		return pipeline.Errorf("no graph to scan")
	}
	s.view = ctx.View
	s.batch = ctx.MaxBatch()
	return nil
}

// emit writes the IDs collected by a scan call. The scan finishes once a
// call returns less than a full batch; an empty batch isn't written.
func (s *scan) emit(ids []uint64) {
	if len(ids) > 0 {
		s.out.Dataframe().Get(s.out.Stream.NodeIDs).Col = dataframe.NewVector(ids...)
		s.out.Port.WriteData()
		s.last = graph.NodeID(ids[len(ids)-1])
	}
	if len(ids) < s.batch {
		s.Finish()
	}
}

func (s *scan) collector(ids *[]uint64) func(graph.NodeID) bool {
	return func(id graph.NodeID) bool {
		*ids = append(*ids, uint64(id))
		return len(*ids) < s.batch
	}
}

// ScanNodes emits the IDs of every node of the graph.
type ScanNodes struct {
	scan
}

// NewScanNodes creates a ScanNodes source.
func NewScanNodes(p *pipeline.Pipeline) *ScanNodes {
	s := &ScanNodes{}
	s.init(p, s, "nodes")
	return s
}

// Describe implements pipeline.Processor.
func (s *ScanNodes) Describe() string {
	return "ScanNodes"
}

// Execute implements pipeline.Processor.
func (s *ScanNodes) Execute() error {
	ids := make([]uint64, 0, s.batch)
	s.view.ScanNodes(s.last, s.collector(&ids))
	s.emit(ids)
	return nil
}

// ScanNodesByLabel emits the IDs of the nodes that have all the given
// labels.
type ScanNodesByLabel struct {
	scan
	labels graph.LabelSet
	names  []string
}

// NewScanNodesByLabel creates a ScanNodesByLabel source. The names are only
// used to describe the processor.
func NewScanNodesByLabel(p *pipeline.Pipeline, labels graph.LabelSet, names []string) *ScanNodesByLabel {
	s := &ScanNodesByLabel{labels: labels, names: names}
	s.init(p, s, "nodes:"+strings.Join(names, ":"))
	return s
}

// Describe implements pipeline.Processor.
func (s *ScanNodesByLabel) Describe() string {
	return "ScanNodesByLabel " + strings.Join(s.names, ":")
}

// Execute implements pipeline.Processor.
func (s *ScanNodesByLabel) Execute() error {
	ids := make([]uint64, 0, s.batch)
	s.view.ScanNodesByLabel(s.labels, s.last, s.collector(&ids))
	s.emit(ids)
	return nil
}
