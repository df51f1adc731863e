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

package pipeline

import (
	"fmt"

	"github.com/ebay/akgraph/query/dataframe"
)

// InterfaceKind describes the semantic role of the columns on a port.
type InterfaceKind uint8

// Kinds of interfaces.
const (
	InvalidInterface InterfaceKind = iota
	// NodeInterface carries a column of node IDs.
	NodeInterface
	// EdgeInterface carries the edge ID, edge type, and other-node ID columns
	// of an expansion.
	EdgeInterface
	// BlockInterface carries any columns. It may still describe node or edge
	// columns through its EntityStream.
	BlockInterface
	// ValuesInterface carries a column of computed values.
	ValuesInterface
	// ValueInterface carries a single value.
	ValueInterface
)

func (k InterfaceKind) String() string {
	switch k {
	case NodeInterface:
		return "Node"
	case EdgeInterface:
		return "Edge"
	case BlockInterface:
		return "Block"
	case ValuesInterface:
		return "Values"
	case ValueInterface:
		return "Value"
	}
	return fmt.Sprintf("InterfaceKind(%d)", uint8(k))
}

// StreamKind is the kind of entities an EntityStream describes.
type StreamKind uint8

// Kinds of entity streams.
const (
	NoStream StreamKind = iota
	NodeStream
	EdgeStream
)

// EntityStream records which columns of a dataframe hold the IDs of the
// entities flowing through it. It travels with block interfaces, so that a
// block can be read as a node or edge stream further downstream.
type EntityStream struct {
	Kind      StreamKind
	NodeIDs   dataframe.ColumnTag
	EdgeIDs   dataframe.ColumnTag
	EdgeTypes dataframe.ColumnTag
	OtherIDs  dataframe.ColumnTag
	// Expanded is set while the dataframe holds the columns of more than one
	// expansion step, which have different row counts. Materialize clears it.
	Expanded bool
}

// NodeStreamOf returns a stream of the node IDs in the given column.
func NodeStreamOf(nodeIDs dataframe.ColumnTag) EntityStream {
	return EntityStream{Kind: NodeStream, NodeIDs: nodeIDs}
}

// EdgeStreamOf returns a stream of edges described by the given columns.
func EdgeStreamOf(edgeIDs, edgeTypes, otherIDs dataframe.ColumnTag) EntityStream {
	return EntityStream{Kind: EdgeStream, EdgeIDs: edgeIDs, EdgeTypes: edgeTypes, OtherIDs: otherIDs}
}

func (s EntityStream) String() string {
	switch s.Kind {
	case NodeStream:
		return fmt.Sprintf("nodes(%v)", s.NodeIDs)
	case EdgeStream:
		return fmt.Sprintf("edges(%v, type=%v, other=%v)", s.EdgeIDs, s.EdgeTypes, s.OtherIDs)
	}
	return "none"
}

// OutputInterface is a typed view over an output port.
type OutputInterface struct {
	Kind   InterfaceKind
	Port   *OutputPort
	Stream EntityStream
	// Values is the column of a Values or Value interface.
	Values dataframe.ColumnTag
}

// Dataframe returns the dataframe of the port's buffer.
func (o *OutputInterface) Dataframe() *dataframe.Dataframe {
	return o.Port.Dataframe()
}

func (o *OutputInterface) String() string {
	return fmt.Sprintf("%v %v", o.Kind, o.Stream)
}

// InputInterface is a typed view over an input port. Only node, edge, and
// block inputs exist. Connect sets Stream to tell the processor which
// columns of the incoming dataframe hold its entities.
type InputInterface struct {
	Kind   InterfaceKind
	Port   *InputPort
	Stream EntityStream
}

// Dataframe returns the dataframe of the shared buffer.
func (in *InputInterface) Dataframe() *dataframe.Dataframe {
	return in.Port.Dataframe()
}

type connection struct {
	from, to InterfaceKind
}

// connections lists the legal pairs of output and input kinds. Each entry
// computes the stream the input sees.
var connections = map[connection]func(out *OutputInterface) (EntityStream, error){
	{NodeInterface, NodeInterface}:    sameStream,
	{NodeInterface, BlockInterface}:   sameStream,
	{EdgeInterface, EdgeInterface}:    sameStream,
	{EdgeInterface, NodeInterface}:    otherNodes,
	{EdgeInterface, BlockInterface}:   sameStream,
	{BlockInterface, BlockInterface}:  sameStream,
	{BlockInterface, NodeInterface}:   nodesOfBlock,
	{BlockInterface, EdgeInterface}:   edgesOfBlock,
	{ValuesInterface, BlockInterface}: sameStream,
	{ValueInterface, BlockInterface}:  sameStream,
}

func sameStream(out *OutputInterface) (EntityStream, error) {
	return out.Stream, nil
}

func otherNodes(out *OutputInterface) (EntityStream, error) {
	if !out.Stream.OtherIDs.Valid() {
		return EntityStream{}, Errorf("edge output has no other-node IDs column")
	}
	return NodeStreamOf(out.Stream.OtherIDs), nil
}

func nodesOfBlock(out *OutputInterface) (EntityStream, error) {
	if out.Stream.Kind != NodeStream || !out.Stream.NodeIDs.Valid() {
		return EntityStream{}, Errorf("block output has no node IDs column (stream is %v)", out.Stream)
	}
	return out.Stream, nil
}

func edgesOfBlock(out *OutputInterface) (EntityStream, error) {
	s := out.Stream
	switch {
	case s.Kind != EdgeStream || !s.EdgeIDs.Valid():
		return EntityStream{}, Errorf("block output has no edge IDs column (stream is %v)", s)
	case !s.OtherIDs.Valid():
		return EntityStream{}, Errorf("block output has no other-node IDs column")
	case !s.EdgeTypes.Valid():
		return EntityStream{}, Errorf("block output has no edge types column")
	}
	return s, nil
}

// CanConnect returns true if an output of kind 'from' may feed an input of
// kind 'to'.
func CanConnect(from, to InterfaceKind) bool {
	_, ok := connections[connection{from, to}]
	return ok
}

// Connect wires an output interface to an input interface. It returns an
// *Error if the kinds can't be connected or the output lacks the columns the
// input needs.
func Connect(out *OutputInterface, in *InputInterface) error {
	rule, ok := connections[connection{out.Kind, in.Kind}]
	if !ok {
		return Errorf("%v output cannot connect to %v input", out.Kind, in.Kind)
	}
	stream, err := rule(out)
	if err != nil {
		return err
	}
	in.Stream = stream
	out.Port.ConnectTo(in.Port)
	return nil
}
