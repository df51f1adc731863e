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

// Package graph defines the boundary between the query core and the graph
// storage engine: identifiers, the read-only metadata catalog, a read view
// over nodes and edges, and the write collaborator used by write queries.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Identifiers of graph entities and catalog objects.
type (
	NodeID         uint64
	EdgeID         uint64
	LabelID        uint64
	LabelSetID     uint64
	EdgeTypeID     uint64
	PropertyTypeID uint64
)

// LabelSet is a sorted, duplicate-free set of labels.
type LabelSet []LabelID

// NewLabelSet returns a LabelSet containing the given labels.
func NewLabelSet(labels ...LabelID) LabelSet {
	res := make(LabelSet, 0, len(labels))
	res = append(res, labels...)
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	out := res[:0]
	for i, l := range res {
		if i == 0 || l != res[i-1] {
			out = append(out, l)
		}
	}
	return out
}

// HasAll returns true if every label in 'required' is in this set.
func (s LabelSet) HasAll(required LabelSet) bool {
	i := 0
	for _, r := range required {
		for i < len(s) && s[i] < r {
			i++
		}
		if i == len(s) || s[i] != r {
			return false
		}
	}
	return true
}

// Key returns a string identifying the set, used to intern label sets.
func (s LabelSet) Key() string {
	var b strings.Builder
	for i, l := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", l)
	}
	return b.String()
}

// ValueKind is the type of a property's values.
type ValueKind uint8

// Kinds of property values.
const (
	ValueInvalid ValueKind = iota
	ValueInt64
	ValueUInt64
	ValueFloat64
	ValueString
	ValueBool
)

func (k ValueKind) String() string {
	switch k {
	case ValueInt64:
		return "Int64"
	case ValueUInt64:
		return "UInt64"
	case ValueFloat64:
		return "Double"
	case ValueString:
		return "String"
	case ValueBool:
		return "Bool"
	}
	return "Invalid"
}

// PropertyType describes a property key in the catalog.
type PropertyType struct {
	ID   PropertyTypeID
	Name string
	Kind ValueKind
}

// Metadata is the read-only catalog of a graph. The query core only uses it
// to resolve constraints; it never modifies it.
type Metadata interface {
	// Labels returns the label ID for each label name.
	Labels() map[string]LabelID
	// EdgeTypes returns the edge type ID for each edge type name.
	EdgeTypes() map[string]EdgeTypeID
	// PropTypes returns the property types by name.
	PropTypes() map[string]PropertyType
	// LabelSets enumerates every label set in use, in ascending ID order.
	LabelSets() []LabelSetEntry
}

// LabelSetEntry pairs an interned label set with its ID.
type LabelSetEntry struct {
	ID     LabelSetID
	Labels LabelSet
}

// Edge is the record returned by edge traversals.
type Edge struct {
	ID   EdgeID
	Src  NodeID
	Tgt  NodeID
	Type EdgeTypeID
}

// Other returns the endpoint of the edge that isn't 'from'.
func (e Edge) Other(from NodeID) NodeID {
	if e.Src == from {
		return e.Tgt
	}
	return e.Src
}

// View is a read-only snapshot of a graph. All methods return entities in
// ascending ID order.
type View interface {
	Metadata() Metadata
	// ScanNodes calls fn for each node ID, starting after 'after' (use 0 to
	// start from the beginning), until fn returns false.
	ScanNodes(after NodeID, fn func(NodeID) bool)
	// ScanNodesByLabel is like ScanNodes but only visits nodes whose label
	// set contains all of 'labels'.
	ScanNodesByLabel(labels LabelSet, after NodeID, fn func(NodeID) bool)
	// OutEdges returns the edges whose source is the node.
	OutEdges(NodeID) []Edge
	// InEdges returns the edges whose target is the node.
	InEdges(NodeID) []Edge
	// NodeLabelSet returns the ID of the node's label set.
	NodeLabelSet(NodeID) (LabelSetID, bool)
	// EdgeType returns the type of an edge.
	EdgeType(EdgeID) (EdgeTypeID, bool)
	// NodeProperty returns the value of a node property, if set. The value's
	// Go type matches the property type's kind: int64, uint64, float64,
	// string, or bool.
	NodeProperty(NodeID, PropertyTypeID) (interface{}, bool)
	// EdgeProperty is like NodeProperty for edges.
	EdgeProperty(EdgeID, PropertyTypeID) (interface{}, bool)
}

// Writer applies changes requested by write queries. Implementations buffer
// or apply them; commit bookkeeping happens outside the query core.
type Writer interface {
	CreateNode(labels []string, props map[string]interface{}) (NodeID, error)
	CreateEdge(src, tgt NodeID, edgeType string, props map[string]interface{}) (EdgeID, error)
	DeleteNode(NodeID) error
	DeleteEdge(EdgeID) error
	SetNodeProperty(id NodeID, prop string, value interface{}) error
	SetEdgeProperty(id EdgeID, prop string, value interface{}) error
}

// GraphInfo describes one graph of a Catalog.
type GraphInfo struct {
	ID    string
	Name  string
	Nodes int
	Edges int
}

// Catalog manages the named graphs of a database. It backs the graph
// administration commands.
type Catalog interface {
	// CreateGraph adds a new empty graph. The name must not be in use.
	CreateGraph(name string) (GraphInfo, error)
	// LoadGraph reads a dataset from path and adds it as a new graph.
	LoadGraph(name, path string) (GraphInfo, error)
	// ListGraphs returns every graph, sorted by name.
	ListGraphs() []GraphInfo
}
