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
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ebay/akgraph/util/cmp"
)

// String returns a multi-line indented human-readable string describing the
// plan. Each root is printed followed by its outputs, indented. A node with
// several inputs is printed in full under its first input only; later
// occurrences just refer back to it by ID.
func (g *Graph) String() string {
	var b strings.Builder
	printed := make(map[NodeID]bool)
	var print func(id NodeID, indent string)
	print = func(id NodeID, indent string) {
		n := g.Node(id)
		if printed[id] {
			fmt.Fprintf(&b, "%s#%d ^\n", indent, id)
			return
		}
		printed[id] = true
		fmt.Fprintf(&b, "%s#%d %v\n", indent, id, n.Op)
		for _, out := range n.outputs {
			print(out, indent+"\t")
		}
	}
	for _, root := range g.Roots() {
		print(root, "")
	}
	return b.String()
}

// Graphviz writes a dot description of the plan to w. It ignores write
// errors.
func (g *Graph) Graphviz(w io.Writer) {
	fmt.Fprintf(w, "digraph plan {\n")
	fmt.Fprintf(w, "\tnode [shape=box fontname=\"Helvetica\"];\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(w, "\tn%d [label=%s];\n", n.ID,
			strconv.Quote(fmt.Sprintf("#%d %v", n.ID, n.Op)))
	}
	for _, n := range g.Nodes() {
		for i, out := range n.outputs {
			if len(n.outputs) > 1 {
				fmt.Fprintf(w, "\tn%d -> n%d [label=\"%d\"];\n", n.ID, out, i)
			} else {
				fmt.Fprintf(w, "\tn%d -> n%d;\n", n.ID, out)
			}
		}
	}
	fmt.Fprintf(w, "}\n")
}

// Fingerprint returns a digest of the plan's structure and operators. Two
// plans with the same nodes, operator keys, and edges have the same
// fingerprint.
func (g *Graph) Fingerprint() uint64 {
	h := xxhash.New()
	for _, n := range g.Nodes() {
		fmt.Fprintf(h, "%d %s ->", n.ID, cmp.GetKey(n.Op))
		for _, out := range n.outputs {
			fmt.Fprintf(h, " %d", out)
		}
		h.WriteString("\n")
	}
	return h.Sum64()
}
