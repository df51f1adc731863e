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

package planner

import (
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/plangraph"
	log "github.com/sirupsen/logrus"
)

// Rule is a local rewrite of a plan graph. Apply returns true if it changed
// the plan. Applying a rule to a plan it just rewrote must eventually return
// false.
type Rule struct {
	Name  string
	Apply func(plan *plangraph.Graph) bool
}

// Rules are the rewrite rules Optimize applies, in order.
var Rules = []Rule{
	{Name: "FuseScanAndLabelFilter", Apply: fuseScanAndLabelFilter},
	{Name: "NotNullToGetProperty", Apply: notNullToGetProperty},
	{Name: "PruneDeadNodes", Apply: pruneDeadNodes},
}

// Optimize rewrites the plan with Rules until none of them applies.
func Optimize(plan *plangraph.Graph) {
	for pass := 1; ; pass++ {
		changed := false
		for _, rule := range Rules {
			if rule.Apply(plan) {
				log.WithFields(log.Fields{
					"rule": rule.Name,
					"pass": pass,
				}).Debug("Applied plan rule")
				changed = true
			}
		}
		if !changed {
			return
		}
		if pass > len(Rules)*plan.Len()+1 {
			log.Panicf("Plan rules didn't converge after %d passes:\n%v", pass, plan)
		}
	}
}

// fuseScanAndLabelFilter replaces a ScanNodes feeding only a node filter
// that has labels and nothing else with a ScanNodesByLabel. The original
// pair is left disconnected for PruneDeadNodes.
func fuseScanAndLabelFilter(plan *plangraph.Graph) bool {
	changed := false
	for _, id := range plan.Roots() {
		scan := plan.Node(id)
		if scan.Op.Opcode() != plangraph.OpScanNodes || len(scan.Outputs()) != 1 {
			continue
		}
		filterNode := plan.Node(scan.Outputs()[0])
		filter, ok := filterNode.Op.(*plangraph.Filter)
		if !ok || filter.Opcode() != plangraph.OpNodeFilter ||
			len(filterNode.Inputs()) != 1 ||
			len(filter.Labels) == 0 || len(filter.Predicates) > 0 {
			continue
		}
		byLabel := plan.Add(&plangraph.ScanNodesByLabel{
			Labels: filter.Labels,
			Names:  filter.LabelNames,
		})
		outputs := append([]plangraph.NodeID(nil), filterNode.Outputs()...)
		plan.ClearOutputs(filterNode.ID)
		plan.ClearOutputs(scan.ID)
		for _, out := range outputs {
			plan.Connect(byLabel, out)
		}
		changed = true
	}
	return changed
}

// notNullToGetProperty replaces a filter predicate 'n.p IS NOT NULL' on the
// filter's own variable with a GetProperty after the variable, which drops
// the rows without the property.
func notNullToGetProperty(plan *plangraph.Graph) bool {
	changed := false
	for _, n := range plan.Nodes() {
		filter, ok := n.Op.(*plangraph.Filter)
		if !ok || len(n.Outputs()) != 1 {
			continue
		}
		varNode := n.Outputs()[0]
		if plan.Op(varNode).Opcode() != plangraph.OpVar {
			continue
		}
		for _, pred := range append([]*plangraph.Predicate(nil), filter.Predicates...) {
			unary, ok := pred.Expr.(*ast.Unary)
			if !ok || unary.Op != ast.OpIsNotNull {
				continue
			}
			prop, ok := unary.Operand.(*ast.Property)
			if !ok || prop.Decl != filter.Decl {
				continue
			}
			filter.RemovePredicate(pred)
			plan.InsertAfter(varNode, &plangraph.GetProperty{Decl: prop.Decl, PropType: prop.PropType})
			changed = true
		}
	}
	return changed
}

// pruneDeadNodes removes the nodes whose results nothing uses: nodes
// without outputs that aren't terminal. Removing a node may leave its
// inputs dead too.
func pruneDeadNodes(plan *plangraph.Graph) bool {
	removed := 0
	for {
		var dead []plangraph.NodeID
		for _, id := range plan.Endpoints() {
			if !plangraph.IsTerminal(plan.Op(id)) {
				dead = append(dead, id)
			}
		}
		if len(dead) == 0 {
			return removed > 0
		}
		for _, id := range dead {
			plan.Remove(id)
		}
		removed += len(dead)
	}
}
