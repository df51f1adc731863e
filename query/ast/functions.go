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

package ast

import (
	"fmt"
	"strings"
)

// FunctionSignature describes a built-in function, resolved for specific
// argument types.
type FunctionSignature struct {
	Name      string
	Aggregate bool
	Result    EvaluatedType
}

// ResolveFunction returns the signature of the named function when called with
// arguments of the given types. An empty args means count(*). Function names
// are case-insensitive.
func ResolveFunction(name string, args []EvaluatedType) (FunctionSignature, error) {
	lower := strings.ToLower(name)
	sig := FunctionSignature{Name: lower}
	bad := func() (FunctionSignature, error) {
		return FunctionSignature{}, fmt.Errorf("no function %s accepts arguments %v", name, args)
	}
	if lower == "count" {
		if len(args) > 1 {
			return bad()
		}
		sig.Aggregate = true
		sig.Result = TypeInteger
		return sig, nil
	}
	if len(args) != 1 {
		if knownFunction(lower) {
			return bad()
		}
		return FunctionSignature{}, fmt.Errorf("unknown function %s", name)
	}
	arg := args[0]
	switch lower {
	case "sum":
		if !arg.IsNumeric() {
			return bad()
		}
		sig.Aggregate = true
		sig.Result = arg
	case "min", "max":
		if !arg.IsNumeric() && arg != TypeString {
			return bad()
		}
		sig.Aggregate = true
		sig.Result = arg
	case "avg":
		if !arg.IsNumeric() {
			return bad()
		}
		sig.Aggregate = true
		sig.Result = TypeDouble
	case "labels":
		if arg != TypeNode {
			return bad()
		}
		sig.Result = TypeString
	case "edgetypes":
		if arg != TypeEdge {
			return bad()
		}
		sig.Result = TypeString
	case "id":
		if arg != TypeNode && arg != TypeEdge {
			return bad()
		}
		sig.Result = TypeInteger
	case "toupper", "tolower":
		if arg != TypeString {
			return bad()
		}
		sig.Result = TypeString
	case "abs":
		if !arg.IsNumeric() {
			return bad()
		}
		sig.Result = arg
	default:
		return FunctionSignature{}, fmt.Errorf("unknown function %s", name)
	}
	return sig, nil
}

func knownFunction(lower string) bool {
	switch lower {
	case "sum", "min", "max", "avg", "labels", "edgetypes", "id", "toupper", "tolower", "abs":
		return true
	}
	return false
}

// ProcedureColumn is an output column of a procedure.
type ProcedureColumn struct {
	Name string
	Type EvaluatedType
}

// Procedure describes a built-in procedure that can be invoked with CALL.
type Procedure struct {
	Name    string
	Columns []ProcedureColumn
}

// Procedures lists the built-in procedures, which describe the graph catalog.
var Procedures = []Procedure{
	{Name: "db.labels", Columns: []ProcedureColumn{
		{"LabelID", TypeInteger},
		{"LabelName", TypeString},
	}},
	{Name: "db.labelSets", Columns: []ProcedureColumn{
		{"LabelSetID", TypeInteger},
		{"LabelName", TypeString},
	}},
	{Name: "db.propertyTypes", Columns: []ProcedureColumn{
		{"PropertyID", TypeInteger},
		{"PropertyName", TypeString},
		{"PropertyType", TypeString},
	}},
	{Name: "db.edgeTypes", Columns: []ProcedureColumn{
		{"EdgeTypeID", TypeInteger},
		{"EdgeTypeName", TypeString},
	}},
}

// LookupProcedure returns the named procedure, or nil.
func LookupProcedure(name string) *Procedure {
	for i := range Procedures {
		if strings.EqualFold(Procedures[i].Name, name) {
			return &Procedures[i]
		}
	}
	return nil
}

// Column returns the index of the named column, or -1.
func (p *Procedure) Column(name string) int {
	for i, c := range p.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
