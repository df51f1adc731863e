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

// Package astyaml reads annotated queries from YAML. The query text parser and
// semantic analyzer live outside the query core; this package is the stand-in
// used by tests and tools. It decodes a structural description of the query
// and resolves variables, labels, edge types, property types, and functions
// against the graph's metadata, the way the analyzer would.
//
// A query file looks like this:
//
//	# Who knows someone younger?
//	- match:
//	    patterns:
//	      - - node: {var: a, labels: [Person]}
//	        - edge: {dir: out, types: [KNOWS]}
//	        - node: {var: b}
//	    where: {op: ">", lhs: {prop: a.age}, rhs: {prop: b.age}}
//	- return:
//	    items:
//	      - {expr: {prop: b.name}, as: name}
//	    limit: {lit: 10}
package astyaml

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseFile reads and resolves a query from a YAML file.
func ParseFile(path string, md graph.Metadata) (*ast.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	q, err := Parse(f, md)
	return q, errors.Wrapf(err, "error reading query %v", path)
}

// Parse reads and resolves a query. All resolution problems are reported
// together.
func Parse(r io.Reader, md graph.Metadata) (*ast.Query, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var stmts []*stmtYAML
	if err := decoder.Decode(&stmts); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("query has no statements")
		}
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("query has no statements")
	}
	res := resolver{
		md:    md,
		query: &ast.Query{Decls: new(ast.DeclContext)},
	}
	for _, s := range stmts {
		if stmt := res.stmt(s); stmt != nil {
			res.query.Stmts = append(res.query.Stmts, stmt)
		}
	}
	if err := res.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return res.query, nil
}

func locOf(n *yaml.Node) ast.Location {
	return ast.Location{Line: n.Line, Column: n.Column}
}

type stmtYAML struct {
	loc ast.Location

	Match       *matchYAML      `yaml:"match"`
	Return      *returnYAML     `yaml:"return"`
	Create      *createYAML     `yaml:"create"`
	Set         []*setYAML      `yaml:"set"`
	Delete      []string        `yaml:"delete"`
	Call        *callYAML       `yaml:"call"`
	CreateGraph string          `yaml:"createGraph"`
	LoadGraph   *loadGraphYAML  `yaml:"loadGraph"`
	ListGraphs  bool            `yaml:"listGraphs"`
	S3Connect   *s3ConnectYAML  `yaml:"s3Connect"`
	S3Transfer  *s3TransferYAML `yaml:"s3Transfer"`
}

func (s *stmtYAML) UnmarshalYAML(n *yaml.Node) error {
	type plain stmtYAML
	s.loc = locOf(n)
	return n.Decode((*plain)(s))
}

type matchYAML struct {
	Patterns []patternYAML `yaml:"patterns"`
	Where    *exprYAML     `yaml:"where"`
}

type createYAML struct {
	Patterns []patternYAML `yaml:"patterns"`
}

// patternYAML alternates node and edge entries, starting and ending with a
// node.
type patternYAML []*partYAML

type partYAML struct {
	loc ast.Location

	Node *entityYAML `yaml:"node"`
	Edge *entityYAML `yaml:"edge"`
}

func (p *partYAML) UnmarshalYAML(n *yaml.Node) error {
	type plain partYAML
	p.loc = locOf(n)
	return n.Decode((*plain)(p))
}

type entityYAML struct {
	Var    string               `yaml:"var"`
	Labels []string             `yaml:"labels"`
	Types  []string             `yaml:"types"`
	Dir    string               `yaml:"dir"`
	Props  map[string]*exprYAML `yaml:"props"`
}

type returnYAML struct {
	Distinct bool        `yaml:"distinct"`
	Items    []*itemYAML `yaml:"items"`
	OrderBy  []*sortYAML `yaml:"orderBy"`
	Skip     *exprYAML   `yaml:"skip"`
	Limit    *exprYAML   `yaml:"limit"`
}

type itemYAML struct {
	Expr *exprYAML `yaml:"expr"`
	As   string    `yaml:"as"`
}

type sortYAML struct {
	Expr *exprYAML `yaml:"expr"`
	Desc bool      `yaml:"desc"`
}

type setYAML struct {
	loc ast.Location

	Prop  string    `yaml:"prop"`
	Value *exprYAML `yaml:"value"`
}

func (s *setYAML) UnmarshalYAML(n *yaml.Node) error {
	type plain setYAML
	s.loc = locOf(n)
	return n.Decode((*plain)(s))
}

type callYAML struct {
	Procedure string       `yaml:"procedure"`
	Yield     []*yieldYAML `yaml:"yield"`
}

type yieldYAML struct {
	Field string `yaml:"field"`
	As    string `yaml:"as"`
}

type loadGraphYAML struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type s3ConnectYAML struct {
	AccessID  string `yaml:"accessId"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
}

type s3TransferYAML struct {
	Direction string `yaml:"direction"`
	URL       string `yaml:"url"`
	LocalDir  string `yaml:"localDir"`
}

// exprYAML is an expression. Exactly one of Lit, Var, Prop, Is, Op, Func, or
// Path is set.
type exprYAML struct {
	loc ast.Location

	Lit  yaml.Node    `yaml:"lit"`
	Var  string       `yaml:"var"`
	Prop string       `yaml:"prop"`
	Is   *isYAML      `yaml:"is"`
	Op   string       `yaml:"op"`
	LHS  *exprYAML    `yaml:"lhs"`
	RHS  *exprYAML    `yaml:"rhs"`
	Arg  *exprYAML    `yaml:"arg"`
	Func string       `yaml:"func"`
	Args []*exprYAML  `yaml:"args"`
	Path *patternYAML `yaml:"path"`
}

func (e *exprYAML) UnmarshalYAML(n *yaml.Node) error {
	type plain exprYAML
	e.loc = locOf(n)
	return n.Decode((*plain)(e))
}

type isYAML struct {
	Var   string   `yaml:"var"`
	Types []string `yaml:"types"`
}

// sortedKeys returns the keys of a property map in a stable order.
func sortedKeys(m map[string]*exprYAML) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
