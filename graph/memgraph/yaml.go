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

package memgraph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ebay/akgraph/graph"
	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Dataset is the YAML representation of a graph, as read by LoadYAML:
//
//	nodes:
//	  - key: alice
//	    labels: [Person]
//	    props: {name: Alice, age: 31}
//	edges:
//	  - src: alice
//	    tgt: bob
//	    type: KNOWS
//	    props: {since: 2010}
//
// Node keys are only used to refer to nodes from edges; the graph assigns its
// own IDs in the order nodes are listed.
type Dataset struct {
	Nodes []DatasetNode `yaml:"nodes"`
	Edges []DatasetEdge `yaml:"edges"`
}

// DatasetNode is a node in a Dataset.
type DatasetNode struct {
	Key    string                 `yaml:"key"`
	Labels []string               `yaml:"labels"`
	Props  map[string]interface{} `yaml:"props"`
}

// DatasetEdge is an edge in a Dataset.
type DatasetEdge struct {
	Src   string                 `yaml:"src"`
	Tgt   string                 `yaml:"tgt"`
	Type  string                 `yaml:"type"`
	Props map[string]interface{} `yaml:"props"`
}

// LoadYAMLFile reads a dataset from a file.
func LoadYAMLFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("error loading dataset %v: %v", path, err)
	}
	return g, nil
}

// LoadYAML reads a dataset and builds a new graph from it. All problems in the
// dataset are reported together.
func LoadYAML(r io.Reader) (*Graph, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var ds Dataset
	if err := decoder.Decode(&ds); err != nil && err != io.EOF {
		return nil, err
	}
	g := New()
	var errs *multierror.Error
	keys := make(map[string]graph.NodeID, len(ds.Nodes))
	for i, n := range ds.Nodes {
		if n.Key != "" {
			if _, dup := keys[n.Key]; dup {
				errs = multierror.Append(errs, fmt.Errorf("node %d: duplicate key %q", i, n.Key))
				continue
			}
		}
		id, err := g.CreateNode(n.Labels, n.Props)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("node %d: %v", i, err))
			continue
		}
		if n.Key != "" {
			keys[n.Key] = id
		}
	}
	for i, e := range ds.Edges {
		src, srcOK := keys[e.Src]
		tgt, tgtOK := keys[e.Tgt]
		if !srcOK || !tgtOK {
			errs = multierror.Append(errs, fmt.Errorf("edge %d: unknown endpoint (src %q, tgt %q)", i, e.Src, e.Tgt))
			continue
		}
		if e.Type == "" {
			errs = multierror.Append(errs, fmt.Errorf("edge %d: missing type", i))
			continue
		}
		if _, err := g.CreateEdge(src, tgt, e.Type, e.Props); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("edge %d: %v", i, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return g, nil
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
