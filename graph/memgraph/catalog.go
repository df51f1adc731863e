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
	"sort"
	"sync"

	"github.com/ebay/akgraph/graph"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Entry describes a graph held in a Catalog.
type Entry struct {
	ID    uuid.UUID
	Name  string
	Graph *Graph
}

// Info summarizes the entry.
func (e *Entry) Info() graph.GraphInfo {
	return graph.GraphInfo{
		ID:    e.ID.String(),
		Name:  e.Name,
		Nodes: e.Graph.NumNodes(),
		Edges: e.Graph.NumEdges(),
	}
}

// Catalog is a named collection of graphs. It backs the CREATE GRAPH, LOAD
// GRAPH, and LIST GRAPH commands. It's safe for concurrent use.
type Catalog struct {
	lock   sync.Mutex
	graphs map[string]*Entry
	// Directory that LoadGraph resolves relative dataset paths against.
	dataDir string
}

// NewCatalog returns an empty catalog. Datasets named by LoadGraph are looked
// up in dataDir.
func NewCatalog(dataDir string) *Catalog {
	return &Catalog{
		graphs:  make(map[string]*Entry),
		dataDir: dataDir,
	}
}

// Ensures that Catalog implements graph.Catalog.
var _ graph.Catalog = (*Catalog)(nil)

// CreateGraph adds a new empty graph. It returns an error if the name is
// already in use.
func (c *Catalog) CreateGraph(name string) (graph.GraphInfo, error) {
	e, err := c.add(name, New())
	if err != nil {
		return graph.GraphInfo{}, err
	}
	return e.Info(), nil
}

func (c *Catalog) add(name string, g *Graph) (*Entry, error) {
	if name == "" {
		return nil, fmt.Errorf("graph name must not be empty")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, exists := c.graphs[name]; exists {
		return nil, fmt.Errorf("graph %q already exists", name)
	}
	e := &Entry{ID: uuid.New(), Name: name, Graph: g}
	c.graphs[name] = e
	log.WithFields(log.Fields{
		"graph": name,
		"id":    e.ID,
		"nodes": g.NumNodes(),
		"edges": g.NumEdges(),
	}).Info("Added graph to catalog")
	return e, nil
}

// LoadGraph reads a YAML dataset (see LoadYAML) and adds it under the given
// name. If path is relative, it's resolved against the catalog's data
// directory.
func (c *Catalog) LoadGraph(name, path string) (graph.GraphInfo, error) {
	g, err := LoadYAMLFile(resolvePath(c.dataDir, path))
	if err != nil {
		return graph.GraphInfo{}, err
	}
	e, err := c.add(name, g)
	if err != nil {
		return graph.GraphInfo{}, err
	}
	return e.Info(), nil
}

// Get returns the named graph, or nil.
func (c *Catalog) Get(name string) *Entry {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.graphs[name]
}

// ListGraphs returns the graphs sorted by name.
func (c *Catalog) ListGraphs() []graph.GraphInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	res := make([]graph.GraphInfo, 0, len(c.graphs))
	for _, e := range c.graphs {
		res = append(res, e.Info())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
