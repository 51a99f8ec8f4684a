/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package depgraph implements a directed dependency graph over instance
// names, backed by gonum's graph/simple and graph/topo — the same
// numerical-graph stack other_examples/distr1-distri uses for its build
// scheduler. Edge A→B reads "A requires B".
package depgraph

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Direction selects which side of an edge Neighbors/Externals inspects.
type Direction int

const (
	// Out walks edges away from a node: its dependencies.
	Out Direction = iota
	// In walks edges into a node: the instances depending on it.
	In
)

// Graph holds the subsystem's dependency acyclicity contract: nodes are
// instance identities, edges are "A requires B", and the graph must never
// contain a cycle once a mutation completes.
type Graph struct {
	mu      sync.Mutex
	g       *simple.DirectedGraph
	idOf    map[string]int64
	nameOf  map[int64]string
	nextID  int64
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{
		g:      simple.NewDirectedGraph(),
		idOf:   make(map[string]int64),
		nameOf: make(map[int64]string),
	}
}

// AddNode inserts a node for name. A second insertion is a no-op: the
// system layer is responsible for rejecting duplicate instance names
// before it ever calls AddNode.
func (dg *Graph) AddNode(name string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	if _, ok := dg.idOf[name]; ok {
		return
	}
	id := dg.nextID
	dg.nextID++
	dg.idOf[name] = id
	dg.nameOf[id] = name
	dg.g.AddNode(simple.Node(id))
}

// RemoveNode deletes name and every edge touching it.
func (dg *Graph) RemoveNode(name string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	id, ok := dg.idOf[name]
	if !ok {
		return
	}
	dg.g.RemoveNode(id)
	delete(dg.idOf, name)
	delete(dg.nameOf, id)
}

// HasNode reports whether name has a node in the graph.
func (dg *Graph) HasNode(name string) bool {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	_, ok := dg.idOf[name]
	return ok
}

// AddEdge inserts the edge from→to ("from requires to"). Both endpoints
// must already have nodes.
func (dg *Graph) AddEdge(from, to string) error {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	fid, ok := dg.idOf[from]
	if !ok {
		return fmt.Errorf("depgraph: no node %q", from)
	}
	tid, ok := dg.idOf[to]
	if !ok {
		return fmt.Errorf("depgraph: no node %q", to)
	}
	dg.g.SetEdge(simple.Edge{F: simple.Node(fid), T: simple.Node(tid)})
	return nil
}

// RemoveEdge deletes the edge from→to, if present.
func (dg *Graph) RemoveEdge(from, to string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	fid, ok := dg.idOf[from]
	if !ok {
		return
	}
	tid, ok := dg.idOf[to]
	if !ok {
		return
	}
	dg.g.RemoveEdge(fid, tid)
}

// HasEdge reports whether the edge from→to exists.
func (dg *Graph) HasEdge(from, to string) bool {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	fid, ok := dg.idOf[from]
	if !ok {
		return false
	}
	tid, ok := dg.idOf[to]
	if !ok {
		return false
	}
	return dg.g.HasEdgeFromTo(fid, tid)
}

// PathExists reports whether a directed path from→to exists (used to
// reject link_instances calls that would otherwise close a cycle).
func (dg *Graph) PathExists(from, to string) bool {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	fid, ok := dg.idOf[from]
	if !ok {
		return false
	}
	tid, ok := dg.idOf[to]
	if !ok {
		return false
	}
	if fid == tid {
		return true
	}
	return topo.PathExistsIn(dg.g, simple.Node(fid), simple.Node(tid))
}

// IsCyclic reports whether the graph currently contains any cycle.
func (dg *Graph) IsCyclic() bool {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	_, err := topo.Sort(dg.g)
	return err != nil
}

// Neighbors returns the names reachable by one edge from name in the given
// direction: Out yields name's dependencies, In yields name's dependents.
func (dg *Graph) Neighbors(name string, dir Direction) []string {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	id, ok := dg.idOf[name]
	if !ok {
		return nil
	}

	var nodes graph.Nodes
	if dir == Out {
		nodes = dg.g.From(id)
	} else {
		nodes = dg.g.To(id)
	}

	var names []string
	for nodes.Next() {
		names = append(names, dg.nameOf[nodes.Node().ID()])
	}
	return names
}

// Externals returns every node with no edges in the given direction: with
// dir=In, the nodes nothing depends on — the set a prune pass walks.
func (dg *Graph) Externals(dir Direction) []string {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	var names []string
	nodes := dg.g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		var count int
		if dir == Out {
			count = dg.g.From(id).Len()
		} else {
			count = dg.g.To(id).Len()
		}
		if count == 0 {
			names = append(names, dg.nameOf[id])
		}
	}
	return names
}

// Len returns the number of nodes currently in the graph.
func (dg *Graph) Len() int {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	return len(dg.idOf)
}
