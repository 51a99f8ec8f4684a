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

// Package system implements the registry core: the global instance table,
// the dependency graph over instance names, and the symbol/namespace
// registry, tied together by add_instance/remove_instance,
// link_instances/unlink_instances, and prune.
package system

import (
	"context"
	"sync"

	"fimo.dev/module/depgraph"
	"fimo.dev/module/fimoerr"
	"fimo.dev/module/instance"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/symtab"
)

// commitState is the subsystem-wide idle/loading_set state: at most one
// loading set may be mid-commit at a time across the whole System, no
// matter how many Set values target it.
type commitState int

const (
	commitIdle commitState = iota
	commitLoadingSet
)

// System owns the global tables every loaded instance is registered in. It
// holds borrowed references (via instance.Handle.Acquire/Release) to
// instances, never their lifecycle.
type System struct {
	mu        sync.Mutex
	instances map[string]*instance.Handle
	graph     *depgraph.Graph
	symbols   *symtab.Table
	logger    *logging.Logger

	commit        commitState
	commitWaiters []chan struct{}
}

// New returns an empty registry core.
func New(logger *logging.Logger) *System {
	return &System{
		instances: make(map[string]*instance.Handle),
		graph:     depgraph.New(),
		symbols:   symtab.New(),
		logger:    logger,
	}
}

// Symbols exposes the symbol/namespace registry for direct lookups that
// don't need to go through an instance (e.g. the loading set resolving a
// candidate's imports).
func (s *System) Symbols() *symtab.Table { return s.symbols }

// Logger returns the registry's tracing collaborator, for components (like
// the loading set's load tasks) that build instances on the system's
// behalf and need to share its logger.
func (s *System) Logger() *logging.Logger { return s.logger }

// Get returns the instance registered under name.
func (s *System) Get(name string) (*instance.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.instances[name]
	return h, ok
}

// Has reports whether name is currently registered.
func (s *System) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.instances[name]
	return ok
}

// AddInstance registers h under its own name. It is transactional: if
// staging the name, graph node, and exports fails partway through, every
// already-applied step is rolled back before the error is returned.
func (s *System) AddInstance(h *instance.Handle) error {
	name := h.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[name]; exists {
		return fimoerr.New(fimoerr.Duplicate, "instance %s already registered", name)
	}

	// Step 4: every imported namespace must already have a live entry.
	imports := h.NamespaceImports()
	for ns := range imports {
		if !s.symbols.NamespaceExists(ns) {
			return fimoerr.New(fimoerr.NotFound, "add_instance %s: namespace %s does not exist", name, ns)
		}
	}

	s.instances[name] = h
	s.graph.AddNode(name)

	// Step 5: ref each imported namespace, tracked for rollback.
	reffed := make([]string, 0, len(imports))
	for ns := range imports {
		if err := s.symbols.RefNamespace(ns); err != nil {
			s.rollbackAdd(name, nil, reffed)
			return fimoerr.Wrap(fimoerr.NotFound, err, "add_instance %s: referencing namespace %s", name, ns)
		}
		reffed = append(reffed, ns)
	}

	deps := h.DependencyNames()
	for dep := range deps {
		if _, ok := s.instances[dep]; ok {
			if err := s.graph.AddEdge(name, dep); err != nil {
				s.rollbackAdd(name, nil, reffed)
				return fimoerr.Wrap(fimoerr.NotFound, err, "add_instance %s: linking dependency %s", name, dep)
			}
		}
	}

	if s.graph.IsCyclic() {
		s.rollbackAdd(name, nil, reffed)
		return fimoerr.New(fimoerr.CyclicDependency, "add_instance %s would introduce a cycle", name)
	}

	// Step 8: create missing namespace entries for exports, insert symbols.
	exports := h.ExportedSymbols()
	inserted := make([]insertedExport, 0, len(exports))
	for key, exp := range exports {
		s.symbols.EnsureNamespace(key.Namespace)
		if err := s.symbols.InsertSymbol(key.Name, key.Namespace, name, exp.Version); err != nil {
			s.rollbackAdd(name, inserted, reffed)
			return fimoerr.Wrap(fimoerr.Duplicate, err, "add_instance %s: exporting %s", name, key)
		}
		inserted = append(inserted, insertedExport{name: key.Name, ns: key.Namespace})
	}

	return nil
}

type insertedExport struct {
	name, ns string
}

func (s *System) rollbackAdd(name string, inserted []insertedExport, reffed []string) {
	for _, e := range inserted {
		_ = s.symbols.RemoveSymbol(e.name, e.ns)
	}
	for _, ns := range reffed {
		s.symbols.UnrefNamespace(ns)
	}
	s.graph.RemoveNode(name)
	delete(s.instances, name)
}

// RemoveInstance unregisters name: it requires no dependents remain
// (NotPermitted otherwise) and clears every dependency edge and exported
// symbol the instance held.
func (s *System) RemoveInstance(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.instances[name]
	if !ok {
		return fimoerr.New(fimoerr.NotFound, "instance %s not registered", name)
	}
	if dependents := s.graph.Neighbors(name, depgraph.In); len(dependents) > 0 {
		return fimoerr.New(fimoerr.NotPermitted, "instance %s still has dependents", name)
	}

	for key := range h.ExportedSymbols() {
		_ = s.symbols.RemoveSymbol(key.Name, key.Namespace)
	}
	for ns := range h.NamespaceImports() {
		s.symbols.UnrefNamespace(ns)
	}
	s.graph.RemoveNode(name)
	delete(s.instances, name)
	h.ClearDependencies()
	return nil
}

// LinkInstances records a dependency edge from -> to, rejecting the link
// if it would close a cycle.
func (s *System) LinkInstances(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.graph.HasNode(from) {
		return fimoerr.New(fimoerr.NotFound, "instance %s not registered", from)
	}
	if !s.graph.HasNode(to) {
		return fimoerr.New(fimoerr.NotFound, "instance %s not registered", to)
	}
	if s.graph.PathExists(to, from) {
		return fimoerr.New(fimoerr.CyclicDependency, "linking %s -> %s would close a cycle", from, to)
	}
	return s.graph.AddEdge(from, to)
}

// UnlinkInstances removes a previously recorded dependency edge.
func (s *System) UnlinkInstances(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.RemoveEdge(from, to)
}

// Prune unloads every instance with zero incoming dependency edges and a
// zero strong count, repeating until a full pass finds nothing left to
// reclaim (so unloading an external node can expose a fresh external
// underneath it). A started regular instance is stopped before it is
// detached; a started pseudo instance is not stopped, so it stays
// registered. It returns the names it detached.
func (s *System) Prune() []string {
	var unloaded []string
	for {
		progressed := false

		s.mu.Lock()
		candidates := s.graph.Externals(depgraph.In)
		s.mu.Unlock()

		for _, name := range candidates {
			s.mu.Lock()
			h, ok := s.instances[name]
			s.mu.Unlock()
			if !ok || h.StrongCount() != 0 {
				continue
			}

			if h.Kind() == instance.Regular && h.State() == instance.Started {
				if err := h.Stop(context.Background()); err != nil {
					s.logger.Warnf("prune: stop %s: %v", name, err)
					continue
				}
			}
			if err := h.Detach(); err != nil {
				s.logger.Warnf("prune: detach %s: %v", name, err)
				continue
			}
			if err := s.RemoveInstance(name); err != nil {
				s.logger.Warnf("prune: remove %s: %v", name, err)
				continue
			}
			unloaded = append(unloaded, name)
			progressed = true
		}

		if !progressed {
			return unloaded
		}
	}
}

// BeginLoadingSet implements the commit pipeline's serialize step: it
// transitions the subsystem from idle to loading_set, or, if another
// commit already holds that state, enqueues the caller on the waiter list
// and blocks until ownership is handed to it directly (never re-tested
// against idle, so handoff is exact and FIFO). Canceling ctx while queued
// returns ctx.Err() without ever having held the state.
func (s *System) BeginLoadingSet(ctx context.Context) error {
	s.mu.Lock()
	if s.commit == commitIdle {
		s.commit = commitLoadingSet
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.commitWaiters = append(s.commitWaiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.removeWaiter(ch)
		return ctx.Err()
	}
}

func (s *System) removeWaiter(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.commitWaiters {
		if w == ch {
			s.commitWaiters = append(s.commitWaiters[:i], s.commitWaiters[i+1:]...)
			return
		}
	}
}

// EndLoadingSet implements the tail of the commit pipeline's Drain state:
// hand the loading_set state directly to the next queued commit, if any,
// or return the subsystem to idle.
func (s *System) EndLoadingSet() {
	s.mu.Lock()
	if len(s.commitWaiters) > 0 {
		next := s.commitWaiters[0]
		s.commitWaiters = s.commitWaiters[1:]
		s.mu.Unlock()
		close(next)
		return
	}
	s.commit = commitIdle
	s.mu.Unlock()
}
