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
package loadset

import (
	"context"
	"sync"

	A "github.com/IBM/fp-go/array"

	"fimo.dev/module/depgraph"
	"fimo.dev/module/fimoerr"
	"fimo.dev/module/future"
	"fimo.dev/module/symref"
)

// exportOwner pairs one symbol key with the candidate that declares it,
// the flattened shape serialize folds candidates' export lists into
// before grouping by key.
type exportOwner struct {
	key symref.Key
	c   *candidate
}

// committed pairs a staged candidate with the load task driving it and the
// future the event loop is advancing that task through.
type committedTask struct {
	c    *candidate
	task *loadTask
	fsm  *future.FSM[error]
	fut  *future.EnqueuedFuture[error]
}

// Commit serializes the staged batch, spawns one load task per surviving
// candidate onto the event loop, and waits for all of them to either land
// or fail, firing each candidate's callback exactly once. It never
// partially commits a candidate: a candidate either finishes resolveImports
// / construct / start / register in full or is rolled back by its own
// failing step.
//
// Commit may only be called once per Set; a second call fails with
// LoadingInProcess.
func (s *Set) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.committed {
		s.mu.Unlock()
		return fimoerr.New(fimoerr.LoadingInProcess, "loading set already committed")
	}
	s.committed = true
	candidates := s.candidates
	s.candidates = nil
	s.mu.Unlock()

	if err := s.sys.BeginLoadingSet(ctx); err != nil {
		return err
	}
	defer s.sys.EndLoadingSet()

	candidates = s.serialize(candidates)
	if len(candidates) == 0 {
		return nil
	}

	b := &batch{
		sys:        s.sys,
		exportedBy: make(map[symref.Key]string),
		futures:    make(map[string]*future.EnqueuedFuture[error]),
	}
	for _, c := range candidates {
		for _, e := range c.export.StaticExports {
			b.exportedBy[symref.Key{Name: e.Name, Namespace: e.Namespace}] = c.export.Name
		}
		for _, e := range c.export.DynamicExports {
			b.exportedBy[symref.Key{Name: e.Name, Namespace: e.Namespace}] = c.export.Name
		}
	}

	tasks := make([]*committedTask, 0, len(candidates))
	for _, c := range candidates {
		t := newLoadTask(ctx, c, b, s.wp)
		fsm := t.fsm()
		fut := future.Spawn[error](s.el, fsm)
		b.setFuture(c.export.Name, fut)
		tasks = append(tasks, &committedTask{c: c, task: t, fsm: fsm, fut: fut})
	}

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex
	for _, ct := range tasks {
		wg.Add(1)
		go func(ct *committedTask) {
			defer wg.Done()
			_, waitErr := ct.fut.Wait(ctx)
			if waitErr != nil {
				ct.c.fireAbort()
				mu.Lock()
				if firstErr == nil {
					firstErr = waitErr
				}
				mu.Unlock()
				return
			}
			if err := ct.fsm.Err(); err != nil {
				ct.c.fireError(err)
				return
			}
			ct.c.fireSuccess(ct.task.built)
		}(ct)
	}
	wg.Wait()
	return firstErr
}

// serialize applies cross-candidate rules that only make sense over the
// whole staged batch at once: two candidates in the same batch exporting
// the same symbol is rejected for both (there's no ordering between them
// to prefer one over the other), and a cyclic import chain entirely
// within the batch is rejected for every candidate it touches — pinpointing
// the minimal cyclic subset isn't worth the complexity here, so the whole
// batch fails together the way add_instance fails a single instance whole.
func (s *Set) serialize(candidates []*candidate) []*candidate {
	pairs := A.Chain(func(c *candidate) []exportOwner {
		out := make([]exportOwner, 0, len(c.export.StaticExports)+len(c.export.DynamicExports))
		for _, e := range c.export.StaticExports {
			out = append(out, exportOwner{key: symref.Key{Name: e.Name, Namespace: e.Namespace}, c: c})
		}
		for _, e := range c.export.DynamicExports {
			out = append(out, exportOwner{key: symref.Key{Name: e.Name, Namespace: e.Namespace}, c: c})
		}
		return out
	})(candidates)

	owners := make(map[symref.Key][]*candidate)
	for _, p := range pairs {
		owners[p.key] = append(owners[p.key], p.c)
	}

	conflicted := make(map[*candidate]symref.Key)
	uniqueOwner := make(map[symref.Key]string)
	for key, cs := range owners {
		if len(cs) > 1 {
			for _, c := range cs {
				conflicted[c] = key
			}
			continue
		}
		uniqueOwner[key] = cs[0].export.Name
	}

	survivors := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if key, bad := conflicted[c]; bad {
			c.fireError(fimoerr.New(fimoerr.Duplicate, "%s: %s exported by more than one candidate in this batch", c.export.Name, key))
			_ = c.module.Release()
			continue
		}
		survivors = append(survivors, c)
	}

	graph := depgraph.New()
	for _, c := range survivors {
		graph.AddNode(c.export.Name)
	}
	for _, c := range survivors {
		for _, imp := range c.export.SymbolImports {
			key := symref.Key{Name: imp.Name, Namespace: imp.Namespace}
			if owner, ok := uniqueOwner[key]; ok && owner != c.export.Name {
				_ = graph.AddEdge(c.export.Name, owner)
			}
		}
	}
	if !graph.IsCyclic() {
		return survivors
	}

	for _, c := range survivors {
		c.fireError(fimoerr.New(fimoerr.CyclicDependency, "%s: batch contains a cyclic in-batch import chain", c.export.Name))
		_ = c.module.Release()
	}
	return nil
}
