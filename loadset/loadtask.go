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

	"github.com/google/uuid"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/future"
	"fimo.dev/module/instance"
	"fimo.dev/module/modhandle"
	"fimo.dev/module/symref"
	"fimo.dev/module/system"
)

// batch is the cross-candidate context a load task needs to resolve
// imports that land on a sibling still being built in the same commit,
// rather than an already-registered instance. futures fills in
// incrementally as Commit spawns each task, so every access goes through
// mu: a task's own FSM can start running on the event loop before its
// siblings have all been spawned.
type batch struct {
	sys        *system.System
	exportedBy map[symref.Key]string // symbol -> candidate instance name, fixed before any task runs

	mu      sync.Mutex
	futures map[string]*future.EnqueuedFuture[error] // candidate instance name -> its task future
}

func (b *batch) setFuture(name string, fut *future.EnqueuedFuture[error]) {
	b.mu.Lock()
	b.futures[name] = fut
	b.mu.Unlock()
}

func (b *batch) getFuture(name string) (*future.EnqueuedFuture[error], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fut, ok := b.futures[name]
	return fut, ok
}


// loadTask is the per-candidate state machine driving a commit: resolve
// imports (waiting on siblings still loading in this batch if necessary),
// construct the instance, start it, and register it with the system.
type loadTask struct {
	id    uuid.UUID // correlation id for trace output, one per candidate per commit
	c     *candidate
	batch *batch
	wp    *future.WorkerPool
	ctx   context.Context

	watching     map[string]bool
	imports      map[modhandle.SymbolImportDecl]any
	importOwners map[modhandle.SymbolImportDecl]*instance.Handle
	built        *instance.Handle
	started      bool
	refdNS       []string

	constructBox *future.Box[*instance.Handle]
	startBox     *future.Box[error]
}

// cleanup unwinds whatever this task has built so far: it releases any
// namespace references taken in resolveImports and destroys the
// partially- or fully-built instance, stopping it first if it had reached
// Started. Idempotent so every failing state may call it unconditionally.
func (t *loadTask) cleanup() {
	for _, ns := range t.refdNS {
		t.batch.sys.Symbols().UnrefNamespace(ns)
	}
	t.refdNS = nil

	if t.built == nil {
		return
	}
	if t.started {
		_ = t.built.Stop(t.ctx)
	}
	t.built.DestroyPartial()
	t.built = nil
}

func newLoadTask(ctx context.Context, c *candidate, b *batch, wp *future.WorkerPool) *loadTask {
	return &loadTask{
		id: uuid.New(),
		c:  c, batch: b, wp: wp, ctx: ctx,
		imports:      make(map[modhandle.SymbolImportDecl]any),
		importOwners: make(map[modhandle.SymbolImportDecl]*instance.Handle),
		watching:     make(map[string]bool),
	}
}

func (t *loadTask) fsm() *future.FSM[error] {
	states := []future.State{t.resolveImports, t.construct, t.start, t.register}
	unwind := []func(error){
		nil,
		func(err error) { if err != nil { t.cleanup() } },
		func(err error) { if err != nil { t.cleanup() } },
		func(err error) { if err != nil { t.cleanup() } },
	}
	return future.NewFSM[error](states, unwind)
}

func (t *loadTask) resolveImports(w future.Waker) (future.Step, error) {
	exp := t.c.export

	for _, ni := range exp.NamespaceImports {
		if !t.batch.sys.Symbols().NamespaceExists(ni.Namespace) {
			return future.Yield, fimoerr.New(fimoerr.NotFound, "%s: namespace %s does not exist", exp.Name, ni.Namespace)
		}
	}

	allResolved := true
	var pendingOwners []string
	for _, imp := range exp.SymbolImports {
		if _, ok := t.imports[imp]; ok {
			continue
		}
		key := symref.Key{Name: imp.Name, Namespace: imp.Namespace}
		if entry, ok := t.batch.sys.Symbols().LookupCompatible(imp.Name, imp.Namespace, imp.Version); ok {
			owner, ok := t.batch.sys.Get(entry.Owner)
			if !ok {
				return future.Yield, fimoerr.New(fimoerr.NotFound, "%s: owner %s of %s vanished", exp.Name, entry.Owner, key)
			}
			val, err := owner.LoadSymbol(imp.Name, imp.Namespace, imp.Version)
			if err != nil {
				return future.Yield, err
			}
			t.imports[imp] = val
			t.importOwners[imp] = owner
			continue
		}
		// Not registered yet: maybe a sibling candidate in this batch
		// exports it and just hasn't finished building — wait for its
		// future, unless it has already finished (successfully or not)
		// without the symbol showing up, which means it's a genuine
		// failure to resolve rather than something still in flight.
		if owner, inBatch := t.batch.exportedBy[key]; inBatch {
			if fut, ok := t.batch.getFuture(owner); ok && fut.Ready() {
				return future.Yield, fimoerr.New(fimoerr.NotFound, "%s: required symbol %s failed to resolve from %s", exp.Name, key, owner)
			}
			allResolved = false
			pendingOwners = append(pendingOwners, owner)
			continue
		}
		return future.Yield, fimoerr.New(fimoerr.NotFound, "%s: required symbol %s not found", exp.Name, key)
	}

	if !allResolved {
		t.watchOwners(w, pendingOwners)
		return future.Yield, nil
	}

	for _, ni := range exp.NamespaceImports {
		if err := t.batch.sys.Symbols().RefNamespace(ni.Namespace); err == nil {
			t.refdNS = append(t.refdNS, ni.Namespace)
		}
	}
	return future.Next, nil
}

// watchOwners parks this task's waker behind the completion of every
// owner name in owners not already being watched: when any of them lands,
// this task re-checks whether its own imports are now satisfiable. A
// sibling whose future hasn't been registered in the batch yet (it's
// still being spawned) is skipped, and this task's waker is signalled so
// the next resolveImports call retries it.
func (t *loadTask) watchOwners(w future.Waker, owners []string) {
	for _, owner := range owners {
		if t.watching[owner] {
			continue
		}
		fut, ok := t.batch.getFuture(owner)
		if !ok {
			w.WakeRef()
			continue
		}
		t.watching[owner] = true
		wRef := w.Clone()
		go func() {
			_, _ = fut.Wait(t.ctx)
			wRef.WakeRef()
		}()
	}
}

func (t *loadTask) construct(w future.Waker) (future.Step, error) {
	if t.constructBox == nil {
		exp := t.c.export
		t.constructBox = future.Submit[*instance.Handle](t.wp, w, func() (*instance.Handle, error) {
			return instance.NewRegular(exp.Name, exp, t.c.module, t.batch.sys.Logger()), nil
		})
	}
	h, err, ok := t.constructBox.Get()
	if !ok {
		return future.Yield, nil
	}
	if err != nil {
		return future.Yield, err
	}
	t.built = h

	for _, owner := range t.importOwners {
		_ = h.AddDependency(owner.Name(), owner, instance.Static)
	}

	buildCtx := modhandle.BuildContext{InstanceName: h.Name(), Imports: map[modhandle.SymbolImportDecl]any{}}
	for imp, val := range t.imports {
		buildCtx.Imports[imp] = val
	}
	for _, exp := range t.c.export.StaticExports {
		if err := exportOne(h, exp, buildCtx); err != nil {
			return future.Yield, err
		}
	}
	for _, exp := range t.c.export.DynamicExports {
		if err := exportOne(h, exp, buildCtx); err != nil {
			return future.Yield, err
		}
	}
	for _, ni := range t.c.export.NamespaceImports {
		_ = h.AddNamespace(ni.Namespace, instance.Static)
	}

	return future.Next, nil
}

func exportOne(h *instance.Handle, exp modhandle.SymbolExportDecl, buildCtx modhandle.BuildContext) error {
	value := exp.Value
	if exp.Dynamic && exp.Constructor != nil {
		v, err := exp.Constructor(buildCtx)
		if err != nil {
			return fimoerr.Wrap(fimoerr.InvalidExport, err, "constructing dynamic export %s::%s", exp.Namespace, exp.Name)
		}
		value = v
	}
	h.ExportSymbol(exp.Name, exp.Namespace, exp.Version, value, exp.Destructor)
	return nil
}

func (t *loadTask) start(w future.Waker) (future.Step, error) {
	if t.startBox == nil {
		h := t.built
		t.startBox = future.Submit[error](t.wp, w, func() (error, error) {
			return h.Start(t.ctx), nil
		})
	}
	startErr, _, ok := t.startBox.Get()
	if !ok {
		return future.Yield, nil
	}
	if startErr != nil {
		return future.Yield, startErr
	}
	t.started = true
	return future.Next, nil
}

func (t *loadTask) register(future.Waker) (future.Step, error) {
	if err := t.batch.sys.AddInstance(t.built); err != nil {
		return future.Yield, err
	}
	t.batch.sys.Logger().Tracef("load task %s: registered %s", t.id, t.c.export.Name)
	return future.Ret, nil
}
