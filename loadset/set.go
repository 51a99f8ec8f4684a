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

// Package loadset implements the loading set: a staged, validated batch of
// module candidates, committed together through a dependency-ordered
// spawn-and-drain pipeline. A commit either lands every candidate that
// passes validation or reports, per candidate, why it didn't.
package loadset

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/future"
	"fimo.dev/module/instance"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/internal/tmpdir"
	"fimo.dev/module/modhandle"
	"fimo.dev/module/set"
	"fimo.dev/module/symref"
	"fimo.dev/module/system"
)

// candidate is one staged export record waiting to become an instance.
type candidate struct {
	export *modhandle.ExportRecord
	module *modhandle.Handle

	onSuccess func(*instance.Handle)
	onError   func(error)
	onAbort   func()
	fired     bool
}

// Set stages candidates and, on Commit, builds them into registered
// instances.
type Set struct {
	mu         sync.Mutex
	sys        *system.System
	loader     modhandle.Loader
	tmp        *tmpdir.Dir
	sem        *semaphore.Weighted
	logger     *logging.Logger
	el         *future.EventLoop
	wp         *future.WorkerPool
	candidates []*candidate
	committed  bool
}

// New returns an empty loading set bound to sys. el/wp are the event loop
// and worker pool the commit pipeline schedules onto; the owning context
// root keeps them alive and shares them across loading sets.
func New(sys *system.System, loader modhandle.Loader, tmp *tmpdir.Dir, logger *logging.Logger, el *future.EventLoop, wp *future.WorkerPool) *Set {
	return &Set{
		sys:    sys,
		loader: loader,
		tmp:    tmp,
		logger: logger,
		el:     el,
		wp:     wp,
		sem:    semaphore.NewWeighted(4),
	}
}

// AddModule opens the module binary at path and stages one candidate per
// export record it yields.
func (s *Set) AddModule(ctx context.Context, path string, onSuccess func(*instance.Handle), onError func(error), onAbort func()) error {
	mod, err := modhandle.FromPath(ctx, s.loader, s.tmp, path, s.sem)
	if err != nil {
		return err
	}
	return s.addFromHandle(mod, onSuccess, onError, onAbort)
}

// AddModulesFromLocal stages candidates from an already-open module
// handle (typically the current binary, for statically linked modules).
func (s *Set) AddModulesFromLocal(mod *modhandle.Handle, onSuccess func(*instance.Handle), onError func(error), onAbort func()) error {
	mod.Acquire()
	return s.addFromHandle(mod, onSuccess, onError, onAbort)
}

func (s *Set) addFromHandle(mod *modhandle.Handle, onSuccess func(*instance.Handle), onError func(error), onAbort func()) error {
	exports := mod.Exports(nil)
	if len(exports) == 0 {
		_ = mod.Release()
		return fimoerr.New(fimoerr.InvalidModule, "module exposes no export records")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed {
		return fimoerr.New(fimoerr.LoadingInProcess, "loading set already committed")
	}

	for _, exp := range exports {
		c := &candidate{export: exp, module: mod, onSuccess: onSuccess, onError: onError, onAbort: onAbort}
		if err := validate(exp); err != nil {
			c.fireError(err)
			continue
		}
		s.candidates = append(s.candidates, c)
	}
	return nil
}

func (c *candidate) fireError(err error) {
	if c.fired {
		return
	}
	c.fired = true
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *candidate) fireSuccess(h *instance.Handle) {
	if c.fired {
		return
	}
	c.fired = true
	if c.onSuccess != nil {
		c.onSuccess(h)
	}
}

func (c *candidate) fireAbort() {
	if c.fired {
		return
	}
	c.fired = true
	if c.onAbort != nil {
		c.onAbort()
	}
}

// validate applies the per-candidate rules: reserved instance names,
// at-most-once namespace imports, the global namespace never being an
// explicit import, no symbol import from a namespace the candidate hasn't
// itself imported (or the implicit global one), no export declared twice,
// no symbol both imported and exported, and no modifier key repeated.
func validate(exp *modhandle.ExportRecord) error {
	if strings.HasPrefix(exp.Name, "__") {
		return fimoerr.New(fimoerr.InvalidExport, "instance name %q uses the reserved __ prefix", exp.Name)
	}

	seenNS := set.NewSet[string]()
	for _, ni := range exp.NamespaceImports {
		if ni.Namespace == "" {
			return fimoerr.New(fimoerr.InvalidExport, "%s: the global namespace is implicit and cannot be imported", exp.Name)
		}
		if seenNS.Has(ni.Namespace) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: namespace %s imported more than once", exp.Name, ni.Namespace)
		}
		seenNS.Add(ni.Namespace)
	}

	exportKeys := set.NewSet[symref.Key]()
	for _, e := range exp.StaticExports {
		key := symref.Key{Name: e.Name, Namespace: e.Namespace}
		if exportKeys.Has(key) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: %s exported more than once", exp.Name, key)
		}
		exportKeys.Add(key)
	}
	for _, e := range exp.DynamicExports {
		key := symref.Key{Name: e.Name, Namespace: e.Namespace}
		if exportKeys.Has(key) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: %s exported more than once", exp.Name, key)
		}
		exportKeys.Add(key)
	}
	for _, imp := range exp.SymbolImports {
		if imp.Namespace != "" && !seenNS.Has(imp.Namespace) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: symbol import %s::%s is from namespace %s, which is neither imported nor global", exp.Name, imp.Namespace, imp.Name, imp.Namespace)
		}
		key := symref.Key{Name: imp.Name, Namespace: imp.Namespace}
		if exportKeys.Has(key) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: %s is both imported and exported", exp.Name, key)
		}
	}

	seenMod := set.NewSet[string]()
	for _, m := range exp.Modifiers {
		if seenMod.Has(m.Key) {
			return fimoerr.New(fimoerr.InvalidExport, "%s: modifier %s set more than once", exp.Name, m.Key)
		}
		seenMod.Add(m.Key)
	}
	return nil
}
