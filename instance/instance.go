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

// Package instance implements the instance handle: the central state
// machine every loaded module instance goes through (uninit -> init ->
// started), its parameter/namespace/dependency/export tables, and the
// handle/strong reference counts that gate detach and unload.
package instance

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/modhandle"
	"fimo.dev/module/param"
	"fimo.dev/module/semverx"
	"fimo.dev/module/set"
	"fimo.dev/module/symref"
)

// State is an instance's lifecycle stage.
type State int

const (
	Uninit State = iota
	Init
	Started
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Init:
		return "init"
	case Started:
		return "started"
	default:
		return "unknown"
	}
}

// Kind distinguishes a regular, module-backed instance from a pseudo
// instance a context root creates to give its own identity a place in the
// dependency/symbol graph.
type Kind int

const (
	Regular Kind = iota
	Pseudo
)

// DependencyKind records whether a dependency edge came from the module's
// own static import declarations (and so can never be removed while the
// instance is loaded) or was added dynamically at runtime.
type DependencyKind int

const (
	Static DependencyKind = iota
	Dynamic
)

// NamespaceKind mirrors DependencyKind for included namespaces.
type NamespaceKind = DependencyKind

// DependencyEntry is one entry in an instance's dependency table: a
// borrowed reference to the depended-on instance, plus how the edge was
// established.
type DependencyEntry struct {
	Handle *Handle
	Kind   DependencyKind
}

// ExportedSymbol is one entry in an instance's own export table.
type ExportedSymbol struct {
	Version     semverx.Version
	Value       any
	Destructor  func(any)
}

// Info is the read-only public view of an instance, safe to hand out
// without exposing the mutable state machine.
type Info struct {
	Name        string
	Description string
	Author      string
	License     string
	ModuleDir   string
	Kind        Kind
}

// Handle is the instance state machine.
type Handle struct {
	name        string
	kind        Kind
	description string
	author      string
	license     string
	moduleDir   string
	module      *modhandle.Handle
	export      *modhandle.ExportRecord
	logger      *logging.Logger

	handleRefCount atomic.Int64
	strongCount    atomic.Int64

	mu                 sync.Mutex
	state              State
	detached           bool
	instanceState      any
	parameters         map[string]*param.Cell
	resources          map[string]string
	namespacesIncluded map[string]NamespaceKind
	dependencies       map[string]*DependencyEntry
	symbolsExported    map[symref.Key]ExportedSymbol
	exportOrder        []symref.Key
}

// NewPseudo creates a pseudo instance: it starts directly in the Started
// state since there is no module export manifest driving it through
// uninit/init. Pseudo instances give a host process its own identity in
// the dependency and symbol graphs without being backed by a loaded
// module.
func NewPseudo(name string, logger *logging.Logger) *Handle {
	h := newHandle(name, Pseudo, logger)
	h.state = Started
	h.handleRefCount.Store(1)
	return h
}

// NewRegular creates a regular, module-backed instance in the Uninit
// state. module is acquired for the lifetime of the returned handle; the
// caller should have already validated export against the loading set's
// own candidate rules before calling this.
func NewRegular(name string, export *modhandle.ExportRecord, module *modhandle.Handle, logger *logging.Logger) *Handle {
	h := newHandle(name, Regular, logger)
	h.description = export.Description
	h.author = export.Author
	h.license = export.License
	h.export = export
	h.module = module
	h.moduleDir = module.Directory()
	module.Acquire()
	h.handleRefCount.Store(1)

	for _, p := range export.Parameters {
		h.parameters[p.Name] = param.New(p.Type, p.Default, p.ReadGroup, p.WriteGroup, name, p.Getter, p.Setter)
	}
	for _, r := range export.Resources {
		h.resources[r.ID] = filepath.Join(h.moduleDir, r.Path)
	}
	return h
}

func newHandle(name string, kind Kind, logger *logging.Logger) *Handle {
	return &Handle{
		name:               name,
		kind:               kind,
		logger:             logger,
		parameters:         make(map[string]*param.Cell),
		resources:          make(map[string]string),
		namespacesIncluded: make(map[string]NamespaceKind),
		dependencies:       make(map[string]*DependencyEntry),
		symbolsExported:    make(map[symref.Key]ExportedSymbol),
	}
}

// Info returns a snapshot of the instance's static identity.
func (h *Handle) Info() Info {
	return Info{
		Name:        h.name,
		Description: h.description,
		Author:      h.author,
		License:     h.license,
		ModuleDir:   h.moduleDir,
		Kind:        h.kind,
	}
}

func (h *Handle) Name() string   { return h.name }
func (h *Handle) Kind() Kind     { return h.kind }
func (h *Handle) Export() *modhandle.ExportRecord { return h.export }

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsDetached reports whether the instance has been permanently detached
// from the context root. This is distinct from the transient flag Stop
// sets for the duration of a stop event; both share one field.
func (h *Handle) IsDetached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

// saturateAdd adds delta to c, aborting the process if the result would
// overflow int64 rather than silently wrapping around.
func saturateAdd(c *atomic.Int64, delta int64) int64 {
	for {
		old := c.Load()
		next := old + delta
		if delta > 0 && next < old || next > math.MaxInt64-1 {
			panic("fimo/instance: reference count overflow")
		}
		if c.CompareAndSwap(old, next) {
			return next
		}
	}
}

// Acquire bumps the handle reference count: anyone holding a borrowed
// pointer to this Handle (the system's registry, a dependent instance's
// dependency table) must Acquire/Release around that borrow.
func (h *Handle) Acquire() { saturateAdd(&h.handleRefCount, 1) }

// Release drops the handle reference count. The caller must have already
// ensured the instance is detached; a handle is only ever actually freed
// by the system layer once both detached and refcount==0 hold.
func (h *Handle) Release() int64 { return saturateAdd(&h.handleRefCount, -1) }

// HandleRefCount returns the current handle reference count.
func (h *Handle) HandleRefCount() int64 { return h.handleRefCount.Load() }

// TryAcquireStrong increments the strong count, unless the instance is
// already detached.
func (h *Handle) TryAcquireStrong() error {
	h.mu.Lock()
	detached := h.detached
	h.mu.Unlock()
	if detached {
		return fimoerr.New(fimoerr.Detached, "instance %s is detached", h.name)
	}
	saturateAdd(&h.strongCount, 1)
	return nil
}

// ReleaseStrong decrements the strong count.
func (h *Handle) ReleaseStrong() { saturateAdd(&h.strongCount, -1) }

// StrongCount returns the current strong count — zero means the system's
// prune pass may reclaim this instance once it has no dependents.
func (h *Handle) StrongCount() int64 { return h.strongCount.Load() }

// Start first moves a freshly built instance from Uninit to Init, running
// the export's instance-state constructor (if any) with the instance lock
// dropped. It then transitions Init -> Started, invoking the module's start
// event (if any) with the instance lock dropped so the callback can safely
// call back into the instance.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state == Uninit {
		h.mu.Unlock()
		var instState any
		if h.export != nil && h.export.InstanceConstructor != nil {
			s, err := h.export.InstanceConstructor(h.buildContext())
			if err != nil {
				return fimoerr.Wrap(fimoerr.InvalidModule, err, "instance %s constructor failed", h.name)
			}
			instState = s
		}
		h.mu.Lock()
		if h.state == Uninit {
			h.instanceState, h.state = instState, Init
		}
	}
	if h.state != Init {
		h.mu.Unlock()
		return fimoerr.New(fimoerr.NotPermitted, "instance %s is %s, not init", h.name, h.state)
	}
	h.mu.Unlock()

	if h.export != nil && h.export.StartEvent != nil {
		if err := h.export.StartEvent(h.buildContext()); err != nil {
			return fimoerr.Wrap(fimoerr.InvalidModule, err, "instance %s start event failed", h.name)
		}
	}

	h.mu.Lock()
	if h.state != Init {
		h.mu.Unlock()
		return fimoerr.New(fimoerr.NotPermitted, "instance %s state changed during start event", h.name)
	}
	h.state = Started
	h.mu.Unlock()
	return nil
}

// Stop transitions Started -> Init, invoking the module's stop event with
// the instance lock dropped. The instance is marked detached for the
// duration of the callback so a reentrant lookup can't observe a
// half-stopped instance; the flag is cleared again once Stop returns.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.state != Started {
		h.mu.Unlock()
		return fimoerr.New(fimoerr.NotPermitted, "instance %s is %s, not started", h.name, h.state)
	}
	h.detached = true
	h.mu.Unlock()

	var stopErr error
	if h.export != nil && h.export.StopEvent != nil {
		stopErr = h.export.StopEvent(h.buildContext())
	}

	h.mu.Lock()
	h.detached = false
	h.state = Init
	h.mu.Unlock()

	if stopErr != nil {
		return fimoerr.Wrap(fimoerr.InvalidModule, stopErr, "instance %s stop event failed", h.name)
	}
	return nil
}

// Detach permanently tears the instance down: disallowed while Started or
// while anything holds a strong reference. Running the instance-state
// destructor happens with the lock dropped.
func (h *Handle) Detach() error {
	h.mu.Lock()
	if h.state == Started {
		h.mu.Unlock()
		return fimoerr.New(fimoerr.NotPermitted, "instance %s is still started", h.name)
	}
	if h.strongCount.Load() != 0 {
		h.mu.Unlock()
		return fimoerr.New(fimoerr.InUse, "instance %s still has strong references", h.name)
	}
	wasInit := h.state == Init
	instState := h.instanceState
	exports := h.symbolsExported
	order := h.exportOrder
	h.detached = true
	h.mu.Unlock()

	if wasInit && h.export != nil && h.export.InstanceDestructor != nil {
		h.export.InstanceDestructor(instState)
	}
	destroyExportsReverse(exports, order)

	if h.module != nil {
		if err := h.module.Release(); err != nil {
			h.logger.Warnf("instance %s: releasing module handle: %v", h.name, err)
		}
	}

	h.mu.Lock()
	h.instanceState = nil
	h.parameters = nil
	h.resources = nil
	h.namespacesIncluded = nil
	h.dependencies = nil
	h.symbolsExported = nil
	h.exportOrder = nil
	h.module = nil
	h.mu.Unlock()
	return nil
}

// destroyExportsReverse runs each exported symbol's destructor in reverse
// declaration order, everywhere the subsystem destroys a partially or
// fully built export table.
func destroyExportsReverse(exports map[symref.Key]ExportedSymbol, order []symref.Key) {
	for i := len(order) - 1; i >= 0; i-- {
		exp, ok := exports[order[i]]
		if ok && exp.Destructor != nil {
			exp.Destructor(exp.Value)
		}
	}
}

// DestroyPartial tears down a regular instance that failed construction
// before it was ever registered with the system: it runs already-produced
// dynamic-export destructors in reverse declaration order and releases
// the module handle, skipping the started/strong-count preconditions
// Detach enforces since the instance was never live.
func (h *Handle) DestroyPartial() {
	h.mu.Lock()
	exports := h.symbolsExported
	order := h.exportOrder
	h.detached = true
	h.mu.Unlock()

	destroyExportsReverse(exports, order)

	if h.module != nil {
		if err := h.module.Release(); err != nil {
			h.logger.Warnf("instance %s: releasing module handle: %v", h.name, err)
		}
	}

	h.mu.Lock()
	h.instanceState = nil
	h.parameters = nil
	h.resources = nil
	h.namespacesIncluded = nil
	h.dependencies = nil
	h.symbolsExported = nil
	h.exportOrder = nil
	h.module = nil
	h.mu.Unlock()
}

func (h *Handle) buildContext() modhandle.BuildContext {
	return modhandle.BuildContext{InstanceName: h.name}
}

// Logger returns the instance's tracing collaborator.
func (h *Handle) Logger() *logging.Logger { return h.logger }

// Resource returns the absolute path recorded for a declared resource ID,
// joined with the module's own directory at construction time.
func (h *Handle) Resource(id string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.resources[id]
	return p, ok
}

// DependencyNames returns the names of every instance this one depends on.
func (h *Handle) DependencyNames() set.Set[string] {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := set.NewSet[string]()
	for name := range h.dependencies {
		names.Add(name)
	}
	return names
}
