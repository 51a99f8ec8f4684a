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

// Package fimoctx implements the context root: the subsystem's single
// public entry point. It owns the registry core (system.System), the temp
// directory and async plumbing every loading set shares, and the host's
// own pseudo instance — the bootstrapping identity pseudo instances exist
// for. Its exported methods are a plain Go interface rather than a
// void*-dispatched vtable; an FFI boundary on top of this interface is out
// of scope here.
package fimoctx

import (
	"context"
	"sync/atomic"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/future"
	"fimo.dev/module/instance"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/internal/platform"
	"fimo.dev/module/internal/tmpdir"
	"fimo.dev/module/loadset"
	"fimo.dev/module/modhandle"
	"fimo.dev/module/param"
	"fimo.dev/module/semverx"
	"fimo.dev/module/system"
)

// defaultWorkerPoolSize bounds the blocking-upcall pool (instance
// construction, instance-state constructors, start events) a freshly
// constructed Context spawns
// when Options doesn't specify one.
const defaultWorkerPoolSize = 8

// Options configures a Context root. Every field is optional; New fills in
// production defaults — the OS filesystem, the plugin-backed loader, a
// pterm-backed logger — for anything left zero: this is a plain struct, not
// cobra/viper wiring.
type Options struct {
	// Name identifies the host's own pseudo instance. Defaults to
	// "host". Must not start with "__", the same reserved-name rule
	// every regular instance is validated against.
	Name string

	Logger         *logging.Logger
	FileSystem     platform.FileSystem
	Loader         modhandle.Loader
	TempDirBase    string
	WorkerPoolSize int
}

// Context is the subsystem's root: one per embedding process, typically.
// It is safe for concurrent use — every method delegates to collaborators
// (System, loadset.Set, instance.Handle) that already guard their own
// state.
type Context struct {
	logger *logging.Logger
	sys    *system.System
	tmp    *tmpdir.Dir
	loader modhandle.Loader
	el     *future.EventLoop
	wp     *future.WorkerPool
	pseudo *instance.Handle
	closed atomic.Bool
}

// New constructs a Context: its private temp directory, registry core,
// event loop, worker pool, and a pseudo instance registered under
// opts.Name so the host process itself has a place in the dependency and
// symbol graphs.
func New(opts Options) (*Context, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	fsys := opts.FileSystem
	if fsys == nil {
		fsys = platform.NewOSFileSystem()
	}
	loader := opts.Loader
	if loader == nil {
		loader = modhandle.NewPluginLoader()
	}
	base := opts.TempDirBase
	if base == "" {
		base = tmpdir.Base(fsys)
	}
	wpSize := opts.WorkerPoolSize
	if wpSize <= 0 {
		wpSize = defaultWorkerPoolSize
	}
	name := opts.Name
	if name == "" {
		name = "host"
	}

	tmp, err := tmpdir.New(fsys, base)
	if err != nil {
		return nil, fimoerr.Wrap(fimoerr.Allocation, err, "creating context temp directory")
	}

	sys := system.New(logger)
	pseudo := instance.NewPseudo(name, logger)
	if err := sys.AddInstance(pseudo); err != nil {
		_ = tmp.Close()
		return nil, err
	}

	return &Context{
		logger: logger,
		sys:    sys,
		tmp:    tmp,
		loader: loader,
		el:     future.NewEventLoop(),
		wp:     future.NewWorkerPool(wpSize),
		pseudo: pseudo,
	}, nil
}

// System returns the registry core backing this context.
func (c *Context) System() *system.System { return c.sys }

// Pseudo returns the host's own bootstrapping instance.
func (c *Context) Pseudo() *instance.Handle { return c.pseudo }

// Logger returns the context's tracing collaborator.
func (c *Context) Logger() *logging.Logger { return c.logger }

// NewLoadingSet returns a fresh, empty loading set bound to this context's
// registry core, module loader, temp directory, event loop, and worker
// pool. Multiple loading sets may be live at once; their commits serialize
// against each other through the System.
func (c *Context) NewLoadingSet() *loadset.Set {
	return loadset.New(c.sys, c.loader, c.tmp, c.logger, c.el, c.wp)
}

// LocalModuleHandle wraps the given export iterator as a module handle
// sourced from the current binary: the path AddModulesFromLocal takes for
// statically linked modules that never go through the OS dynamic loader at
// all.
func (c *Context) LocalModuleHandle(dir string, iter modhandle.ExportIterator) *modhandle.Handle {
	return modhandle.FromCurrentBinary(c.loader, dir, iter)
}

// FindByName resolves a registered instance by name.
func (c *Context) FindByName(name string) (*instance.Handle, bool) {
	return c.sys.Get(name)
}

// FindBySymbol resolves the instance currently exporting (name, ns) at a
// version compatible with req.
func (c *Context) FindBySymbol(name, ns string, req semverx.Version) (*instance.Handle, bool) {
	entry, ok := c.sys.Symbols().LookupCompatible(name, ns, req)
	if !ok {
		return nil, false
	}
	return c.sys.Get(entry.Owner)
}

// NamespaceExists reports whether ns has a live namespace entry, or is the
// implicit global namespace.
func (c *Context) NamespaceExists(ns string) bool {
	return c.sys.Symbols().NamespaceExists(ns)
}

// Prune unloads every unload-eligible instance and returns the names
// reclaimed.
func (c *Context) Prune() []string {
	return c.sys.Prune()
}

// ReadParameter reads a named parameter on the named instance, on behalf
// of caller — the instance name to check against the dependency/private
// access policy.
func (c *Context) ReadParameter(caller, instanceName, paramName string, want param.Type) (uint64, error) {
	h, ok := c.sys.Get(instanceName)
	if !ok {
		return 0, fimoerr.New(fimoerr.NotFound, "instance %s not registered", instanceName)
	}
	return h.ReadParameter(caller, paramName, want)
}

// WriteParameter writes a named parameter on the named instance, on
// behalf of caller.
func (c *Context) WriteParameter(caller, instanceName, paramName string, want param.Type, value uint64) error {
	h, ok := c.sys.Get(instanceName)
	if !ok {
		return fimoerr.New(fimoerr.NotFound, "instance %s not registered", instanceName)
	}
	return h.WriteParameter(caller, paramName, want, value)
}

// Close tears the context down: it drains the worker pool, stops the
// event loop, stops and detaches the host pseudo instance, and removes the
// subsystem's private temp directory. Close does not unload any regular
// instance still registered — dynamic reloading and a "quiesce everything"
// helper beyond Prune are both out of scope; callers are expected to have
// driven every dependent instance to teardown first. Calling Close again
// does nothing and returns nil.
func (c *Context) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.wp.Wait()
	c.el.Stop()

	if err := c.sys.RemoveInstance(c.pseudo.Name()); err != nil {
		c.logger.Warnf("context close: removing pseudo instance %s: %v", c.pseudo.Name(), err)
	}
	if c.pseudo.State() == instance.Started {
		if err := c.pseudo.Stop(context.Background()); err != nil {
			c.logger.Warnf("context close: stopping pseudo instance %s: %v", c.pseudo.Name(), err)
		}
	}
	if err := c.pseudo.Detach(); err != nil {
		c.logger.Warnf("context close: detaching pseudo instance %s: %v", c.pseudo.Name(), err)
	}

	return c.tmp.Close()
}
