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

// Package modhandle implements the module handle: the wrapper around one
// OS shared-object load, its export-record iterator, and the reference
// count shared by every instance built from it.
package modhandle

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/internal/tmpdir"
)

// ExportIteratorSymbol is the name of the one C symbol a module binary
// must export: a function that, invoked with a visitor callback, yields
// every ExportRecord the binary defines.
const ExportIteratorSymbol = "fimo_impl_module_export_iterator"

// Handle is one open module binary. Multiple instances may be built from
// the same binary in the same process (rare, but not disallowed); they
// share one Handle via Acquire/Release.
type Handle struct {
	loader  Loader
	lib     LibHandle
	dir     string
	symlink string
	iterate ExportIterator

	mu       sync.Mutex
	refCount int64
	closed   bool
}

// FromPath opens the module binary at path: it materializes a uniquely
// named symlink in tmp pointing at path's directory, opens the binary
// through that symlink (so dlopen never sees the caller's real build
// layout), and resolves the export iterator. sem, if non-nil, bounds how
// many Open calls may be in flight at once across the whole loading set.
func FromPath(ctx context.Context, loader Loader, tmp *tmpdir.Dir, path string, sem *semaphore.Weighted) (*Handle, error) {
	dir := filepath.Dir(path)
	link, err := tmp.NewModuleSymlink(dir)
	if err != nil {
		return nil, fimoerr.Wrap(fimoerr.InvalidPath, err, "creating module symlink for %s", path)
	}

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
	}

	libPath := filepath.Join(link, filepath.Base(path))
	lib, err := loader.Open(libPath, DefaultFlags)
	if err != nil {
		return nil, fimoerr.Wrap(fimoerr.DlOpenError, err, "opening module %s", path)
	}

	iterFn, err := resolveIterator(loader, lib, path)
	if err != nil {
		return nil, err
	}

	h := &Handle{loader: loader, lib: lib, dir: dir, symlink: link, iterate: iterFn, refCount: 1}
	return h, nil
}

// FromCurrentBinary wraps the running process itself as a module handle,
// used by the context root to host statically linked modules that never
// go through dlopen at all.
func FromCurrentBinary(loader Loader, dir string, iterFn ExportIterator) *Handle {
	return &Handle{loader: loader, dir: dir, iterate: iterFn, refCount: 1}
}

func resolveIterator(loader Loader, lib LibHandle, path string) (ExportIterator, error) {
	sym, err := loader.Symbol(lib, ExportIteratorSymbol)
	if err != nil {
		return nil, fimoerr.Wrap(fimoerr.InvalidExport, err, "resolving export iterator in %s", path)
	}
	iterFn, ok := sym.(ExportIterator)
	if !ok {
		return nil, fimoerr.New(fimoerr.InvalidExport, "export iterator symbol has the wrong type in %s", path)
	}
	return iterFn, nil
}

// Directory returns the directory containing the module's real binary
// (not the temp symlink it was opened through).
func (h *Handle) Directory() string { return h.dir }

// Acquire bumps the handle's reference count.
func (h *Handle) Acquire() {
	atomic.AddInt64(&h.refCount, 1)
}

// Release drops the handle's reference count, closing the underlying
// library once it reaches zero. The temp symlink is not removed here; it
// stays until the owning temp directory is closed.
func (h *Handle) Release() error {
	if atomic.AddInt64(&h.refCount, -1) > 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.lib != nil {
		if err := h.loader.Close(h.lib); err != nil {
			return err
		}
	}
	return nil
}

// Exports collects every export record for which filter returns true. A
// nil filter matches everything.
func (h *Handle) Exports(filter func(*ExportRecord) bool) []*ExportRecord {
	if h.iterate == nil {
		return nil
	}
	if filter == nil {
		filter = func(*ExportRecord) bool { return true }
	}
	var out []*ExportRecord
	h.iterate(func(rec *ExportRecord) bool {
		if filter(rec) {
			out = append(out, rec)
		}
		return true
	})
	return out
}
