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
package modhandle

import (
	"path/filepath"
	"sync"
)

// FakeLoader is an in-memory Loader test double. Real .so binaries can't
// be produced without running the Go toolchain, so tests register an
// ExportIterator under a path and open that instead of touching dlopen.
// FromPath always opens a binary through a freshly materialized temp
// symlink rather than its original path, so lookups key on the
// basename alone — the one thing that survives the symlink indirection —
// rather than the full path a real dlopen would transparently resolve
// through the OS.
type FakeLoader struct {
	mu     sync.Mutex
	byName map[string]ExportIterator
	opened []string
	closed []LibHandle
}

type fakeLib struct {
	path string
	iter ExportIterator
}

// NewFakeLoader returns an empty FakeLoader.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{byName: make(map[string]ExportIterator)}
}

// Register makes path openable, yielding the given export iterator.
func (f *FakeLoader) Register(path string, iter ExportIterator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[filepath.Base(path)] = iter
}

func (f *FakeLoader) Open(path string, _ OpenFlags) (LibHandle, error) {
	f.mu.Lock()
	iter, ok := f.byName[filepath.Base(path)]
	f.opened = append(f.opened, path)
	f.mu.Unlock()
	if !ok {
		return nil, errNotRegistered(path)
	}
	return &fakeLib{path: path, iter: iter}, nil
}

func (f *FakeLoader) Symbol(h LibHandle, name string) (any, error) {
	lib, ok := h.(*fakeLib)
	if !ok {
		return nil, errNotAPlugin
	}
	if name != ExportIteratorSymbol {
		return nil, errNoSuchSymbol(name)
	}
	return lib.iter, nil
}

func (f *FakeLoader) ModuleFromAddress(any) (LibHandle, string, error) {
	return nil, "", errNoAddressLookup
}

func (f *FakeLoader) Filename(h LibHandle) (string, error) {
	lib, ok := h.(*fakeLib)
	if !ok {
		return "", errNotAPlugin
	}
	return lib.path, nil
}

func (f *FakeLoader) Close(h LibHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, h)
	return nil
}

// OpenCount returns how many times Open has been called, for tests
// asserting on load concurrency/bounding.
func (f *FakeLoader) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

// ClosedCount returns how many handles have been closed.
func (f *FakeLoader) ClosedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}
