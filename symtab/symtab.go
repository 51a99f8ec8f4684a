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

// Package symtab implements the global symbol registry and namespace
// registry: a table mapping (name, namespace) to the owning instance and
// the version it exports, paired with reference-counted namespace
// lifecycle entries. Namespace entries are created by the system layer
// before an export lands in them; insert and ref calls on a missing
// non-global namespace fail NotFound rather than auto-vivifying one.
package symtab

import (
	"sync"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/semverx"
	"fimo.dev/module/symref"
)

// SymbolEntry records the owner and version behind one exported symbol.
type SymbolEntry struct {
	Owner   string
	Version semverx.Version
}

// NamespaceEntry tracks a namespace's live export/import counts. A
// namespace entry is deleted once both counts return to zero.
type NamespaceEntry struct {
	NumSymbols    int
	NumReferences int
}

// Table is the combined symbol/namespace registry.
type Table struct {
	mu         sync.RWMutex
	symbols    map[symref.Key]SymbolEntry
	namespaces map[string]NamespaceEntry
}

// New returns an empty table.
func New() *Table {
	return &Table{
		symbols:    make(map[symref.Key]SymbolEntry),
		namespaces: make(map[string]NamespaceEntry),
	}
}

// EnsureNamespace creates a zero-valued namespace entry if one doesn't
// already exist. It is idempotent; the system layer calls this once per
// novel export namespace before InsertSymbol.
func (t *Table) EnsureNamespace(name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.namespaces[name]; !ok {
		t.namespaces[name] = NamespaceEntry{}
	}
}

// NamespaceExists reports whether name has a live namespace entry. The
// global namespace always exists implicitly.
func (t *Table) NamespaceExists(name string) bool {
	if name == "" {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.namespaces[name]
	return ok
}

// InsertSymbol registers owner's export of (name, ns) at version. It fails
// with Duplicate if the key is already taken, or NotFound if ns is a
// non-global namespace with no live entry.
func (t *Table) InsertSymbol(name, ns, owner string, version semverx.Version) error {
	key := symref.Key{Name: name, Namespace: ns}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.symbols[key]; exists {
		return fimoerr.New(fimoerr.Duplicate, "symbol %s already exported", key)
	}
	if ns != "" {
		entry, ok := t.namespaces[ns]
		if !ok {
			return fimoerr.New(fimoerr.NotFound, "namespace %s has no live entry", ns)
		}
		entry.NumSymbols++
		t.namespaces[ns] = entry
	}
	t.symbols[key] = SymbolEntry{Owner: owner, Version: version}
	return nil
}

// RemoveSymbol deletes (name, ns). It fails with NotFound if absent. The
// owning namespace entry is reclaimed once both its counters hit zero.
func (t *Table) RemoveSymbol(name, ns string) error {
	key := symref.Key{Name: name, Namespace: ns}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.symbols[key]; !exists {
		return fimoerr.New(fimoerr.NotFound, "symbol %s not registered", key)
	}
	delete(t.symbols, key)

	if ns != "" {
		entry := t.namespaces[ns]
		entry.NumSymbols--
		t.setOrReclaim(ns, entry)
	}
	return nil
}

// Lookup returns the entry registered for (name, ns), if any.
func (t *Table) Lookup(name, ns string) (SymbolEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.symbols[symref.Key{Name: name, Namespace: ns}]
	return e, ok
}

// LookupCompatible returns the entry registered for (name, ns) only if its
// version is compatible with req per semverx.CompatibleWith.
func (t *Table) LookupCompatible(name, ns string, req semverx.Version) (SymbolEntry, bool) {
	e, ok := t.Lookup(name, ns)
	if !ok || !semverx.CompatibleWith(e.Version, req) {
		return SymbolEntry{}, false
	}
	return e, true
}

// RefNamespace increments the reference count of name. It fails NotFound if
// name has no live entry. The global namespace is a permanent no-op.
func (t *Table) RefNamespace(name string) error {
	if name == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.namespaces[name]
	if !ok {
		return fimoerr.New(fimoerr.NotFound, "namespace %s has no live entry", name)
	}
	entry.NumReferences++
	t.namespaces[name] = entry
	return nil
}

// UnrefNamespace decrements name's reference count, reclaiming the entry
// once both counters are zero. Unref on an absent or global namespace is a
// no-op.
func (t *Table) UnrefNamespace(name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.namespaces[name]
	if !ok {
		return
	}
	entry.NumReferences--
	t.setOrReclaim(name, entry)
}

// setOrReclaim stores entry back under name, or deletes it if both counters
// have returned to zero. Caller must hold t.mu.
func (t *Table) setOrReclaim(name string, entry NamespaceEntry) {
	if entry.NumSymbols == 0 && entry.NumReferences == 0 {
		delete(t.namespaces, name)
		return
	}
	t.namespaces[name] = entry
}

// NamespaceStats returns a copy of name's counters, for tests asserting on
// the registry's internal bookkeeping.
func (t *Table) NamespaceStats(name string) (NamespaceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.namespaces[name]
	return e, ok
}
