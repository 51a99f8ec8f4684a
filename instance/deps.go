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
package instance

import (
	"fimo.dev/module/fimoerr"
	"fimo.dev/module/semverx"
	"fimo.dev/module/symref"
)

// QueryDependency reports the entry recorded for a dependency named name.
func (h *Handle) QueryDependency(name string) (DependencyEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.dependencies[name]
	if !ok {
		return DependencyEntry{}, false
	}
	return *e, true
}

// AddDependency records dep as a dependency of kind. Fails Detached once
// the instance has been torn down.
func (h *Handle) AddDependency(name string, dep *Handle, kind DependencyKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return fimoerr.New(fimoerr.Detached, "instance %s is detached", h.name)
	}
	h.dependencies[name] = &DependencyEntry{Handle: dep, Kind: kind}
	return nil
}

// RemoveDependency removes a dynamically added dependency. Static
// dependencies, declared by the module's own export manifest, can never be
// removed while the instance is loaded (NotPermitted); a name with no
// recorded entry is NotADependency.
func (h *Handle) RemoveDependency(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.dependencies[name]
	if !ok {
		return fimoerr.New(fimoerr.NotADependency, "%s is not a dependency of %s", name, h.name)
	}
	if e.Kind == Static {
		return fimoerr.New(fimoerr.NotPermitted, "%s is a static dependency of %s", name, h.name)
	}
	delete(h.dependencies, name)
	return nil
}

// ClearDependencies empties the dependency table, the reading consistent
// with treating a removed instance the same as a detached one.
func (h *Handle) ClearDependencies() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dependencies = make(map[string]*DependencyEntry)
}

// NamespaceImports returns a snapshot of every namespace this instance has
// included, for the system layer to ref-count at registration time and
// unref at removal.
func (h *Handle) NamespaceImports() map[string]NamespaceKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]NamespaceKind, len(h.namespacesIncluded))
	for ns, kind := range h.namespacesIncluded {
		out[ns] = kind
	}
	return out
}

// QueryNamespace reports the kind of namespace inclusion recorded for ns.
func (h *Handle) QueryNamespace(ns string) (NamespaceKind, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.namespacesIncluded[ns]
	return k, ok
}

// AddNamespace records ns as included, with the given kind.
func (h *Handle) AddNamespace(ns string, kind NamespaceKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return fimoerr.New(fimoerr.Detached, "instance %s is detached", h.name)
	}
	h.namespacesIncluded[ns] = kind
	return nil
}

// RemoveNamespace removes a dynamically included namespace. A static
// inclusion can't be removed while loaded.
func (h *Handle) RemoveNamespace(ns string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kind, ok := h.namespacesIncluded[ns]
	if !ok {
		return fimoerr.New(fimoerr.NotFound, "namespace %s is not included by %s", ns, h.name)
	}
	if kind == Static {
		return fimoerr.New(fimoerr.NotPermitted, "namespace %s is statically included by %s", ns, h.name)
	}
	delete(h.namespacesIncluded, ns)
	return nil
}

// ExportSymbol registers value under (name, ns) in this instance's own
// export table, used when building a regular instance from its module's
// static/dynamic export declarations.
func (h *Handle) ExportSymbol(name, ns string, version semverx.Version, value any, destructor func(any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := symref.Key{Name: name, Namespace: ns}
	if _, exists := h.symbolsExported[key]; !exists {
		h.exportOrder = append(h.exportOrder, key)
	}
	h.symbolsExported[key] = ExportedSymbol{Version: version, Value: value, Destructor: destructor}
}

// LoadSymbol resolves (name, ns) against this instance's own export table,
// requiring compatibility with req. Fails Detached once torn down.
func (h *Handle) LoadSymbol(name, ns string, req semverx.Version) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return nil, fimoerr.New(fimoerr.Detached, "instance %s is detached", h.name)
	}
	e, ok := h.symbolsExported[symref.Key{Name: name, Namespace: ns}]
	if !ok {
		return nil, fimoerr.New(fimoerr.NotFound, "symbol %s::%s not exported by %s", ns, name, h.name)
	}
	if !semverx.CompatibleWith(e.Version, req) {
		return nil, fimoerr.New(fimoerr.NotFound, "symbol %s::%s version %s incompatible with request %s", ns, name, e.Version, req)
	}
	return e.Value, nil
}

// ExportedSymbols returns every (key, entry) pair currently registered,
// for the system layer to insert into the global symbol registry and tear
// down again on removal.
func (h *Handle) ExportedSymbols() map[symref.Key]ExportedSymbol {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[symref.Key]ExportedSymbol, len(h.symbolsExported))
	for k, v := range h.symbolsExported {
		out[k] = v
	}
	return out
}
