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

import "plugin"

// OpenFlags mirrors the dlopen flag contract (RTLD_NOW | RTLD_LOCAL |
// RTLD_NODELETE): a module is always resolved eagerly, never exposed to the
// global symbol namespace, and never actually unloaded from the process
// even once every handle referencing it is released.
type OpenFlags int

const (
	FlagNow OpenFlags = 1 << iota
	FlagLocal
	FlagNoDelete
)

// DefaultFlags is what every module handle in this subsystem opens with.
const DefaultFlags = FlagNow | FlagLocal | FlagNoDelete

// LibHandle is an opaque reference to an open shared object.
type LibHandle any

// Loader is the OS dynamic-loader external collaborator: open, resolve a
// symbol, resolve the library backing a given address, and close. It is
// deliberately this small so both a real loader and a test fake implement
// it trivially.
type Loader interface {
	Open(path string, flags OpenFlags) (LibHandle, error)
	Symbol(h LibHandle, name string) (any, error)
	ModuleFromAddress(fn any) (h LibHandle, path string, err error)
	Filename(h LibHandle) (string, error)
	Close(h LibHandle) error
}

// PluginLoader backs Loader with the standard library's plugin package.
// This is the one place the subsystem reaches for the OS loader directly:
// there is no third-party dlopen wrapper in the retrieval pack, and plugin
// is the only dynamic-loading primitive the standard library offers.
//
// Two real limitations fall out of that choice and are worth naming: the Go
// runtime never actually unloads a plugin once opened (Close is therefore
// a bookkeeping no-op, matching FlagNoDelete's spirit by accident), and
// there is no portable "resolve the library that contains this address"
// API, so ModuleFromAddress always returns an error.
type PluginLoader struct{}

func NewPluginLoader() *PluginLoader { return &PluginLoader{} }

func (PluginLoader) Open(path string, _ OpenFlags) (LibHandle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (PluginLoader) Symbol(h LibHandle, name string) (any, error) {
	p, ok := h.(*plugin.Plugin)
	if !ok {
		return nil, errNotAPlugin
	}
	return p.Lookup(name)
}

func (PluginLoader) ModuleFromAddress(fn any) (LibHandle, string, error) {
	return nil, "", errNoAddressLookup
}

func (PluginLoader) Filename(h LibHandle) (string, error) {
	return "", errNoFilename
}

func (PluginLoader) Close(LibHandle) error {
	// The Go runtime never unloads a plugin; nothing to do.
	return nil
}
