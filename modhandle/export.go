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
	"fimo.dev/module/param"
	"fimo.dev/module/semverx"
)

// ParamDecl declares one parameter cell a module export wants created on
// every instance built from it.
type ParamDecl struct {
	Name       string
	Type       param.Type
	Default    uint64
	ReadGroup  param.AccessGroup
	WriteGroup param.AccessGroup
	Getter     func(uint64) uint64
	Setter     func(uint64) (uint64, error)
}

// ResourceDecl declares one named resource path, relative to the module's
// own directory.
type ResourceDecl struct {
	ID   string
	Path string
}

// NamespaceImportDecl declares a namespace the built instance must import
// before it can resolve symbols from it.
type NamespaceImportDecl struct {
	Namespace string
}

// SymbolImportDecl declares one symbol the built instance requires at a
// compatible version.
type SymbolImportDecl struct {
	Name      string
	Namespace string
	Version   semverx.Version
}

// BuildContext is passed to a dynamic export's constructor, giving it
// access to the instance's resolved imports without an upward import cycle
// into the instance package.
type BuildContext struct {
	InstanceName string
	Imports      map[SymbolImportDecl]any
}

// SymbolExportDecl declares one symbol the built instance provides. Static
// exports carry a fixed Value; dynamic exports carry a Constructor invoked
// once per instance build and an optional Destructor run at teardown.
type SymbolExportDecl struct {
	Name      string
	Namespace string
	Version   semverx.Version
	Dynamic   bool

	Value       any
	Constructor func(BuildContext) (any, error)
	Destructor  func(any)
}

// Modifier is a recognized export-level key/value pair: "debug_info",
// "instance_state", "start_event", "stop_event", and "dependency". The
// load path does not read "dependency" entries: no dependency or graph
// edge is created from them, only from symbol imports.
type Modifier struct {
	Key   string
	Value any
}

// Well-known modifier keys.
const (
	ModifierDebugInfo      = "debug_info"
	ModifierInstanceState  = "instance_state"
	ModifierStartEvent     = "start_event"
	ModifierStopEvent      = "stop_event"
	ModifierDependency     = "dependency"
)

// ExportRecord is one module's static export manifest: everything a
// loading set candidate needs to validate the module and everything an
// instance handle needs to build itself from it.
type ExportRecord struct {
	Name        string
	Description string
	Author      string
	License     string

	ContextVersion semverx.Version

	Parameters       []ParamDecl
	Resources        []ResourceDecl
	NamespaceImports []NamespaceImportDecl
	SymbolImports    []SymbolImportDecl
	StaticExports    []SymbolExportDecl
	DynamicExports   []SymbolExportDecl
	Modifiers        []Modifier

	// InstanceConstructor, when set, builds the instance-state value.
	// instance.Handle.Start runs it with the instance lock dropped, as part
	// of moving the instance from Uninit to Init.
	InstanceConstructor func(BuildContext) (any, error)
	// InstanceDestructor tears the instance-state value down at detach.
	InstanceDestructor func(any)
	// StartEvent/StopEvent are the optional lifecycle callbacks named by
	// the "start_event"/"stop_event" modifiers.
	StartEvent func(BuildContext) error
	StopEvent  func(BuildContext) error
}

// Modifier returns the value registered under key, if any.
func (e *ExportRecord) Modifier(key string) (any, bool) {
	for _, m := range e.Modifiers {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// ExportIterator walks a module binary's export records, calling visit for
// each and stopping early if visit returns false. It is the Go binding of
// the fimo_impl_module_export_iterator contract: a module binary exposes
// one C symbol that, called with a visitor callback, yields every export
// record it defines.
type ExportIterator func(visit func(*ExportRecord) bool)
