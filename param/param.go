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

// Package param implements the parameter store: typed, atomically accessed
// per-instance configuration cells with a three-tier access-group policy
// (public, dependency, private) on both the read and write side.
package param

import (
	"sync/atomic"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/set"
)

// Type is the declared width/signedness of a parameter cell. All values are
// stored in a single 64-bit atomic word exactly as written; Type is checked
// on access (CheckType), but values are not truncated or sign-extended to
// its width.
type Type int

const (
	U8 Type = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
)

// AccessGroup gates who may read or write a cell.
type AccessGroup int

const (
	// Public grants access to anyone holding the owning instance.
	Public AccessGroup = iota
	// Dependency grants access only to callers named in the owning
	// instance's own dependency set.
	Dependency
	// Private grants access only to the owning instance itself.
	Private
)

// Cell is one parameter: a typed atomic value plus the read/write access
// policy and an optional pair of custom getter/setter callbacks a module
// export can install to validate or transform values in flight.
type Cell struct {
	typ         Type
	value       atomic.Uint64
	readGroup   AccessGroup
	writeGroup  AccessGroup
	owner       string
	getter      func(raw uint64) uint64
	setter      func(raw uint64) (uint64, error)
}

// New constructs a cell owned by owner, seeded with def, gated by the given
// read/write groups. getter/setter may be nil.
func New(typ Type, def uint64, readGroup, writeGroup AccessGroup, owner string, getter func(uint64) uint64, setter func(uint64) (uint64, error)) *Cell {
	c := &Cell{typ: typ, readGroup: readGroup, writeGroup: writeGroup, owner: owner, getter: getter, setter: setter}
	c.value.Store(def)
	return c
}

func (c *Cell) Type() Type           { return c.typ }
func (c *Cell) Owner() string        { return c.owner }
func (c *Cell) ReadGroup() AccessGroup  { return c.readGroup }
func (c *Cell) WriteGroup() AccessGroup { return c.writeGroup }

// CheckType reports InvalidParameterType if want doesn't match the cell's
// declared type.
func (c *Cell) CheckType(want Type) error {
	if want != c.typ {
		return fimoerr.New(fimoerr.InvalidParameterType, "parameter declared as %v, accessed as %v", c.typ, want)
	}
	return nil
}

// Read returns the cell's current value, running it through the custom
// getter if one was installed.
func (c *Cell) Read() uint64 {
	raw := c.value.Load()
	if c.getter != nil {
		return c.getter(raw)
	}
	return raw
}

// Write stores v, running it through the custom setter if one was
// installed. A setter may reject the value.
func (c *Cell) Write(v uint64) error {
	if c.setter != nil {
		transformed, err := c.setter(v)
		if err != nil {
			return err
		}
		v = transformed
	}
	c.value.Store(v)
	return nil
}

// Check runs the full three-tier policy for one access: owner access always
// succeeds; otherwise Public passes, Dependency requires caller in deps, and
// Private always rejects a non-owner caller.
func Check(group AccessGroup, caller, owner string, deps set.Set[string]) error {
	if caller == owner {
		return nil
	}
	switch group {
	case Public:
		return nil
	case Dependency:
		if deps.Has(caller) {
			return nil
		}
		return fimoerr.New(fimoerr.NotPermitted, "%s is not a dependency of %s", caller, owner)
	default: // Private
		return fimoerr.New(fimoerr.NotPermitted, "parameter is private to %s", owner)
	}
}
