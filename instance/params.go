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
	"fimo.dev/module/param"
)

// ReadParameter reads the parameter cell named name, enforcing type and
// the read-side access policy against caller (the name of the instance
// requesting the read, which may be h.name itself).
func (h *Handle) ReadParameter(caller, name string, want param.Type) (uint64, error) {
	h.mu.Lock()
	cell, ok := h.parameters[name]
	deps := h.dependencyNamesLocked()
	h.mu.Unlock()

	if !ok {
		return 0, fimoerr.New(fimoerr.NotFound, "no parameter %s on %s", name, h.name)
	}
	if err := cell.CheckType(want); err != nil {
		return 0, err
	}
	if err := param.Check(cell.ReadGroup(), caller, h.name, deps); err != nil {
		return 0, err
	}
	return cell.Read(), nil
}

// WriteParameter mirrors ReadParameter for writes.
func (h *Handle) WriteParameter(caller, name string, want param.Type, value uint64) error {
	h.mu.Lock()
	cell, ok := h.parameters[name]
	deps := h.dependencyNamesLocked()
	h.mu.Unlock()

	if !ok {
		return fimoerr.New(fimoerr.NotFound, "no parameter %s on %s", name, h.name)
	}
	if err := cell.CheckType(want); err != nil {
		return err
	}
	if err := param.Check(cell.WriteGroup(), caller, h.name, deps); err != nil {
		return err
	}
	return cell.Write(value)
}

func (h *Handle) dependencyNamesLocked() map[string]struct{} {
	names := make(map[string]struct{}, len(h.dependencies))
	for name := range h.dependencies {
		names[name] = struct{}{}
	}
	return names
}
