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

// Package symref defines the (name, namespace) identity shared by every
// table that keys on a symbol: the symbol registry (symtab), an instance's
// own export table (instance), and the staged exports a loading set
// validates (loadset). The global namespace is the empty string.
package symref

import "fmt"

// Key identifies a symbol by name within a namespace. The global namespace
// is "".
type Key struct {
	Name      string
	Namespace string
}

// Global reports whether k sits in the implicit global namespace.
func (k Key) Global() bool { return k.Namespace == "" }

func (k Key) String() string {
	if k.Global() {
		return k.Name
	}
	return fmt.Sprintf("%s::%s", k.Namespace, k.Name)
}
