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

import "fimo.dev/module/fimoerr"

var (
	errNotAPlugin      = fimoerr.New(fimoerr.DlOpenError, "handle was not opened by PluginLoader")
	errNoAddressLookup = fimoerr.New(fimoerr.DlOpenError, "resolving a library from an arbitrary address is not supported on this platform")
	errNoFilename      = fimoerr.New(fimoerr.DlOpenError, "resolving a loaded library's filename is not supported on this platform")
)

func errNotRegistered(path string) error {
	return fimoerr.New(fimoerr.DlOpenError, "no module registered at %s", path)
}

func errNoSuchSymbol(name string) error {
	return fimoerr.New(fimoerr.InvalidExport, "no such symbol %s", name)
}
