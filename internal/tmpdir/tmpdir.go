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

// Package tmpdir manages the subsystem's private scratch directory: a
// single "fimo_modules_<random>" directory created once per context root,
// under which each module handle materializes a uniquely named
// symlink pointing at the module's real binary directory. Loading a module
// through a symlink, rather than its original path, keeps dlopen's
// behavior independent of where the caller's build system happened to put
// the file.
package tmpdir

import (
	"crypto/rand"
	"encoding/base64"
	"path/filepath"

	"github.com/adrg/xdg"

	"fimo.dev/module/internal/platform"
)

// Dir is one subsystem instance's private temp directory.
type Dir struct {
	fsys platform.FileSystem
	root string
}

// Base returns the default base directory module symlinks are created
// under: the XDG cache home when the platform exposes one (so containers
// with a read-only /tmp still work), falling back to the filesystem's own
// TempDir.
func Base(fsys platform.FileSystem) string {
	if xdg.CacheHome != "" {
		return xdg.CacheHome
	}
	return fsys.TempDir()
}

// New creates a fresh "fimo_modules_<random>" directory under base.
func New(fsys platform.FileSystem, base string) (*Dir, error) {
	root, err := fsys.MkdirTemp(base, "fimo_modules_")
	if err != nil {
		return nil, err
	}
	return &Dir{fsys: fsys, root: root}, nil
}

// Root returns the directory's own path.
func (d *Dir) Root() string { return d.root }

// NewModuleSymlink creates a uniquely named symlink beneath the temp
// directory pointing at target, and returns its path.
func (d *Dir) NewModuleSymlink(target string) (string, error) {
	name, err := randomName()
	if err != nil {
		return "", err
	}
	link := filepath.Join(d.root, "module_"+name)
	if err := d.fsys.Symlink(target, link); err != nil {
		return "", err
	}
	return link, nil
}

// Close removes the temp directory and everything beneath it.
func (d *Dir) Close() error {
	return d.fsys.RemoveAll(d.root)
}

func randomName() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
