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

// Package platform provides the filesystem external collaborator contract:
// creating the subsystem's private temporary directory and the per-module
// symlinks module handles materialize beneath it.
package platform

import (
	"io/fs"
	"os"
)

// FileSystem abstracts the filesystem operations the module subsystem needs.
// Production code uses OSFileSystem; tests substitute an in-memory fake so
// module-handle construction can be exercised without touching disk.
type FileSystem interface {
	WriteFile(name string, data []byte, perm fs.FileMode) error
	ReadFile(name string) ([]byte, error)
	Remove(name string) error
	RemoveAll(path string) error

	MkdirAll(path string, perm fs.FileMode) error
	MkdirTemp(dir, pattern string) (string, error)

	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	Exists(path string) bool

	// TempDir returns the base directory MkdirTemp resolves relative paths
	// against (os.TempDir on the production filesystem).
	TempDir() string
}

// OSFileSystem implements FileSystem using the standard os package. This is
// the literal binding to the OS's filesystem calls; there is no ecosystem
// alternative to wrap here, the contract *is* the os package.
type OSFileSystem struct{}

// NewOSFileSystem returns the production FileSystem.
func NewOSFileSystem() *OSFileSystem { return &OSFileSystem{} }

func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) Remove(name string) error { return os.Remove(name) }

func (OSFileSystem) RemoveAll(path string) error { return os.RemoveAll(path) }

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (OSFileSystem) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

func (OSFileSystem) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) Lstat(name string) (fs.FileInfo, error) { return os.Lstat(name) }

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) TempDir() string { return os.TempDir() }
