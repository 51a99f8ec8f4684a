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
package platform

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// MemFileSystem is an in-memory FileSystem for tests that construct module
// handles and loading sets without touching the real disk.
type MemFileSystem struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string
	tmpSeq   int
}

// NewMemFileSystem returns an empty in-memory filesystem rooted at "/".
func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		symlinks: make(map[string]string),
	}
}

func (m *MemFileSystem) WriteFile(name string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[filepath.Dir(name)] = true
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[name] = cp
	return nil
}

func (m *MemFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	delete(m.dirs, name)
	delete(m.symlinks, name)
	return nil
}

func (m *MemFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := path + "/"
	for k := range m.files {
		if k == path || hasPrefix(k, prefix) {
			delete(m.files, k)
		}
	}
	for k := range m.dirs {
		if k == path || hasPrefix(k, prefix) {
			delete(m.dirs, k)
		}
	}
	delete(m.symlinks, path)
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (m *MemFileSystem) MkdirAll(path string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := path; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		m.dirs[dir] = true
	}
	m.dirs["/"] = true
	return nil
}

func (m *MemFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	m.mu.Lock()
	m.tmpSeq++
	seq := m.tmpSeq
	m.mu.Unlock()

	name := filepath.Join(dir, pattern+itoa(seq))
	if err := m.MkdirAll(name, 0o755); err != nil {
		return "", err
	}
	return name, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (m *MemFileSystem) Symlink(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.symlinks[newname]; exists {
		return &fs.PathError{Op: "symlink", Path: newname, Err: fs.ErrExist}
	}
	m.symlinks[newname] = oldname
	m.dirs[filepath.Dir(newname)] = true
	return nil
}

func (m *MemFileSystem) Readlink(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.symlinks[name]
	if !ok {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrNotExist}
	}
	return target, nil
}

func (m *MemFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if target, ok := m.symlinks[name]; ok {
		name = target
	}
	if data, ok := m.files[name]; ok {
		return memFileInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	if m.dirs[name] {
		return memFileInfo{name: filepath.Base(name), isDir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *MemFileSystem) Lstat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	if _, ok := m.symlinks[name]; ok {
		m.mu.Unlock()
		return memFileInfo{name: filepath.Base(name), isSymlink: true}, nil
	}
	m.mu.Unlock()
	return m.Stat(name)
}

func (m *MemFileSystem) Exists(path string) bool {
	_, err := m.Stat(path)
	return err == nil
}

// TempDir returns a fixed virtual root; tests never need this to match a
// real OS path.
func (m *MemFileSystem) TempDir() string { return "/tmp" }

type memFileInfo struct {
	name      string
	size      int64
	isDir     bool
	isSymlink bool
}

func (i memFileInfo) Name() string { return i.name }
func (i memFileInfo) Size() int64  { return i.size }
func (i memFileInfo) Mode() fs.FileMode {
	if i.isSymlink {
		return fs.ModeSymlink
	}
	if i.isDir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return i.isDir }
func (i memFileInfo) Sys() any           { return nil }
