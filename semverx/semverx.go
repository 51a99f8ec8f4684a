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

// Package semverx parses "major.minor.patch[+build]" version strings and
// applies the module subsystem's compatibility rule between a module's
// declared version and a caller's requested version. It is built on
// golang.org/x/mod/semver, the same package the teacher's validate.go
// uses for its own schema version selection.
package semverx

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a parsed major.minor.patch[+build] version. Build metadata is
// retained only for display; it plays no part in comparison or
// compatibility.
type Version struct {
	Major, Minor, Patch int
	Build               string
}

// String renders the version back to "major.minor.patch[+build]".
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// canonical renders v as an x/mod/semver-digestible "vMAJOR.MINOR.PATCH"
// string (build metadata dropped; x/mod/semver ignores it anyway).
func (v Version) canonical() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse parses "major.minor.patch[+build]". It rejects missing components
// and non-numeric major/minor/patch segments; that strictness matches the
// module export record's declared-version field, which is always written by
// a compiler, never hand-typed.
func Parse(s string) (Version, error) {
	build := ""
	core := s
	if i := strings.IndexByte(s, '+'); i >= 0 {
		core, build = s[:i], s[i+1:]
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("semverx: %q is not major.minor.patch", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("semverx: %q has a non-numeric version component", s)
		}
		nums[i] = n
	}

	if !semver.IsValid(fmt.Sprintf("v%d.%d.%d", nums[0], nums[1], nums[2])) {
		return Version{}, fmt.Errorf("semverx: %q is not a valid semantic version", s)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: build}, nil
}

// Compare returns -1, 0, or +1 as a is less than, equal to, or greater than
// b, ignoring build metadata — delegated straight to x/mod/semver.Compare.
func Compare(a, b Version) int {
	return semver.Compare(a.canonical(), b.canonical())
}

// CompatibleWith reports whether a version `got` satisfies a requirement
// `req`:
//
//	got.major == req.major ∧ (req.major > 0 ∨ got.minor == req.minor) ∧ got ≥ req
//
// Build metadata is ignored on both sides.
func CompatibleWith(got, req Version) bool {
	if got.Major != req.Major {
		return false
	}
	if req.Major == 0 && got.Minor != req.Minor {
		return false
	}
	return Compare(got, req) >= 0
}
