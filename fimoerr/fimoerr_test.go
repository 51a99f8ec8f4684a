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
package fimoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(NotFound, "instance %q", "foo")
	assert.Equal(t, NotFound, err.Kind)
	assert.Equal(t, "not found: instance \"foo\"", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(DlOpenError, cause, "loading %s", "libfoo.so")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := New(Duplicate, "symbol %s already exported", "sym")
	wrapped := fmt.Errorf("add_instance failed: %w", base)

	assert.True(t, Is(wrapped, Duplicate))
	assert.False(t, Is(wrapped, NotFound))
	assert.False(t, Is(errors.New("unrelated"), Duplicate))
}

func TestKindStringIsStable(t *testing.T) {
	cases := map[Kind]string{
		Duplicate:             "duplicate",
		NotFound:              "not found",
		NotPermitted:          "not permitted",
		NotADependency:        "not a dependency",
		InvalidParameterType:  "invalid parameter type",
		CyclicDependency:      "cyclic dependency",
		LoadingInProcess:      "loading in process",
		Detached:              "detached",
		InvalidExport:         "invalid export",
		Allocation:            "allocation failure",
		InvalidModule:         "invalid module",
		InvalidPath:           "invalid path",
		DlOpenError:           "dynamic load error",
		InUse:                 "in use",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestErrorWithoutMessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: InUse}
	assert.Equal(t, "in use", err.Error())
}
