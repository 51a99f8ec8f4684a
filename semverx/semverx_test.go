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
package semverx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	v, err := Parse("1.2.0")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 0}, v)
	assert.Equal(t, "1.2.0", v.String())

	v2, err := Parse("1.2.0+deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", v2.Build)
	assert.Equal(t, "1.2.0+deadbeef", v2.String())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.x", "", "1.2.3.4"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestCompatibleWithMatchesSpecExamples(t *testing.T) {
	got := Version{Major: 1, Minor: 2, Patch: 0}

	req, err := Parse("1.2.0")
	require.NoError(t, err)
	assert.True(t, CompatibleWith(got, req))

	req2, err := Parse("2.0.0")
	require.NoError(t, err)
	assert.False(t, CompatibleWith(got, req2))
}

func TestCompatibleWithZeroMajorRequiresMinorMatch(t *testing.T) {
	got := Version{Major: 0, Minor: 3, Patch: 1}
	req := Version{Major: 0, Minor: 3, Patch: 0}
	assert.True(t, CompatibleWith(got, req))

	reqOtherMinor := Version{Major: 0, Minor: 4, Patch: 0}
	assert.False(t, CompatibleWith(got, reqOtherMinor), "0.x requires exact minor match")
}

func TestCompatibleWithRequiresGreaterOrEqualPatch(t *testing.T) {
	got := Version{Major: 1, Minor: 0, Patch: 0}
	req := Version{Major: 1, Minor: 0, Patch: 5}
	assert.False(t, CompatibleWith(got, req), "got must be >= req")
}

func TestCompareIgnoresBuildMetadata(t *testing.T) {
	a := Version{Major: 1, Minor: 0, Patch: 0, Build: "abc"}
	b := Version{Major: 1, Minor: 0, Patch: 0, Build: "xyz"}
	assert.Equal(t, 0, Compare(a, b))
}
