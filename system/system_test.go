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
package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/instance"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/semverx"
)

func v(s string) semverx.Version {
	ver, err := semverx.Parse(s)
	if err != nil {
		panic(err)
	}
	return ver
}

func TestAddGetRemoveInstance(t *testing.T) {
	sys := New(logging.NewSilent())
	a := instance.NewPseudo("a", logging.NewSilent())

	require.NoError(t, sys.AddInstance(a))
	got, ok := sys.Get("a")
	require.True(t, ok)
	assert.Equal(t, a, got)

	require.NoError(t, sys.RemoveInstance("a"))
	assert.False(t, sys.Has("a"))
}

func TestAddDuplicateInstanceRejected(t *testing.T) {
	sys := New(logging.NewSilent())
	a := instance.NewPseudo("a", logging.NewSilent())
	require.NoError(t, sys.AddInstance(a))

	err := sys.AddInstance(instance.NewPseudo("a", logging.NewSilent()))
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.Duplicate))
}

func TestAddInstanceExportsSymbolsAndRollsBackOnDuplicate(t *testing.T) {
	sys := New(logging.NewSilent())

	a := instance.NewPseudo("a", logging.NewSilent())
	a.ExportSymbol("shared", "", v("1.0.0"), "a-value", nil)
	require.NoError(t, sys.AddInstance(a))

	b := instance.NewPseudo("b", logging.NewSilent())
	b.ExportSymbol("shared", "", v("1.0.0"), "b-value", nil)
	err := sys.AddInstance(b)
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.Duplicate))

	assert.False(t, sys.Has("b"), "add_instance must roll back the partial registration")
	entry, ok := sys.Symbols().Lookup("shared", "")
	require.True(t, ok)
	assert.Equal(t, "a", entry.Owner)
}

func TestRemoveInstanceWithDependentsRejected(t *testing.T) {
	sys := New(logging.NewSilent())
	a := instance.NewPseudo("a", logging.NewSilent())
	b := instance.NewPseudo("b", logging.NewSilent())
	require.NoError(t, sys.AddInstance(a))
	require.NoError(t, sys.AddInstance(b))
	require.NoError(t, sys.LinkInstances("a", "b"))

	err := sys.RemoveInstance("b")
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotPermitted))
}

func TestLinkInstancesRejectsCycle(t *testing.T) {
	sys := New(logging.NewSilent())
	a := instance.NewPseudo("a", logging.NewSilent())
	b := instance.NewPseudo("b", logging.NewSilent())
	require.NoError(t, sys.AddInstance(a))
	require.NoError(t, sys.AddInstance(b))
	require.NoError(t, sys.LinkInstances("a", "b"))

	err := sys.LinkInstances("b", "a")
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.CyclicDependency))
}

func TestPruneReclaimsExternalZeroStrong(t *testing.T) {
	sys := New(logging.NewSilent())
	a := instance.NewPseudo("a", logging.NewSilent())
	b := instance.NewPseudo("b", logging.NewSilent())
	require.NoError(t, sys.AddInstance(a))
	require.NoError(t, sys.AddInstance(b))
	require.NoError(t, sys.LinkInstances("a", "b"))
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, b.Stop(context.Background()))

	// a has a dependent count of zero (nothing depends on a) so it's
	// immediately prunable; once a is gone, b has no dependents either and
	// the next pass reclaims it too.
	unloaded := sys.Prune()
	assert.Equal(t, []string{"a", "b"}, unloaded)
}
