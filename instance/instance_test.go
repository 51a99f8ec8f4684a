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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fimo.dev/module/fimoerr"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/modhandle"
	"fimo.dev/module/param"
	"fimo.dev/module/semverx"
)

func v(s string) semverx.Version {
	ver, err := semverx.Parse(s)
	if err != nil {
		panic(err)
	}
	return ver
}

func newTestModule(t *testing.T, export *modhandle.ExportRecord) *modhandle.Handle {
	t.Helper()
	return modhandle.FromCurrentBinary(modhandle.NewFakeLoader(), "/modules/test", func(visit func(*modhandle.ExportRecord) bool) {
		visit(export)
	})
}

func TestPseudoInstanceStartsInStartedState(t *testing.T) {
	h := NewPseudo("ctx", logging.NewSilent())
	assert.Equal(t, Started, h.State())
	assert.Equal(t, Pseudo, h.Kind())
}

func TestRegularInstanceLifecycle(t *testing.T) {
	started := false
	stopped := false
	export := &modhandle.ExportRecord{
		Name: "net",
		StartEvent: func(modhandle.BuildContext) error {
			started = true
			return nil
		},
		StopEvent: func(modhandle.BuildContext) error {
			stopped = true
			return nil
		},
	}
	mod := newTestModule(t, export)
	h := NewRegular("net", export, mod, logging.NewSilent())
	h.state = Init // a loading set would normally drive uninit->init itself

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, started)
	assert.Equal(t, Started, h.State())

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, stopped)
	assert.Equal(t, Init, h.State())
	assert.False(t, h.IsDetached(), "is_detached must be cleared once stop's event returns")
}

func TestStartRejectedOutsideInit(t *testing.T) {
	h := NewPseudo("ctx", logging.NewSilent())
	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotPermitted))
}

func TestDetachRejectedWithStrongReferences(t *testing.T) {
	h := NewPseudo("ctx", logging.NewSilent())
	require.NoError(t, h.Stop(context.Background()))

	require.NoError(t, h.TryAcquireStrong())
	err := h.Detach()
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.InUse))

	h.ReleaseStrong()
	require.NoError(t, h.Detach())
}

func TestDetachRunsInstanceDestructor(t *testing.T) {
	destructed := false
	export := &modhandle.ExportRecord{
		Name: "svc",
		InstanceConstructor: func(modhandle.BuildContext) (any, error) { return "state", nil },
		InstanceDestructor: func(v any) {
			destructed = true
			assert.Equal(t, "state", v)
		},
	}
	mod := newTestModule(t, export)
	h := NewRegular("svc", export, mod, logging.NewSilent())
	h.state = Init
	h.instanceState = "state"

	require.NoError(t, h.Detach())
	assert.True(t, destructed)
}

func TestDependencyAddRemove(t *testing.T) {
	a := NewPseudo("a", logging.NewSilent())
	b := NewPseudo("b", logging.NewSilent())

	require.NoError(t, a.AddDependency("b", b, Dynamic))
	entry, ok := a.QueryDependency("b")
	require.True(t, ok)
	assert.Equal(t, Dynamic, entry.Kind)

	require.NoError(t, a.RemoveDependency("b"))
	_, ok = a.QueryDependency("b")
	assert.False(t, ok)
}

func TestStaticDependencyCannotBeRemoved(t *testing.T) {
	a := NewPseudo("a", logging.NewSilent())
	b := NewPseudo("b", logging.NewSilent())
	require.NoError(t, a.AddDependency("b", b, Static))

	err := a.RemoveDependency("b")
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotPermitted))
}

func TestRemoveUnknownDependencyIsNotADependency(t *testing.T) {
	a := NewPseudo("a", logging.NewSilent())
	err := a.RemoveDependency("ghost")
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotADependency))
}

func TestLoadSymbolVersionGating(t *testing.T) {
	h := NewPseudo("a", logging.NewSilent())
	h.ExportSymbol("foo", "", v("1.2.0"), 42, nil)

	val, err := h.LoadSymbol("foo", "", v("1.2.0"))
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	_, err = h.LoadSymbol("foo", "", v("1.3.0"))
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotFound))
}

func TestParameterAccessPolicy(t *testing.T) {
	export := &modhandle.ExportRecord{
		Name: "svc",
		Parameters: []modhandle.ParamDecl{
			{Name: "limit", Type: param.U32, Default: 10, ReadGroup: param.Public, WriteGroup: param.Private},
		},
	}
	mod := newTestModule(t, export)
	h := NewRegular("svc", export, mod, logging.NewSilent())

	val, err := h.ReadParameter("anyone", "limit", param.U32)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), val)

	err = h.WriteParameter("stranger", "limit", param.U32, 5)
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.NotPermitted))

	require.NoError(t, h.WriteParameter("svc", "limit", param.U32, 5))
	val, err = h.ReadParameter("svc", "limit", param.U32)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), val)
}

func TestParameterTypeMismatch(t *testing.T) {
	export := &modhandle.ExportRecord{
		Name: "svc",
		Parameters: []modhandle.ParamDecl{
			{Name: "limit", Type: param.U32, ReadGroup: param.Public, WriteGroup: param.Public},
		},
	}
	mod := newTestModule(t, export)
	h := NewRegular("svc", export, mod, logging.NewSilent())

	_, err := h.ReadParameter("svc", "limit", param.I64)
	require.Error(t, err)
	assert.True(t, fimoerr.Is(err, fimoerr.InvalidParameterType))
}

func TestAcquireReleaseHandleRefCount(t *testing.T) {
	h := NewPseudo("a", logging.NewSilent())
	assert.Equal(t, int64(1), h.HandleRefCount())
	h.Acquire()
	assert.Equal(t, int64(2), h.HandleRefCount())
	h.Release()
	assert.Equal(t, int64(1), h.HandleRefCount())
}
