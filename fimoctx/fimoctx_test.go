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
package fimoctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fimo.dev/module/instance"
	"fimo.dev/module/internal/logging"
	"fimo.dev/module/internal/platform"
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

func newTestContext(t *testing.T) (*Context, *modhandle.FakeLoader) {
	loader := modhandle.NewFakeLoader()
	fsys := platform.NewMemFileSystem()
	require.NoError(t, fsys.MkdirAll("/modules", 0o755))

	c, err := New(Options{
		Name:       "test-host",
		Logger:     logging.NewSilent(),
		FileSystem: fsys,
		Loader:     loader,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, loader
}

func TestNewRegistersHostPseudoInstance(t *testing.T) {
	c, _ := newTestContext(t)

	h, ok := c.FindByName("test-host")
	require.True(t, ok)
	assert.Equal(t, instance.Pseudo, h.Kind())
	assert.Same(t, c.Pseudo(), h)
}

func TestNewDefaultsHostName(t *testing.T) {
	c, err := New(Options{
		FileSystem: platform.NewMemFileSystem(),
		Loader:     modhandle.NewFakeLoader(),
		Logger:     logging.NewSilent(),
	})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.FindByName("host")
	assert.True(t, ok)
}

func TestNewLoadingSetCommitsAgainstSharedRegistry(t *testing.T) {
	c, loader := newTestContext(t)

	loader.Register("/modules/svc.so", func(visit func(*modhandle.ExportRecord) bool) {
		visit(&modhandle.ExportRecord{
			Name: "svc",
			StaticExports: []modhandle.SymbolExportDecl{
				{Name: "hello", Namespace: "", Version: v("1.0.0"), Value: "hi"},
			},
		})
	})

	set := c.NewLoadingSet()
	var success []*instance.Handle
	var mu sync.Mutex
	onSuccess := func(h *instance.Handle) {
		mu.Lock()
		defer mu.Unlock()
		success = append(success, h)
	}
	onError := func(error) {}
	onAbort := func() {}

	ctx := context.Background()
	require.NoError(t, set.AddModule(ctx, "/modules/svc.so", onSuccess, onError, onAbort))
	require.NoError(t, set.Commit(ctx))

	require.Len(t, success, 1)
	assert.True(t, c.System().Has("svc"))

	loaded, ok := c.FindByName("svc")
	require.True(t, ok)
	assert.Same(t, success[0], loaded)
}

func TestFindBySymbolResolvesCompatibleExport(t *testing.T) {
	c, loader := newTestContext(t)

	loader.Register("/modules/svc.so", func(visit func(*modhandle.ExportRecord) bool) {
		visit(&modhandle.ExportRecord{
			Name: "svc",
			StaticExports: []modhandle.SymbolExportDecl{
				{Name: "greet", Namespace: "ns", Version: v("1.2.0"), Value: "hi"},
			},
		})
	})

	set := c.NewLoadingSet()
	ctx := context.Background()
	require.NoError(t, set.AddModule(ctx, "/modules/svc.so", func(*instance.Handle) {}, func(error) {}, func() {}))
	require.NoError(t, set.Commit(ctx))

	h, ok := c.FindBySymbol("greet", "ns", v("1.0.0"))
	require.True(t, ok)
	assert.Equal(t, "svc", h.Name())

	_, ok = c.FindBySymbol("greet", "ns", v("2.0.0"))
	assert.False(t, ok)
}

func TestNamespaceExistsAfterModuleExportsIntoIt(t *testing.T) {
	c, loader := newTestContext(t)

	assert.False(t, c.NamespaceExists("custom"))

	loader.Register("/modules/svc.so", func(visit func(*modhandle.ExportRecord) bool) {
		visit(&modhandle.ExportRecord{
			Name: "svc",
			StaticExports: []modhandle.SymbolExportDecl{
				{Name: "sym", Namespace: "custom", Version: v("1.0.0"), Value: 1},
			},
		})
	})

	set := c.NewLoadingSet()
	ctx := context.Background()
	require.NoError(t, set.AddModule(ctx, "/modules/svc.so", func(*instance.Handle) {}, func(error) {}, func() {}))
	require.NoError(t, set.Commit(ctx))

	assert.True(t, c.NamespaceExists("custom"))
}

func TestPruneReclaimsDetachableInstance(t *testing.T) {
	c, loader := newTestContext(t)

	loader.Register("/modules/leaf.so", func(visit func(*modhandle.ExportRecord) bool) {
		visit(&modhandle.ExportRecord{Name: "leaf"})
	})

	set := c.NewLoadingSet()
	ctx := context.Background()
	require.NoError(t, set.AddModule(ctx, "/modules/leaf.so", func(*instance.Handle) {}, func(error) {}, func() {}))
	require.NoError(t, set.Commit(ctx))

	require.True(t, c.System().Has("leaf"))
	unloaded := c.Prune()
	assert.Contains(t, unloaded, "leaf")
	assert.False(t, c.System().Has("leaf"))
}

func TestReadWriteParameterRoundtrips(t *testing.T) {
	c, loader := newTestContext(t)

	loader.Register("/modules/svc.so", func(visit func(*modhandle.ExportRecord) bool) {
		visit(&modhandle.ExportRecord{
			Name: "svc",
			Parameters: []modhandle.ParamDecl{
				{Name: "level", Type: param.U32, Default: 3, ReadGroup: param.Public, WriteGroup: param.Public},
			},
		})
	})

	set := c.NewLoadingSet()
	ctx := context.Background()
	require.NoError(t, set.AddModule(ctx, "/modules/svc.so", func(*instance.Handle) {}, func(error) {}, func() {}))
	require.NoError(t, set.Commit(ctx))

	got, err := c.ReadParameter("", "svc", "level", param.U32)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got)

	require.NoError(t, c.WriteParameter("", "svc", "level", param.U32, 9))
	got, err = c.ReadParameter("", "svc", "level", param.U32)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got)
}

func TestReadParameterUnknownInstance(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.ReadParameter("", "missing", "level", param.U32)
	assert.Error(t, err)
}

func TestCloseDetachesPseudoInstance(t *testing.T) {
	c, _ := newTestContext(t)
	require.NoError(t, c.Close())
	assert.False(t, c.System().Has("test-host"))
}
