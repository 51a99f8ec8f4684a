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
package depgraph

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveEdgeRoundTrip(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")

	require.NoError(t, g.AddEdge("A", "B"))
	assert.True(t, g.HasEdge("A", "B"))

	g.RemoveEdge("A", "B")
	assert.False(t, g.HasEdge("A", "B"), "graph must restore bit-for-bit after add+remove")
}

func TestCycleDetection(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	require.NoError(t, g.AddEdge("A", "B"))
	assert.False(t, g.IsCyclic())

	require.NoError(t, g.AddEdge("B", "A"))
	assert.True(t, g.IsCyclic())
}

func TestPathExistsRejectsCycleClosingLink(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	g.AddNode("C")
	require.NoError(t, g.AddEdge("A", "B"))
	require.NoError(t, g.AddEdge("B", "C"))

	assert.True(t, g.PathExists("A", "C"))
	assert.False(t, g.PathExists("C", "A"))
}

func TestExternalsIncomingZeroIsUnloadable(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	require.NoError(t, g.AddEdge("A", "B"))

	externals := g.Externals(In)
	sort.Strings(externals)
	assert.Equal(t, []string{"A"}, externals, "only A has zero dependents")
}

func TestRemoveNodeClearsEdges(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	require.NoError(t, g.AddEdge("A", "B"))

	g.RemoveNode("A")
	assert.False(t, g.HasNode("A"))
	assert.Empty(t, g.Neighbors("B", In))
}
