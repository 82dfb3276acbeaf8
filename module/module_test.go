package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/module"
)

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	core := module.New("core", "core.mag")
	util := module.New("util", "util.mag")
	util.Imports = []*module.Module{core}
	main := module.New("main", "main.mag")
	main.Imports = []*module.Module{core, util}

	ordered, err := module.TopoSort([]*module.Module{main, util, core})
	require.NoError(t, err)
	require.Len(t, ordered, 3)

	index := map[*module.Module]int{}
	for i, m := range ordered {
		index[m] = i
	}
	assert.Less(t, index[core], index[util])
	assert.Less(t, index[util], index[main])
}

func TestTopoSortDetectsCycle(t *testing.T) {
	a := module.New("a", "a.mag")
	b := module.New("b", "b.mag")
	a.Imports = []*module.Module{b}
	b.Imports = []*module.Module{a}

	_, err := module.TopoSort([]*module.Module{a, b})
	require.Error(t, err)
	var cycleErr *module.ErrImportCycle
	require.ErrorAs(t, err, &cycleErr)
}

func TestResolvePathSearchesProgramThenCoreDir(t *testing.T) {
	paths := module.ResolvePath("/prog", "/core", "a.b.c")
	require.Len(t, paths, 2)
	assert.Equal(t, "/prog/a/b/c.mag", paths[0])
	assert.Equal(t, "/core/a/b/c.mag", paths[1])
}

func TestDeclareVariableTracksParallelArrays(t *testing.T) {
	m := module.New("m", "m.mag")
	i := m.DeclareVariable("x")
	assert.Equal(t, 0, i)
	assert.Nil(t, m.Variable(i))
	assert.Equal(t, len(m.VarNames), len(m.VarValues))
}
