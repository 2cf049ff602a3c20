package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateGroup_SimpleSaturation(t *testing.T) {
	units := []Unit{{ID: "a", LimBR10: 500}, {ID: "b", LimBR10: 1000}}
	assigned, residual := AllocateGroup(SortGroup(units), 1500)
	assert.Equal(t, int64(0), residual)
	assert.Equal(t, int64(500), assigned["a"])
	assert.Equal(t, int64(1000), assigned["b"])
}

func TestAllocateGroup_RebalanceAfterCap(t *testing.T) {
	units := []Unit{{ID: "a", LimBR10: 200}, {ID: "b", LimBR10: 400}, {ID: "c", LimBR10: 800}}
	assigned, residual := AllocateGroup(SortGroup(units), 1000)
	assert.Equal(t, int64(0), residual)
	assert.Equal(t, int64(200), assigned["a"])
	assert.Equal(t, int64(400), assigned["b"])
	assert.Equal(t, int64(400), assigned["c"])
}

func TestAllocateGroup_TieBreakByDeclarationOrder(t *testing.T) {
	units := []Unit{{ID: "first", LimBR10: 100}, {ID: "second", LimBR10: 100}}
	sorted := SortGroup(units)
	assert.Equal(t, "first", sorted[0].ID)
	assert.Equal(t, "second", sorted[1].ID)
}

func TestAllocateGroup_ResidualWhenOversupplied(t *testing.T) {
	units := []Unit{{ID: "a", LimBR10: 50}}
	assigned, residual := AllocateGroup(SortGroup(units), 500)
	assert.Equal(t, int64(50), assigned["a"])
	assert.Equal(t, int64(450), residual)
}

func TestAllocate_MultiGroupCarriesResidual(t *testing.T) {
	groups := map[int][]Unit{
		1: {{ID: "p1a", LimBR10: 100}},
		2: {{ID: "p2a", LimBR10: 1000}},
	}
	assignments, residual := Allocate(groups, 500)
	assert.Equal(t, int64(100), assignments["p1a"])
	assert.Equal(t, int64(400), assignments["p2a"])
	assert.Equal(t, int64(0), residual)
}

func TestAllocate_SkipsIndependentGroupZero(t *testing.T) {
	groups := map[int][]Unit{
		0: {{ID: "independent", LimBR10: 999}},
		1: {{ID: "p1a", LimBR10: 100}},
	}
	assignments, residual := Allocate(groups, 50)
	_, present := assignments["independent"]
	assert.False(t, present)
	assert.Equal(t, int64(50), assignments["p1a"])
	assert.Equal(t, int64(0), residual)
}
