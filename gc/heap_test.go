package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/gc"
	"github.com/wudi/magpie/values"
)

func TestNeedsCollectCrossesThreshold(t *testing.T) {
	h := gc.NewHeap(64)
	require.False(t, h.NeedsCollect())

	s := values.NewString("0123456789abcdef")
	h.Alloc(s.HeapData(), gc.EstimateSize(s))
	assert.True(t, h.NeedsCollect())
}

func TestCollectDropsUnreachableObjects(t *testing.T) {
	h := gc.NewHeap(1024)

	kept := values.NewString("kept")
	dropped := values.NewString("dropped")
	h.Alloc(kept.HeapData(), gc.EstimateSize(kept))
	h.Alloc(dropped.HeapData(), gc.EstimateSize(dropped))

	before := h.Stats().Occupied
	require.Equal(t, gc.EstimateSize(kept)+gc.EstimateSize(dropped), before)

	stats := h.Collect(func(mark func(*values.Value)) {
		mark(kept)
	})
	assert.Equal(t, gc.EstimateSize(kept), stats.Occupied)
	assert.EqualValues(t, 1, stats.Collections)
}

func TestCollectTracesThroughList(t *testing.T) {
	h := gc.NewHeap(1024)

	elem := values.NewString("inner")
	list := values.NewList([]*values.Value{elem})
	h.Alloc(elem.HeapData(), gc.EstimateSize(elem))
	h.Alloc(list.HeapData(), gc.EstimateSize(list))

	stats := h.Collect(func(mark func(*values.Value)) {
		mark(list)
	})
	assert.Equal(t, gc.EstimateSize(elem)+gc.EstimateSize(list), stats.Occupied)
}

func TestThresholdGrowsOnHighWaterMark(t *testing.T) {
	h := gc.NewHeap(100)
	big := values.NewList(make([]*values.Value, 20))
	h.Alloc(big.HeapData(), gc.EstimateSize(big))

	before := h.Stats().HeapSize
	h.Collect(func(mark func(*values.Value)) { mark(big) })
	assert.Greater(t, h.Stats().HeapSize, before)
}
