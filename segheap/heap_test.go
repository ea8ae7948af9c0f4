/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package segheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/heapx/region"
)

// heapStart is the payload offset of the first non-sentinel block: the
// metadata prefix is table + pad + prologue + epilogue header.
const heapStart = bootBytes

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := NewWithConfig(region.NewSlice(0), Config{Check: true})
	require.NoError(t, err)
	return h
}

func TestNewLayout(t *testing.T) {
	h := newTestHeap(t)

	// boot metadata plus one chunk of free space
	assert.Equal(t, bootBytes+DefaultChunkSize, h.HeapSize())
	assert.NoError(t, h.Check())

	// prologue and epilogue sentinels
	assert.Equal(t, pack(dsize, true), h.word(prologueOff-wordSize))
	assert.Equal(t, pack(dsize, true), h.word(prologueOff))
	assert.Equal(t, pack(0, true), h.word(h.r.High()-wordSize))

	// the chunk is a single free block at the heap start
	assert.Equal(t, heapStart, h.findFit(minBlockSize))
	assert.Equal(t, DefaultChunkSize, h.blockSize(heapStart))
	assert.False(t, h.allocated(heapStart))
}

func TestNewErrors(t *testing.T) {
	t.Run("used_region", func(t *testing.T) {
		r := region.NewSlice(0)
		_, err := r.Extend(8)
		require.NoError(t, err)
		_, err = New(r)
		assert.Error(t, err)
	})

	t.Run("region_too_small", func(t *testing.T) {
		_, err := New(region.NewSlice(64))
		assert.Error(t, err)
	})

	t.Run("no_room_for_chunk", func(t *testing.T) {
		_, err := New(region.NewSlice(bootBytes))
		assert.Error(t, err)
	})
}

func TestNewWithConfigChunkSize(t *testing.T) {
	h, err := NewWithConfig(region.NewSlice(0), Config{ChunkSize: 100})
	require.NoError(t, err)
	// rounded up to a multiple of 8
	assert.Equal(t, bootBytes+104, h.HeapSize())
	assert.NoError(t, h.Check())
}

func TestListIndex(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{16, 0}, {24, 0}, {32, 0},
		{40, 1}, {64, 1},
		{72, 2}, {128, 2},
		{136, 3}, {256, 3},
		{264, 4}, {512, 4},
		{1 << 14, 9},
		{1 << 30, maxList},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, listIndex(tt.size), "size=%d", tt.size)
	}
}

func TestLIFOWithinClass(t *testing.T) {
	h := newTestHeap(t)

	// two same-class blocks kept apart by live separators, freed a then b:
	// b is the newer head and must be handed out first
	a := h.Alloc(24)
	x := h.Alloc(24)
	b := h.Alloc(24)
	y := h.Alloc(24)
	require.NotZero(t, a)
	require.NotZero(t, x)
	require.NotZero(t, b)
	require.NotZero(t, y)

	h.Free(a)
	h.Free(b)

	assert.Equal(t, b, h.Alloc(24))
	assert.Equal(t, a, h.Alloc(24))
}

func TestExtendAfterFullChunk(t *testing.T) {
	h := newTestHeap(t)

	// consume the whole initial chunk so the next alloc must extend
	p := h.Alloc(DefaultChunkSize - dsize)
	require.Equal(t, heapStart, p)

	q := h.Alloc(24)
	require.NotZero(t, q)
	assert.Equal(t, heapStart+DefaultChunkSize, q)
	assert.NoError(t, h.Check())
}
