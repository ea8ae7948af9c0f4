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

// newDirtyableHeap returns a heap without post-op checking, so tests can
// corrupt it and call Check directly.
func newDirtyableHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(region.NewSlice(0))
	require.NoError(t, err)
	return h
}

func TestCheckCleanHeap(t *testing.T) {
	h := newDirtyableHeap(t)
	require.NoError(t, h.Check())

	var ps []int
	for i := 0; i < 10; i++ {
		p := h.Alloc(100)
		require.NotZero(t, p)
		ps = append(ps, p)
	}
	require.NoError(t, h.Check())
	for i, p := range ps {
		if i%2 == 0 {
			h.Free(p)
		}
	}
	require.NoError(t, h.Check())
}

func TestCheckDetectsCorruption(t *testing.T) {
	t.Run("prologue", func(t *testing.T) {
		h := newDirtyableHeap(t)
		h.setWord(prologueOff-wordSize, pack(dsize, false))
		assert.Error(t, h.Check())
	})

	t.Run("epilogue", func(t *testing.T) {
		h := newDirtyableHeap(t)
		h.setWord(h.r.High()-wordSize, pack(minBlockSize, true))
		assert.Error(t, h.Check())
	})

	t.Run("header_footer_disagree", func(t *testing.T) {
		h := newDirtyableHeap(t)
		bp := h.findFit(minBlockSize)
		require.NotZero(t, bp)
		// flip only the header's allocated bit
		h.setWord(h.hdr(bp), pack(h.blockSize(bp), true))
		assert.Error(t, h.Check())
	})

	t.Run("free_block_off_lists", func(t *testing.T) {
		h := newDirtyableHeap(t)
		p := h.Alloc(24)
		require.NotZero(t, p)
		// mark free in both tags without touching the lists
		h.writeTags(p, h.blockSize(p), false)
		assert.Error(t, h.Check())
	})

	t.Run("wrong_class", func(t *testing.T) {
		h := newDirtyableHeap(t)
		bp := h.findFit(minBlockSize) // the initial chunk, class 3
		require.NotZero(t, bp)
		k := listIndex(h.blockSize(bp))
		h.setListHead(k, 0)
		h.setListHead(k+1, bp)
		assert.Error(t, h.Check())
	})

	t.Run("asymmetric_links", func(t *testing.T) {
		h := newDirtyableHeap(t)
		// two same-class free blocks kept apart by live separators, then
		// break the back link
		a := h.Alloc(24)
		x := h.Alloc(24)
		b := h.Alloc(24)
		y := h.Alloc(24)
		require.NotZero(t, x)
		require.NotZero(t, y)
		h.Free(a)
		h.Free(b) // b is head, b.succ = a
		require.Equal(t, a, h.succ(b))
		h.setPred(a, 0)
		assert.Error(t, h.Check())
	})

	t.Run("link_out_of_heap", func(t *testing.T) {
		h := newDirtyableHeap(t)
		bp := h.findFit(minBlockSize)
		require.NotZero(t, bp)
		h.setSucc(bp, h.r.High()+64)
		assert.Error(t, h.Check())
	})
}

func TestCheckAdjacentFreeBlocks(t *testing.T) {
	h := newDirtyableHeap(t)

	a := h.Alloc(24)
	b := h.Alloc(24)
	require.NotZero(t, b)
	h.Free(a)

	// fake a second free block right after a, bypassing coalescing:
	// mark b free in its tags and thread it onto its list by hand
	h.writeTags(b, h.blockSize(b), false)
	h.insert(b)
	assert.Error(t, h.Check())
}
