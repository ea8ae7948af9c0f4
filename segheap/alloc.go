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
	"math"
	"math/bits"
)

// adjustSize converts a request of n payload bytes into a block size:
// room for both boundary tags, rounded up to the alignment, never below the
// minimum block.
func adjustSize(n int) int {
	asize := alignUp(n+dsize, alignment)
	if asize < minBlockSize {
		asize = minBlockSize
	}
	return asize
}

// Alloc allocates n bytes and returns the payload offset, or 0 when n is
// zero or the region is exhausted. The offset is 8-aligned. On failure the
// heap is unchanged.
func (h *Heap) Alloc(n int) int {
	if n <= 0 || n > math.MaxInt32-minBlockSize {
		return 0
	}
	asize := adjustSize(n)

	if bp := h.findFit(asize); bp != 0 {
		h.place(bp, asize)
		h.postOp()
		return bp
	}

	ext := asize
	if ext < h.chunk {
		ext = h.chunk
	}
	bp, err := h.extendHeap(ext)
	if err != nil {
		return 0
	}
	h.place(bp, asize)
	h.postOp()
	return bp
}

// Free releases the block at payload offset p. p must have come from Alloc,
// Realloc or Calloc and not been freed since; Free(0) is a no-op.
func (h *Heap) Free(p int) {
	if p == 0 {
		return
	}
	h.writeTags(p, h.blockSize(p), false)
	h.insert(p)
	h.coalesce(p)
	h.postOp()
}

// Realloc resizes the block at p to n bytes. Realloc(0, n) is Alloc(n);
// Realloc(p, 0) frees p and returns 0. Shrinking never fails and keeps p;
// growing moves the block, copying the payload, and returns 0 on exhaustion
// with p left intact.
func (h *Heap) Realloc(p, n int) int {
	if p == 0 {
		return h.Alloc(n)
	}
	if n <= 0 {
		h.Free(p)
		return 0
	}
	if n > math.MaxInt32-minBlockSize {
		return 0
	}
	asize := adjustSize(n)
	old := h.blockSize(p)

	if asize == old {
		return p
	}

	if asize < old {
		// a tail of minBlockSize bytes or less stays inside the block
		if old-asize <= minBlockSize {
			return p
		}
		h.writeTags(p, asize, true)
		nbp := h.nextPhys(p)
		h.writeTags(nbp, old-asize, false)
		h.insert(nbp)
		h.coalesce(nbp)
		h.postOp()
		return p
	}

	np := h.Alloc(n)
	if np == 0 {
		return 0
	}
	count := old - dsize
	if n < count {
		count = n
	}
	copy(h.mem[np:np+count], h.mem[p:p+count])
	h.Free(p)
	return np
}

// Calloc allocates count*size bytes and zeroes them. Overflow of the
// multiplication is failure.
func (h *Heap) Calloc(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	hi, total := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || total > math.MaxInt32-minBlockSize {
		return 0
	}
	p := h.Alloc(int(total))
	if p == 0 {
		return 0
	}
	b := h.mem[p : p+int(total)]
	for i := range b {
		b[i] = 0
	}
	return p
}

// Payload returns the payload bytes of the allocated block at p. The slice
// is invalidated by any operation that can grow the region (Alloc, Realloc,
// Calloc); the offset p stays valid.
func (h *Heap) Payload(p int) []byte {
	return h.mem[p : p+h.blockSize(p)-dsize]
}

// Size returns the usable payload size of the allocated block at p, which
// is at least the size requested from Alloc.
func (h *Heap) Size(p int) int {
	return h.blockSize(p) - dsize
}
