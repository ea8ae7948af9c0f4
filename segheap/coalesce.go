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

// coalesce merges the free block bp with its free physical neighbors and
// returns the payload offset of the union. bp must already be on a class
// list; the merged block is reinserted exactly once, after its final size
// is stamped on both boundary tags, so it lands in the class its new size
// maps to. The prologue and epilogue are allocated sentinels, so both
// neighbor probes are always in bounds.
func (h *Heap) coalesce(bp int) int {
	prev := h.prevPhys(bp)
	next := h.nextPhys(bp)
	prevAlloc := h.allocated(prev)
	nextAlloc := h.allocated(next)
	size := h.blockSize(bp)

	switch {
	case prevAlloc && nextAlloc:
		return bp

	case prevAlloc && !nextAlloc:
		h.remove(bp)
		h.remove(next)
		size += h.blockSize(next)
		h.writeTags(bp, size, false)

	case !prevAlloc && nextAlloc:
		h.remove(bp)
		h.remove(prev)
		size += h.blockSize(prev)
		bp = prev
		h.writeTags(bp, size, false)

	default:
		h.remove(bp)
		h.remove(prev)
		h.remove(next)
		size += h.blockSize(prev) + h.blockSize(next)
		bp = prev
		h.writeTags(bp, size, false)
	}

	h.insert(bp)
	return bp
}
