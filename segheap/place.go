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

// findFit returns the first free block that can hold an adjusted request of
// asize bytes, scanning class lists upward from the request's own class and
// each list in insertion order. Returns 0 when no class has a candidate.
func (h *Heap) findFit(asize int) int {
	for k := listIndex(asize); k <= maxList; k++ {
		for bp := h.listHead(k); bp != 0; bp = h.succ(bp) {
			if h.blockSize(bp) >= asize {
				return bp
			}
		}
	}
	return 0
}

// place allocates asize bytes at the free block bp. The block leaves its
// class list; when the remainder exceeds minListSize it is split off as a
// new free block, otherwise the whole block is consumed. Consuming a small
// remainder trades internal fragmentation for not minting class-0 fragments
// that rarely coalesce.
func (h *Heap) place(bp, asize int) {
	h.remove(bp)
	csize := h.blockSize(bp)
	if rem := csize - asize; rem > minListSize {
		h.writeTags(bp, asize, true)
		nbp := h.nextPhys(bp)
		h.writeTags(nbp, rem, false)
		h.insert(nbp)
	} else {
		h.writeTags(bp, csize, true)
	}
}
