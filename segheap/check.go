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
	"fmt"
)

// Check walks the heap and the class lists and verifies every structural
// invariant: sentinel integrity, tag agreement, alignment, bounds, full
// physical coverage, no adjacent free pairs, link symmetry, class
// membership, and agreement between the physical and list views of the
// free blocks. It reads heap state and mutates nothing. Returns nil when
// the heap is consistent, otherwise an error naming the first violation
// and its offset.
func (h *Heap) Check() error {
	low, high := h.r.Low(), h.r.High()
	if high-low < bootBytes {
		return fmt.Errorf("segheap: heap of %d bytes is smaller than its own metadata", high-low)
	}

	// sentinels
	if h.word(prologueOff-wordSize) != pack(dsize, true) {
		return fmt.Errorf("segheap: bad prologue header at %d", prologueOff-wordSize)
	}
	if h.word(prologueOff) != pack(dsize, true) {
		return fmt.Errorf("segheap: bad prologue footer at %d", prologueOff)
	}
	if h.word(high-wordSize) != pack(0, true) {
		return fmt.Errorf("segheap: bad epilogue header at %d", high-wordSize)
	}

	// physical walk
	var blocks, physFree int
	prevFree := false
	bp := prologueOff + dsize
	for {
		hw := h.word(bp - wordSize)
		size := int(hw &^ 0x7)
		free := hw&0x1 == 0

		if size == 0 {
			// only the epilogue header may have size 0, and it sits
			// exactly at the heap's high end
			if bp-wordSize != high-wordSize || free {
				return fmt.Errorf("segheap: zero-size block at %d", bp)
			}
			break
		}
		if bp%alignment != 0 {
			return fmt.Errorf("segheap: misaligned block at %d", bp)
		}
		if size < minBlockSize || size%alignment != 0 {
			return fmt.Errorf("segheap: bad block size %d at %d", size, bp)
		}
		// the last block ends flush against the epilogue header, so its
		// end may reach high exactly
		if bp+size > high {
			return fmt.Errorf("segheap: block at %d overruns the heap", bp)
		}
		if fw := h.word(bp + size - dsize); fw != hw {
			return fmt.Errorf("segheap: header %#x != footer %#x at %d", hw, fw, bp)
		}
		if free {
			if prevFree {
				return fmt.Errorf("segheap: uncoalesced free blocks at %d", bp)
			}
			physFree++
		}
		prevFree = free
		blocks++
		bp += size
	}

	// class lists
	var listFree int
	for k := 0; k <= maxList; k++ {
		steps := 0
		for bp := h.listHead(k); bp != 0; bp = h.succ(bp) {
			if steps++; steps > physFree {
				return fmt.Errorf("segheap: class %d list is cyclic or overlong", k)
			}
			if bp < prologueOff+dsize || bp >= high {
				return fmt.Errorf("segheap: class %d link %d out of heap", k, bp)
			}
			if bp%alignment != 0 {
				return fmt.Errorf("segheap: class %d member %d misaligned", k, bp)
			}
			if steps == 1 && h.pred(bp) != 0 {
				return fmt.Errorf("segheap: class %d head %d has a predecessor", k, bp)
			}
			hw := h.word(bp - wordSize)
			if hw&0x1 != 0 {
				return fmt.Errorf("segheap: allocated block %d on class %d list", bp, k)
			}
			size := int(hw &^ 0x7)
			if size < minBlockSize || bp+size > high {
				return fmt.Errorf("segheap: class %d member %d has bad size %d", k, bp, size)
			}
			if fw := h.word(bp + size - dsize); fw != hw {
				return fmt.Errorf("segheap: class %d member %d header %#x != footer %#x", k, bp, hw, fw)
			}
			if listIndex(size) != k {
				return fmt.Errorf("segheap: block %d of size %d filed under class %d, want %d",
					bp, size, k, listIndex(size))
			}
			if s := h.succ(bp); s != 0 && h.pred(s) != bp {
				return fmt.Errorf("segheap: asymmetric link %d -> %d in class %d", bp, s, k)
			}
			listFree++
		}
	}

	if physFree != listFree {
		return fmt.Errorf("segheap: %d free blocks on the heap, %d on the class lists",
			physFree, listFree)
	}
	return nil
}
