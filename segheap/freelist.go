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

// The free-list table lives at the start of the region: maxList+1 head
// words, table[k] naming the first free block of class k (0 when empty).
// A free block's payload starts with two link words: predecessor at bp,
// successor at bp+4. Links are stored as 32-bit offsets from the region's
// low bound, which keeps the minimum block at 16 bytes; 0 is the null link.

// listIndex maps a block size to its class: the number of right shifts that
// bring size down to at most minListSize, clamped to maxList. Class k > 0
// thus holds sizes below (minListSize+1)<<k. For multiples of 8 up to 512
// this is the smallest k with size <= minListSize<<k; above that the
// truncating shift also keeps a few larger sizes in class k (520 is class 4).
func listIndex(size int) int {
	k := 0
	for size > minListSize && k < maxList {
		size >>= 1
		k++
	}
	return k
}

func (h *Heap) listHead(k int) int {
	return int(h.word(k * wordSize))
}

func (h *Heap) setListHead(k, bp int) {
	h.setWord(k*wordSize, uint32(bp))
}

func (h *Heap) pred(bp int) int { return int(h.word(bp)) }

func (h *Heap) succ(bp int) int { return int(h.word(bp + wordSize)) }

func (h *Heap) setPred(bp, p int) { h.setWord(bp, uint32(p)) }

func (h *Heap) setSucc(bp, s int) { h.setWord(bp+wordSize, uint32(s)) }

// insert links bp at the head of the class list for its size (LIFO).
func (h *Heap) insert(bp int) {
	k := listIndex(h.blockSize(bp))
	head := h.listHead(k)
	h.setPred(bp, 0)
	h.setSucc(bp, head)
	if head != 0 {
		h.setPred(head, bp)
	}
	h.setListHead(k, bp)
}

// remove splices bp out of the class list its size maps to.
func (h *Heap) remove(bp int) {
	k := listIndex(h.blockSize(bp))
	p, s := h.pred(bp), h.succ(bp)
	if p != 0 {
		h.setSucc(p, s)
	} else {
		h.setListHead(k, s)
	}
	if s != 0 {
		h.setPred(s, p)
	}
}
