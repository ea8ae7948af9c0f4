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
	"encoding/binary"
)

// Boundary-tag arithmetic. A block handle bp is the byte offset of the
// block's payload; the header sits at bp-4 and the footer at
// bp+size-8. Tag words are little-endian uint32: size in the high bits
// (sizes are multiples of 8, so the low three bits are spare), bit 0 is the
// allocated flag.

func pack(size int, allocated bool) uint32 {
	v := uint32(size)
	if allocated {
		v |= 1
	}
	return v
}

func (h *Heap) word(off int) uint32 {
	return binary.LittleEndian.Uint32(h.mem[off:])
}

func (h *Heap) setWord(off int, v uint32) {
	binary.LittleEndian.PutUint32(h.mem[off:], v)
}

func (h *Heap) hdr(bp int) int { return bp - wordSize }

func (h *Heap) ftr(bp int) int { return bp + h.blockSize(bp) - dsize }

func (h *Heap) blockSize(bp int) int {
	return int(h.word(bp-wordSize) &^ 0x7)
}

func (h *Heap) allocated(bp int) bool {
	return h.word(bp-wordSize)&0x1 != 0
}

// nextPhys returns the physically following block.
func (h *Heap) nextPhys(bp int) int {
	return bp + h.blockSize(bp)
}

// prevPhys returns the physically preceding block. Valid only when the
// preceding footer is initialized, which the prologue guarantees for every
// block in the heap interior.
func (h *Heap) prevPhys(bp int) int {
	return bp - int(h.word(bp-dsize)&^0x7)
}

// writeTags stamps both boundary tags of the block at bp.
func (h *Heap) writeTags(bp, size int, allocated bool) {
	v := pack(size, allocated)
	h.setWord(bp-wordSize, v)
	h.setWord(bp+size-dsize, v)
}
