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

// Package segheap implements a boundary-tag heap allocator with segregated
// free lists over a growable region.
//
// The heap is a run of blocks, each carrying a 4-byte header and footer
// encoding (size, allocated). Free blocks are threaded onto one of 13
// doubly-linked class lists, keyed by a power-of-two size class, with the
// link words stored in the free block's own payload. Allocation is
// first-fit within the smallest adequate class, with splitting; freeing
// coalesces with physical neighbors in constant time via the boundary tags.
//
// All block handles are byte offsets into the region; 0 is the null handle
// (offset 0 is the free-list table, so no payload ever lives there). The
// allocator is single-threaded.
package segheap

import (
	"errors"
	"fmt"

	"github.com/cloudwego/heapx/region"
)

const (
	wordSize  = 4 // header/footer/link word
	dsize     = 8 // header + footer
	alignment = 8 // payload alignment

	// minBlockSize is the smallest legal block: header, footer and room
	// for the two free-list link words.
	minBlockSize = 16

	// minListSize is the upper bound of class 0 and the split threshold:
	// place splits only when the remainder exceeds it, so a split never
	// produces a class-0 fragment.
	minListSize = 32

	// maxList is the last class index; class k holds sizes below
	// (minListSize+1)<<k (see listIndex), class maxList is unbounded.
	maxList = 12

	// DefaultChunkSize is the minimum region extension.
	DefaultChunkSize = 256
)

// Start-of-region layout: the free-list table, an alignment pad, then the
// prologue block and the initial epilogue header. The pad puts the prologue
// header at an offset of 4 mod 8 so every payload lands 8-aligned.
const (
	tableBytes  = (maxList + 1) * wordSize
	padBytes    = 8
	prologueOff = tableBytes + padBytes + wordSize // prologue payload offset
	bootBytes   = tableBytes + padBytes + dsize + wordSize
)

var (
	errRegionInUse = errors.New("segheap: region is not empty")
	errRegionBase  = errors.New("segheap: region must start at offset 0")
)

// Config adjusts a Heap beyond its defaults.
type Config struct {
	// ChunkSize is the minimum number of bytes the heap grows by; it is
	// rounded up to a multiple of 8. Zero selects DefaultChunkSize.
	ChunkSize int

	// Check runs the consistency checker after every public operation and
	// panics on the first violated invariant. Debug builds only; it walks
	// the whole heap.
	Check bool
}

// Heap is a segregated-fit allocator over a region. Not safe for concurrent
// use.
type Heap struct {
	r   region.Region
	mem []byte // r.Bytes(), refreshed after every Extend

	chunk int
	debug bool
}

// New initializes a heap on a fresh region.
func New(r region.Region) (*Heap, error) {
	return NewWithConfig(r, Config{})
}

// NewWithConfig initializes a heap on a fresh region. The region must be
// empty: the heap owns its layout from the first byte.
func NewWithConfig(r region.Region, cfg Config) (*Heap, error) {
	if r.Low() != 0 {
		return nil, errRegionBase
	}
	if r.High() != 0 {
		return nil, errRegionInUse
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	chunk = alignUp(chunk, alignment)

	h := &Heap{r: r, chunk: chunk, debug: cfg.Check}
	if _, err := r.Extend(bootBytes); err != nil {
		return nil, fmt.Errorf("segheap: init: %w", err)
	}
	h.refresh()

	// the table must read as all-empty even on providers that hand out
	// dirty bytes
	for off := 0; off < tableBytes; off += wordSize {
		h.setWord(off, 0)
	}
	h.setWord(prologueOff-wordSize, pack(dsize, true)) // prologue header
	h.setWord(prologueOff, pack(dsize, true))          // prologue footer
	h.setWord(prologueOff+wordSize, pack(0, true))     // epilogue header

	if _, err := h.extendHeap(chunk); err != nil {
		return nil, fmt.Errorf("segheap: init: %w", err)
	}
	h.postOp()
	return h, nil
}

// extendHeap grows the region by n bytes (a multiple of 8), lays a free
// block over the new bytes, and coalesces it backward. Returns the payload
// offset of the resulting free block.
func (h *Heap) extendHeap(n int) (int, error) {
	old, err := h.r.Extend(n)
	if err != nil {
		return 0, err
	}
	h.refresh()

	// the old epilogue header becomes the new block's header
	bp := old
	h.writeTags(bp, n, false)
	h.setWord(h.hdr(h.nextPhys(bp)), pack(0, true)) // new epilogue
	h.insert(bp)
	return h.coalesce(bp), nil
}

func (h *Heap) refresh() { h.mem = h.r.Bytes() }

// HeapSize returns the total heap bytes, metadata included.
func (h *Heap) HeapSize() int { return h.r.High() - h.r.Low() }

// postOp runs the checker when debug checking is on.
func (h *Heap) postOp() {
	if h.debug {
		if err := h.Check(); err != nil {
			panic(err)
		}
	}
}

func alignUp(n, a int) int { return (n + a - 1) &^ (a - 1) }
