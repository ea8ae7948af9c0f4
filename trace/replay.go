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

package trace

import (
	"bytes"
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/lang/span"

	"github.com/cloudwego/heapx/segheap"
)

// Stats summarizes one replay.
type Stats struct {
	Ops         int
	PeakPayload int     // largest aggregate live payload
	HeapSize    int     // final heap bytes, metadata included
	Utilization float64 // PeakPayload / HeapSize
}

// snapshots of live payload contents are small and churn fast; copy them
// out of a shared span rather than one make per block
var snapCache = span.NewSpanCache(1024 * 1024)

// Replay runs every op of t against a fresh heap from newHeap, filling each
// allocation with a per-id pattern and verifying it is intact at every
// free, realloc and at the end. Any allocation failure, content mismatch or
// protocol error (freeing an id that is not live) fails the replay.
func Replay(t *Trace, newHeap func() (*segheap.Heap, error)) (Stats, error) {
	h, err := newHeap()
	if err != nil {
		return Stats{}, err
	}

	blocks := make([]int, t.IDs)   // payload offsets, 0 = not live
	snaps := make([][]byte, t.IDs) // expected payload contents
	var live, peak int

	for i, op := range t.Ops {
		switch op.Kind {
		case OpAlloc:
			if blocks[op.ID] != 0 {
				return Stats{}, fmt.Errorf("trace: op %d allocates live id %d", i, op.ID)
			}
			p := h.Alloc(op.Size)
			if p == 0 {
				return Stats{}, fmt.Errorf("trace: op %d: alloc(%d) failed", i, op.Size)
			}
			if p%8 != 0 {
				return Stats{}, fmt.Errorf("trace: op %d: misaligned block %d", i, p)
			}
			fill(h, p, op.ID, op.Size)
			blocks[op.ID] = p
			snaps[op.ID] = snapCache.Copy(h.Payload(p)[:op.Size])
			live += op.Size
			if live > peak {
				peak = live
			}

		case OpRealloc:
			p := blocks[op.ID]
			if p == 0 {
				return Stats{}, fmt.Errorf("trace: op %d reallocates dead id %d", i, op.ID)
			}
			np := h.Realloc(p, op.Size)
			if op.Size == 0 {
				live -= len(snaps[op.ID])
				blocks[op.ID], snaps[op.ID] = 0, nil
				continue
			}
			if np == 0 {
				return Stats{}, fmt.Errorf("trace: op %d: realloc(%d, %d) failed", i, p, op.Size)
			}
			// the common prefix must have survived the move
			old := snaps[op.ID]
			keep := len(old)
			if op.Size < keep {
				keep = op.Size
			}
			if !bytes.Equal(h.Payload(np)[:keep], old[:keep]) {
				return Stats{}, fmt.Errorf("trace: op %d: realloc lost contents of id %d", i, op.ID)
			}
			fill(h, np, op.ID, op.Size)
			live += op.Size - len(old)
			if live > peak {
				peak = live
			}
			blocks[op.ID] = np
			snaps[op.ID] = snapCache.Copy(h.Payload(np)[:op.Size])

		case OpFree:
			p := blocks[op.ID]
			if p == 0 {
				return Stats{}, fmt.Errorf("trace: op %d frees dead id %d", i, op.ID)
			}
			if err := verify(h, p, snaps[op.ID]); err != nil {
				return Stats{}, fmt.Errorf("trace: op %d, id %d: %w", i, op.ID, err)
			}
			live -= len(snaps[op.ID])
			h.Free(p)
			blocks[op.ID], snaps[op.ID] = 0, nil
		}
	}

	// whatever is still live must be intact
	for id, p := range blocks {
		if p == 0 {
			continue
		}
		if err := verify(h, p, snaps[id]); err != nil {
			return Stats{}, fmt.Errorf("trace: final state, id %d: %w", id, err)
		}
	}

	st := Stats{
		Ops:         len(t.Ops),
		PeakPayload: peak,
		HeapSize:    h.HeapSize(),
	}
	if st.HeapSize > 0 {
		st.Utilization = float64(st.PeakPayload) / float64(st.HeapSize)
	}
	return st, nil
}

// fill stamps the payload at p with the deterministic pattern for id.
func fill(h *segheap.Heap, p, id, size int) {
	buf := mcache.Malloc(size)
	for i := range buf {
		buf[i] = pattern(id, i)
	}
	copy(h.Payload(p), buf)
	mcache.Free(buf)
}

func verify(h *segheap.Heap, p int, want []byte) error {
	got := h.Payload(p)
	if len(got) < len(want) {
		return fmt.Errorf("payload shrank: %d < %d", len(got), len(want))
	}
	if !bytes.Equal(got[:len(want)], want) {
		return fmt.Errorf("payload corrupted")
	}
	return nil
}

func pattern(id, i int) byte {
	return byte(id*151 + i*13 + 7)
}
