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

package region

import (
	"github.com/bytedance/gopkg/lang/dirtmake"
)

const (
	// DefaultSliceLimit caps a Slice region at 20MB, enough for any
	// allocation trace we replay.
	DefaultSliceLimit = 20 * 1024 * 1024

	// initial backing capacity; doubles on growth
	sliceMinCap = 64 * 1024
)

// Slice is a Region backed by an ordinary Go byte slice.
// The backing array may move on Extend; offsets stay valid, slices do not.
type Slice struct {
	buf   []byte
	limit int
}

// NewSlice returns a Slice region that can grow up to limit bytes.
// A non-positive limit selects DefaultSliceLimit.
func NewSlice(limit int) *Slice {
	if limit <= 0 {
		limit = DefaultSliceLimit
	}
	return &Slice{limit: limit}
}

// Extend appends n zeroed bytes and returns the offset of the first one.
func (s *Slice) Extend(n int) (int, error) {
	if err := checkExtend(n); err != nil {
		return 0, err
	}
	old := len(s.buf)
	if old+n > s.limit {
		return 0, ErrExhausted
	}
	if old+n <= cap(s.buf) {
		s.buf = s.buf[:old+n]
	} else {
		ncap := cap(s.buf) * 2
		if ncap < sliceMinCap {
			ncap = sliceMinCap
		}
		for ncap < old+n {
			ncap *= 2
		}
		if ncap > s.limit {
			ncap = s.limit
		}
		nbuf := dirtmake.Bytes(old+n, ncap)
		copy(nbuf, s.buf)
		s.buf = nbuf
	}
	// dirtmake skips the runtime's memclr; the Region contract zeroes
	// only the appended bytes
	zero(s.buf[old:])
	return old, nil
}

func (s *Slice) Low() int      { return 0 }
func (s *Slice) High() int     { return len(s.buf) }
func (s *Slice) Bytes() []byte { return s.buf }

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
