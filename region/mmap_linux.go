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

//go:build linux
// +build linux

package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mmap is a Region backed by a private anonymous mapping. The whole limit is
// mapped up front, so the backing array never moves and Extend never copies.
// Pages are zeroed by the kernel.
type Mmap struct {
	buf  []byte
	used int
}

// NewMmap maps limit bytes and returns a region that hands them out
// monotonically. A non-positive limit selects DefaultSliceLimit.
func NewMmap(limit int) (*Mmap, error) {
	if limit <= 0 {
		limit = DefaultSliceLimit
	}
	buf, err := unix.Mmap(-1, 0, limit,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d bytes: %w", limit, err)
	}
	return &Mmap{buf: buf}, nil
}

// Extend hands out the next n bytes of the mapping.
func (m *Mmap) Extend(n int) (int, error) {
	if err := checkExtend(n); err != nil {
		return 0, err
	}
	if m.used+n > len(m.buf) {
		return 0, ErrExhausted
	}
	old := m.used
	m.used += n
	return old, nil
}

func (m *Mmap) Low() int      { return 0 }
func (m *Mmap) High() int     { return m.used }
func (m *Mmap) Bytes() []byte { return m.buf[:m.used] }

// Close unmaps the region. The region must not be used afterwards.
func (m *Mmap) Close() error {
	buf := m.buf
	m.buf, m.used = nil, 0
	return unix.Munmap(buf)
}
