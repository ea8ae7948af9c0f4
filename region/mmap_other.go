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

//go:build !linux
// +build !linux

package region

import "errors"

// Mmap is only available on linux.
type Mmap struct {
	buf  []byte
	used int
}

// NewMmap is unsupported on this platform; use NewSlice.
func NewMmap(limit int) (*Mmap, error) {
	return nil, errors.New("region: mmap region requires linux")
}

func (m *Mmap) Extend(n int) (int, error) { return 0, ErrExhausted }
func (m *Mmap) Low() int                  { return 0 }
func (m *Mmap) High() int                 { return 0 }
func (m *Mmap) Bytes() []byte             { return nil }
func (m *Mmap) Close() error              { return nil }
