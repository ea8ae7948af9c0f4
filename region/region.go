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

// Package region provides the contiguous, growable byte regions that back
// a heap. A region only ever grows; bytes handed out by Extend stay at the
// same offset for the region's lifetime, so callers may hold offsets (never
// slices) across calls.
package region

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned by Extend when the region cannot grow further.
	ErrExhausted = errors.New("region: exhausted")

	errBadExtend = errors.New("region: extend size must be a positive multiple of 8")
)

// Region is a contiguous byte range addressed by offsets in [Low, High).
//
// Extend appends n bytes (n a positive multiple of 8) and returns the offset
// of the first appended byte. The new bytes are zeroed. Bytes returns the
// current backing store; it is invalidated by the next Extend.
type Region interface {
	Extend(n int) (int, error)
	Low() int
	High() int
	Bytes() []byte
}

func checkExtend(n int) error {
	if n <= 0 || n%8 != 0 {
		return fmt.Errorf("%w, got %d", errBadExtend, n)
	}
	return nil
}
