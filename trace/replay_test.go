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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/heapx/region"
	"github.com/cloudwego/heapx/segheap"
)

func newCheckedHeap() (*segheap.Heap, error) {
	return segheap.NewWithConfig(region.NewSlice(0), segheap.Config{Check: true})
}

func mustParse(t *testing.T, data string) *Trace {
	t.Helper()
	tr, err := Parse([]byte(data))
	require.NoError(t, err)
	return tr
}

func TestReplayBasic(t *testing.T) {
	tr, err := ParseFile(filepath.Join("testdata", "basic.rep"))
	require.NoError(t, err)

	st, err := Replay(tr, newCheckedHeap)
	require.NoError(t, err)
	assert.Equal(t, 8, st.Ops)
	assert.Greater(t, st.PeakPayload, 0)
	assert.Greater(t, st.HeapSize, 0)
	assert.Greater(t, st.Utilization, 0.0)
	assert.LessOrEqual(t, st.Utilization, 1.0)
}

func TestReplayPeakPayload(t *testing.T) {
	tr := mustParse(t, "1000\n2\n4\n1\na 0 100\na 1 200\nf 0\nf 1\n")
	st, err := Replay(tr, newCheckedHeap)
	require.NoError(t, err)
	assert.Equal(t, 300, st.PeakPayload)
}

func TestReplayReallocChain(t *testing.T) {
	tr := mustParse(t, "1000\n1\n5\n1\na 0 10\nr 0 1000\nr 0 5\nr 0 2000\nf 0\n")
	_, err := Replay(tr, newCheckedHeap)
	assert.NoError(t, err)
}

func TestReplayProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"free_dead_id", "1000\n1\n1\n1\nf 0\n"},
		{"realloc_dead_id", "1000\n1\n1\n1\nr 0 8\n"},
		{"double_alloc", "1000\n1\n2\n1\na 0 8\na 0 8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := mustParse(t, tt.data)
			_, err := Replay(tr, newCheckedHeap)
			assert.Error(t, err)
		})
	}
}

func TestReplayExhaustionFails(t *testing.T) {
	tr := mustParse(t, "64\n1\n1\n1\na 0 1000000\n")
	_, err := Replay(tr, func() (*segheap.Heap, error) {
		return segheap.New(region.NewSlice(2048))
	})
	assert.Error(t, err)
}

func TestReplayManyBlocks(t *testing.T) {
	// interleaved lifetimes across all ids, then a teardown of the even ids
	// followed by the odd ids
	var data []byte
	data = append(data, []byte("100000\n64\n192\n1\n")...)
	ops := 0
	for i := 0; i < 64; i++ {
		data = appendOp(data, 'a', i, 17+i*13)
		ops++
	}
	for i := 0; i < 64; i += 2 {
		data = appendOp(data, 'f', i, 0)
		data = appendOp(data, 'a', i, 31+i*7)
		ops += 2
	}
	for i := 0; i < 64; i += 2 {
		data = appendOp(data, 'f', i, 0)
		ops++
	}
	for i := 1; i < 64; i += 2 {
		data = appendOp(data, 'f', i, 0)
		ops++
	}
	require.Equal(t, 192, ops)

	tr, err := Parse(data)
	require.NoError(t, err)
	st, err := Replay(tr, newCheckedHeap)
	require.NoError(t, err)
	assert.Equal(t, 192, st.Ops)
}

func appendOp(data []byte, kind byte, id, size int) []byte {
	data = append(data, kind, ' ')
	data = appendInt(data, id)
	if kind != 'f' {
		data = append(data, ' ')
		data = appendInt(data, size)
	}
	return append(data, '\n')
}

func appendInt(data []byte, n int) []byte {
	if n >= 10 {
		data = appendInt(data, n/10)
	}
	return append(data, byte('0'+n%10))
}
