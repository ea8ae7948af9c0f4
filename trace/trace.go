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

// Package trace parses and replays allocation traces.
//
// A trace file is text: four header lines (suggested heap size, number of
// block ids, number of ops, weight) followed by one op per line:
//
//	a <id> <size>   allocate
//	r <id> <size>   reallocate
//	f <id>          free
//
// Files ending in ".br" are brotli-compressed.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/xxhash3"
	"github.com/cloudwego/gopkg/bufiox"
)

// Op kinds.
const (
	OpAlloc   = 'a'
	OpRealloc = 'r'
	OpFree    = 'f'
)

// Op is one allocation event.
type Op struct {
	Kind byte
	ID   int
	Size int // unused for OpFree
}

// Trace is a parsed allocation trace.
type Trace struct {
	Name          string
	SuggestedHeap int // heap bytes the trace author expected to need
	IDs           int // block ids are in [0, IDs)
	Weight        int
	Ops           []Op

	sum uint64
}

// Sum64 returns the xxhash3 of the raw trace bytes, for identity in reports.
func (t *Trace) Sum64() uint64 { return t.sum }

var errTruncated = errors.New("trace: truncated file")

const readChunk = 32 * 1024

// ParseFile parses the trace file at path, transparently decompressing
// ".br" files.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".br") {
		rd = brotli.NewReader(f)
	}
	t, err := ParseReader(rd)
	if err != nil {
		return nil, fmt.Errorf("trace: parse %s: %w", path, err)
	}
	t.Name = path
	return t, nil
}

// ParseReader reads rd to EOF and parses it as a trace.
func ParseReader(rd io.Reader) (*Trace, error) {
	br := bufiox.NewDefaultReader(rd)
	defer br.Release(nil)

	chunk := mcache.Malloc(readChunk)
	defer mcache.Free(chunk)

	var data []byte
	for {
		n, err := br.ReadBinary(chunk)
		data = append(data, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return Parse(data)
}

// Parse parses raw trace bytes.
func Parse(data []byte) (*Trace, error) {
	t := &Trace{sum: xxhash3.Hash(data)}
	s := scanner{data: data}

	var err error
	if t.SuggestedHeap, err = s.intLine(); err != nil {
		return nil, fmt.Errorf("header heap size: %w", err)
	}
	if t.IDs, err = s.intLine(); err != nil {
		return nil, fmt.Errorf("header id count: %w", err)
	}
	nops, err := s.intLine()
	if err != nil {
		return nil, fmt.Errorf("header op count: %w", err)
	}
	if t.Weight, err = s.intLine(); err != nil {
		return nil, fmt.Errorf("header weight: %w", err)
	}
	if t.IDs < 0 || nops < 0 {
		return nil, fmt.Errorf("trace: negative header counts (%d ids, %d ops)", t.IDs, nops)
	}

	t.Ops = make([]Op, 0, nops)
	for {
		line, ok := s.line()
		if !ok {
			break
		}
		op, err := parseOp(line)
		if err != nil {
			return nil, err
		}
		if op.ID < 0 || op.ID >= t.IDs {
			return nil, fmt.Errorf("trace: op %d: id %d out of range [0,%d)", len(t.Ops), op.ID, t.IDs)
		}
		t.Ops = append(t.Ops, op)
	}
	if len(t.Ops) != nops {
		return nil, fmt.Errorf("trace: header promises %d ops, file has %d", nops, len(t.Ops))
	}
	return t, nil
}

func parseOp(line []byte) (Op, error) {
	f := fields(line)
	if len(f) == 0 {
		return Op{}, fmt.Errorf("trace: empty op line")
	}
	if len(f[0]) != 1 {
		return Op{}, fmt.Errorf("trace: bad op %q", f[0])
	}
	op := Op{Kind: f[0][0]}
	switch op.Kind {
	case OpAlloc, OpRealloc:
		if len(f) != 3 {
			return Op{}, fmt.Errorf("trace: op %q wants 2 arguments, got %d", op.Kind, len(f)-1)
		}
		id, err := atoi(f[1])
		if err != nil {
			return Op{}, err
		}
		size, err := atoi(f[2])
		if err != nil {
			return Op{}, err
		}
		if size < 0 {
			return Op{}, fmt.Errorf("trace: negative size %d", size)
		}
		op.ID, op.Size = id, size
	case OpFree:
		if len(f) != 2 {
			return Op{}, fmt.Errorf("trace: op %q wants 1 argument, got %d", op.Kind, len(f)-1)
		}
		id, err := atoi(f[1])
		if err != nil {
			return Op{}, err
		}
		op.ID = id
	default:
		return Op{}, fmt.Errorf("trace: unknown op %q", op.Kind)
	}
	return op, nil
}

// scanner yields lines of a byte buffer without allocating.
type scanner struct {
	data []byte
	pos  int
}

// line returns the next non-blank line, trimmed of the trailing newline.
func (s *scanner) line() ([]byte, bool) {
	for s.pos < len(s.data) {
		start := s.pos
		end := start
		for end < len(s.data) && s.data[end] != '\n' {
			end++
		}
		s.pos = end + 1
		line := trimSpace(s.data[start:end])
		if len(line) > 0 {
			return line, true
		}
	}
	return nil, false
}

func (s *scanner) intLine() (int, error) {
	line, ok := s.line()
	if !ok {
		return 0, errTruncated
	}
	f := fields(line)
	if len(f) != 1 {
		return 0, fmt.Errorf("trace: want one integer, got %q", line)
	}
	return atoi(f[0])
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && isSpace(b[0]) {
		b = b[1:]
	}
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func fields(b []byte) [][]byte {
	var f [][]byte
	i := 0
	for i < len(b) {
		for i < len(b) && isSpace(b[i]) {
			i++
		}
		start := i
		for i < len(b) && !isSpace(b[i]) {
			i++
		}
		if i > start {
			f = append(f, b[start:i])
		}
	}
	return f
}

func atoi(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("trace: empty integer")
	}
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
		if len(b) == 0 {
			return 0, fmt.Errorf("trace: bad integer %q", "-")
		}
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("trace: bad integer %q", b)
		}
		n = n*10 + int(c-'0')
		if n < 0 {
			return 0, fmt.Errorf("trace: integer %q overflows", b)
		}
	}
	if neg {
		n = -n
	}
	return n, nil
}
