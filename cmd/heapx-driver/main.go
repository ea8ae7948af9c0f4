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

// heapx-driver replays allocation traces against the segheap allocator and
// reports per-trace utilization and throughput. Traces run concurrently,
// one private heap each; the allocator itself stays single-threaded.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/cloudwego/heapx/region"
	"github.com/cloudwego/heapx/segheap"
	"github.com/cloudwego/heapx/trace"
)

var (
	flagTrace = flag.String("trace", "traces/*.rep", "glob of trace files to replay")
	flagCheck = flag.Bool("check", false, "run the heap consistency checker after every operation")
	flagMmap  = flag.Bool("mmap", false, "back heaps with mmap regions instead of slices (linux)")
	flagLimit = flag.Int("limit", region.DefaultSliceLimit, "region size limit in bytes")
	flagV     = flag.Bool("v", false, "print per-trace progress")
)

type result struct {
	name    string
	sum     uint64
	stats   trace.Stats
	elapsed time.Duration
	err     error
}

func main() {
	flag.Parse()

	paths, err := filepath.Glob(*flagTrace)
	if err != nil {
		log.Fatalf("bad -trace pattern: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no traces match %q", *flagTrace)
	}
	sort.Strings(paths)

	results := make([]result, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()
			results[i] = replayOne(path)
			if *flagV {
				log.Printf("done %s", path)
			}
		})
	}
	wg.Wait()

	report(results)
}

func replayOne(path string) result {
	res := result{name: filepath.Base(path)}
	t, err := trace.ParseFile(path)
	if err != nil {
		res.err = err
		return res
	}
	res.sum = t.Sum64()

	start := time.Now()
	res.stats, res.err = trace.Replay(t, newHeap)
	res.elapsed = time.Since(start)
	return res
}

func newHeap() (*segheap.Heap, error) {
	var r region.Region
	if *flagMmap {
		m, err := region.NewMmap(*flagLimit)
		if err != nil {
			return nil, err
		}
		r = m
	} else {
		r = region.NewSlice(*flagLimit)
	}
	return segheap.NewWithConfig(r, segheap.Config{Check: *flagCheck})
}

func report(results []result) {
	fmt.Printf("%-28s %16s %8s %6s %9s\n", "trace", "id", "ops", "util", "Kops/s")
	var ops int
	var utilSum float64
	failed := false
	for _, r := range results {
		if r.err != nil {
			failed = true
			fmt.Printf("%-28s FAILED: %v\n", r.name, r.err)
			continue
		}
		kops := float64(r.stats.Ops) / r.elapsed.Seconds() / 1e3
		fmt.Printf("%-28s %16x %8d %5.1f%% %9.0f\n",
			r.name, r.sum, r.stats.Ops, r.stats.Utilization*100, kops)
		ops += r.stats.Ops
		utilSum += r.stats.Utilization
	}
	if n := len(results); !failed && n > 0 {
		fmt.Printf("%d traces, %d ops, mean utilization %.1f%%\n",
			n, ops, utilSum/float64(n)*100)
	}
	if failed {
		os.Exit(1)
	}
}
