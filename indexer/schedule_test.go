// Copyright 2024 The eth-indexer Authors
// This file is part of the eth-indexer library.
//
// The eth-indexer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The eth-indexer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the eth-indexer library. If not, see <http://www.gnu.org/licenses/>.

package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/semaphore"

	"github.com/jeongkyun-oh/eth-indexer/config"
	"github.com/jeongkyun-oh/eth-indexer/db"
	"github.com/jeongkyun-oh/eth-indexer/node"
)

// testIndexer builds an Indexer whose block tasks run fn instead of the real
// workflow. The gateway slices carry nil placeholders; the stub ignores them.
func testIndexer(maxConcurrency int64, fn blockFunc) *Indexer {
	return &Indexer{
		cfg:          &config.Config{MaxConcurrency: maxConcurrency},
		nodes:        []*node.Client{{}, {}, {}},
		dbs:          []*db.Pool{{}, {}},
		sem:          semaphore.NewWeighted(maxConcurrency),
		indexBlockFn: fn,
		blocksMeter:  metrics.NewMeter(),
	}
}

func TestIndexRangeCoversEveryBlockOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[uint64]int{}

	idx := testIndexer(10, func(_ context.Context, b uint64, _ *node.Client, _ *db.Pool) error {
		mu.Lock()
		seen[b]++
		mu.Unlock()
		return nil
	})

	idx.indexRange(context.Background(), 1000, 1099)

	assert.Len(t, seen, 100)
	for b := uint64(1000); b <= 1099; b++ {
		assert.Equal(t, 1, seen[b], "block %d", b)
	}
}

func TestIndexRangeBoundsConcurrency(t *testing.T) {
	var inflight, peak, total int64

	idx := testIndexer(10, func(_ context.Context, _ uint64, _ *node.Client, _ *db.Pool) error {
		cur := atomic.AddInt64(&inflight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		atomic.AddInt64(&total, 1)
		return nil
	})

	idx.indexRange(context.Background(), 1000, 1099)

	assert.Equal(t, int64(100), total)
	assert.LessOrEqual(t, peak, int64(10))
	assert.Greater(t, peak, int64(1), "tasks should actually overlap")
}

func TestIndexRangeTailShorterThanBatch(t *testing.T) {
	var total int64
	idx := testIndexer(10, func(_ context.Context, _ uint64, _ *node.Client, _ *db.Pool) error {
		atomic.AddInt64(&total, 1)
		return nil
	})

	// 25 blocks with batches of 10: two full batches plus a tail of 5.
	idx.indexRange(context.Background(), 0, 24)
	assert.Equal(t, int64(25), total)
}

func TestIndexRangeSingleBlock(t *testing.T) {
	var blocks []uint64
	var mu sync.Mutex
	idx := testIndexer(10, func(_ context.Context, b uint64, _ *node.Client, _ *db.Pool) error {
		mu.Lock()
		blocks = append(blocks, b)
		mu.Unlock()
		return nil
	})

	idx.indexRange(context.Background(), 7, 7)
	assert.Equal(t, []uint64{7}, blocks)
}

func TestIndexRangeEmpty(t *testing.T) {
	var total int64
	idx := testIndexer(10, func(_ context.Context, _ uint64, _ *node.Client, _ *db.Pool) error {
		atomic.AddInt64(&total, 1)
		return nil
	})

	idx.indexRange(context.Background(), 5, 4)
	assert.Equal(t, int64(0), total)
}

func TestIndexRangeFailuresDoNotStopTheRange(t *testing.T) {
	var total int64
	idx := testIndexer(4, func(_ context.Context, b uint64, _ *node.Client, _ *db.Pool) error {
		atomic.AddInt64(&total, 1)
		if b%2 == 0 {
			return assert.AnError
		}
		return nil
	})

	idx.indexRange(context.Background(), 0, 19)
	assert.Equal(t, int64(20), total)
}

func TestIndexRangeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var total int64
	idx := testIndexer(5, func(_ context.Context, _ uint64, _ *node.Client, _ *db.Pool) error {
		if atomic.AddInt64(&total, 1) == 5 {
			cancel()
		}
		return nil
	})

	idx.indexRange(ctx, 0, 999)
	// The running batch drains but later batches are not scheduled.
	assert.Less(t, atomic.LoadInt64(&total), int64(1000))
}

func TestGatewaySelectionIsDeterministic(t *testing.T) {
	idx := testIndexer(1, nil)

	assert.Same(t, idx.nodes[1], idx.nodeFor(1))
	assert.Same(t, idx.nodes[1], idx.nodeFor(4))
	assert.Same(t, idx.nodes[0], idx.nodeFor(3))
	assert.Same(t, idx.dbs[0], idx.dbFor(4))
	assert.Same(t, idx.dbs[1], idx.dbFor(5))
}
