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
	"time"
)

const progressInterval = 5 * time.Second

// progress tracks throughput over the whole run and over a sliding window.
// The window rate drives the ETA so that a slow warmup does not skew it.
type progress struct {
	total     uint64
	processed uint64

	startedAt   time.Time
	windowStart time.Time
	windowDone  uint64
	lastReport  time.Time
}

func newProgress(total uint64) *progress {
	now := time.Now()
	return &progress{total: total, startedAt: now, windowStart: now, lastReport: now}
}

// advance records n completed blocks and emits a report when the reporting
// interval has elapsed.
func (pr *progress) advance(n uint64) {
	pr.processed += n
	pr.windowDone += n

	now := time.Now()
	if now.Sub(pr.lastReport) < progressInterval {
		return
	}

	elapsed := now.Sub(pr.startedAt).Seconds()
	windowElapsed := now.Sub(pr.windowStart).Seconds()

	percent := float64(0)
	if pr.total > 0 {
		percent = float64(pr.processed) / float64(pr.total) * 100
	}
	overallRate := float64(pr.processed) / elapsed
	windowRate := overallRate
	if windowElapsed > 0 {
		windowRate = float64(pr.windowDone) / windowElapsed
	}

	remaining := pr.total - pr.processed
	eta := time.Duration(0)
	if windowRate > 0 {
		eta = time.Duration(float64(remaining)/windowRate) * time.Second
	}

	logger.Infow("indexing progress",
		"processed", pr.processed,
		"total", pr.total,
		"percent", percent,
		"blocksPerSec", overallRate,
		"windowBlocksPerSec", windowRate,
		"eta", eta.Round(time.Second),
	)

	pr.lastReport = now
	pr.windowStart = now
	pr.windowDone = 0
}

// finish emits a final summary line regardless of the reporting interval, so
// short runs still report.
func (pr *progress) finish() {
	elapsed := time.Since(pr.startedAt).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(pr.processed) / elapsed
	}
	percent := float64(0)
	if pr.total > 0 {
		percent = float64(pr.processed) / float64(pr.total) * 100
	}
	logger.Infow("indexing progress",
		"processed", pr.processed,
		"total", pr.total,
		"percent", percent,
		"blocksPerSec", rate,
	)
}

// indexRange indexes blocks start through end inclusive. Tasks run in batches
// of at most MaxConcurrency; the semaphore additionally bounds in-flight
// tasks process-wide so live tailing cannot stack on top of a batch. Each
// batch is joined before the next is scheduled, then a tail pass covers the
// remainder shorter than a full batch.
func (idx *Indexer) indexRange(ctx context.Context, start, end uint64) {
	if end < start {
		logger.Errorw("empty block range", "from", start, "to", end)
		return
	}

	batch := uint64(idx.cfg.MaxConcurrency)
	pr := newProgress(end - start + 1)

	runBatch := func(from, to uint64) { // [from, to)
		var wg sync.WaitGroup
		for b := from; b < to; b++ {
			if err := idx.sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(blockNumber uint64) {
				defer wg.Done()
				defer idx.sem.Release(1)
				if err := idx.indexBlockFn(ctx, blockNumber, idx.nodeFor(blockNumber), idx.dbFor(blockNumber)); err != nil {
					logger.Errorw("error indexing block", "block", blockNumber, "err", err)
				}
				idx.blocksMeter.Mark(1)
			}(b)
		}
		wg.Wait()
		pr.advance(to - from)
	}

	batchStart := start
	for batchStart+batch <= end {
		if ctx.Err() != nil {
			return
		}
		runBatch(batchStart, batchStart+batch)
		batchStart += batch
	}

	// Tail pass for the remainder, end inclusive.
	if ctx.Err() == nil && batchStart <= end {
		runBatch(batchStart, end+1)
	}
	pr.finish()
}
