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

// Package indexer drives the indexing pipeline: a bounded-concurrency
// scheduler fanning block tasks out across the RPC sessions and store pools,
// and the per-block workflow those tasks execute.
package indexer

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/semaphore"

	"github.com/jeongkyun-oh/eth-indexer/blockscout"
	"github.com/jeongkyun-oh/eth-indexer/config"
	"github.com/jeongkyun-oh/eth-indexer/db"
	"github.com/jeongkyun-oh/eth-indexer/event/kafka"
	"github.com/jeongkyun-oh/eth-indexer/logutil"
	"github.com/jeongkyun-oh/eth-indexer/node"
)

var logger = logutil.NewModuleLogger("indexer")

const abiCacheSize = 4096

// blockFunc is one block task. The scheduler assigns each task an RPC
// session and a store pool; tests substitute the function to observe
// scheduling without I/O.
type blockFunc func(ctx context.Context, blockNumber uint64, n *node.Client, p *db.Pool) error

// Indexer owns the gateways and runs the pipeline. Block tasks receive
// capability references to the long-lived gateways; nothing is cloned per
// task.
type Indexer struct {
	cfg *config.Config

	nodes []*node.Client
	dbs   []*db.Pool

	explorer  *blockscout.Client
	publisher *kafka.Publisher
	abiCache  *lru.Cache

	// sem is the process-wide bound on in-flight block tasks.
	sem          *semaphore.Weighted
	indexBlockFn blockFunc

	blocksMeter metrics.Meter
}

// New dials the configured number of RPC sessions and store pools and wires
// the optional explorer and Kafka collaborators. Failure to open any session
// or pool is fatal.
func New(ctx context.Context, cfg *config.Config) (*Indexer, error) {
	idx := &Indexer{
		cfg:         cfg,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrency),
		blocksMeter: metrics.NewRegisteredMeter("indexer/blocks", nil),
	}
	idx.indexBlockFn = idx.indexBlock

	for i := 0; i < cfg.NumWSConnections; i++ {
		c, err := node.Dial(ctx, cfg.WSRPCEndpoint)
		if err != nil {
			idx.Close()
			return nil, err
		}
		idx.nodes = append(idx.nodes, c)
	}
	for i := 0; i < cfg.NumDBConnections; i++ {
		p, err := db.Connect(ctx, cfg.Postgres)
		if err != nil {
			idx.Close()
			return nil, err
		}
		idx.dbs = append(idx.dbs, p)
	}

	if cfg.BlockscoutEndpoint != "" {
		idx.explorer = blockscout.NewClient(cfg.BlockscoutEndpoint, cfg.BlockscoutAPIKey)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(cfg.KafkaBrokers, kafka.DefaultTopic)
		if err != nil {
			idx.Close()
			return nil, err
		}
		idx.publisher = pub
	}

	cache, err := lru.New(abiCacheSize)
	if err != nil {
		idx.Close()
		return nil, errors.Wrap(err, "creating ABI cache")
	}
	idx.abiCache = cache

	return idx, nil
}

// Close releases all sessions, pools and the publisher.
func (idx *Indexer) Close() {
	for _, c := range idx.nodes {
		c.Close()
	}
	for _, p := range idx.dbs {
		p.Close()
	}
	if idx.publisher != nil {
		if err := idx.publisher.Close(); err != nil {
			logger.Errorw("closing Kafka publisher", "err", err)
		}
	}
}

// nodeFor picks the RPC session for a block by number. Deterministic
// round-robin doubles as a fairness scheme across concurrent tasks.
func (idx *Indexer) nodeFor(blockNumber uint64) *node.Client {
	return idx.nodes[blockNumber%uint64(len(idx.nodes))]
}

func (idx *Indexer) dbFor(blockNumber uint64) *db.Pool {
	return idx.dbs[blockNumber%uint64(len(idx.dbs))]
}

// bootstrap initializes the schema. A bootstrap failure is logged, not
// fatal; the scheduler proceeds and individual tasks surface any fallout.
func (idx *Indexer) bootstrap(ctx context.Context) {
	err := idx.dbs[0].InitSchema(ctx, idx.cfg.Version, idx.cfg.Postgres.CreateTableOrder)
	if err != nil {
		logger.Errorw("error initializing the database", "err", err)
	}
}

// Run indexes from START_BLOCK to END_BLOCK, or to the chain tip when
// END_BLOCK is -1.
func (idx *Indexer) Run(ctx context.Context) error {
	idx.bootstrap(ctx)

	latest, err := idx.nodes[0].LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	logger.Infow("latest block number", "block", latest)

	start := uint64(0)
	if idx.cfg.StartBlock > 0 {
		start = uint64(idx.cfg.StartBlock)
	}
	end := latest
	if idx.cfg.EndBlock >= 0 {
		end = uint64(idx.cfg.EndBlock)
	}

	logger.Warnw("starting indexing", "from", start, "to", end)
	idx.indexRange(ctx, start, end)
	logger.Infow("indexing complete")
	return nil
}

// RunLastBlocks indexes the trailing n blocks of the chain.
func (idx *Indexer) RunLastBlocks(ctx context.Context, n uint64) error {
	idx.bootstrap(ctx)

	latest, err := idx.nodes[0].LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	start := uint64(0)
	if latest > n {
		start = latest - n
	}

	logger.Warnw("starting indexing", "from", start, "to", latest)
	idx.indexRange(ctx, start, latest)
	logger.Infow("indexing complete")
	return nil
}

// RunLive subscribes to new blocks and indexes each as it arrives, using the
// first RPC session and store pool. It returns once the context is cancelled
// and every in-flight block task has been joined.
func (idx *Indexer) RunLive(ctx context.Context) error {
	idx.bootstrap(ctx)

	headers := make(chan *node.Header, 64)
	sub, err := idx.nodes[0].SubscribeNewHeads(ctx, headers)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.Infow("live indexing stopping, waiting for in-flight tasks")
			return nil
		case err := <-sub.Err():
			if err != nil {
				return errors.Wrap(err, "block subscription failed")
			}
			return nil
		case head := <-headers:
			if head == nil || head.Number == nil {
				logger.Errorw("block subscription delivered header without number")
				continue
			}
			number := head.Number.ToInt().Uint64()
			logger.Infow("new block", "block", number)

			if err := idx.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer idx.sem.Release(1)
				if err := idx.indexBlockFn(ctx, number, idx.nodes[0], idx.dbs[0]); err != nil {
					logger.Errorw("error indexing block", "block", number, "err", err)
				}
				idx.blocksMeter.Mark(1)
			}()
		}
	}
}
