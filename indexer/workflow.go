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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/contract"
	"github.com/jeongkyun-oh/eth-indexer/db"
	"github.com/jeongkyun-oh/eth-indexer/event/kafka"
	"github.com/jeongkyun-oh/eth-indexer/node"
)

var zeroAddress common.Address

// indexBlock is the per-block workflow: persist the block, then index each
// of its transactions. A transaction failure is logged and does not abort
// the remaining transactions of the block.
func (idx *Indexer) indexBlock(ctx context.Context, blockNumber uint64, n *node.Client, p *db.Pool) error {
	blk, err := n.BlockByNumber(ctx, blockNumber)
	if err != nil || blk == nil {
		logger.Errorw("could not get block", "block", blockNumber, "err", err)
		return nil
	}

	if err := p.InsertBlock(ctx, blk); err != nil {
		return err
	}

	for _, txHash := range blk.Transactions {
		if err := idx.indexTransaction(ctx, txHash, n, p); err != nil {
			logger.Errorw("error indexing transaction",
				"block", blockNumber, "tx", txHash.Hex(), "err", err)
		}
	}

	if idx.publisher != nil {
		ev := &kafka.BlockEvent{
			Number:           blockNumber,
			Hash:             blk.Hash.Hex(),
			TransactionCount: len(blk.Transactions),
		}
		if err := idx.publisher.PublishBlock(ev); err != nil {
			logger.Errorw("error publishing block event", "block", blockNumber, "err", err)
		}
	}
	return nil
}

// indexTransaction persists a transaction, samples the state of its endpoint
// addresses, then follows the receipt into contract creation and log
// indexing. Log failures are logged per log and do not abort the
// transaction.
func (idx *Indexer) indexTransaction(ctx context.Context, hash common.Hash, n *node.Client, p *db.Pool) error {
	tx, err := n.TransactionByHash(ctx, hash)
	if err != nil {
		return err
	}
	if tx == nil {
		logger.Errorw("could not get transaction", "tx", hash.Hex())
		return nil
	}
	blockNumber := tx.BlockNumberU64()

	if err := p.InsertTransaction(ctx, tx); err != nil {
		return err
	}

	if err := idx.indexAddress(ctx, tx.From, blockNumber, n, p); err != nil {
		return err
	}
	if tx.To != nil && *tx.To != zeroAddress {
		if err := idx.indexAddress(ctx, *tx.To, blockNumber, n, p); err != nil {
			return err
		}
	}

	rcpt, err := n.TransactionReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if rcpt == nil {
		logger.Errorw("could not get receipt", "tx", hash.Hex())
		return nil
	}

	if err := p.InsertTransactionReceipt(ctx, rcpt); err != nil {
		return err
	}

	if rcpt.ContractAddress != nil && *rcpt.ContractAddress != zeroAddress {
		if err := idx.indexAddress(ctx, *rcpt.ContractAddress, blockNumber, n, p); err != nil {
			return err
		}
		if err := idx.indexContract(ctx, rcpt, n, p); err != nil {
			logger.Errorw("error indexing contract",
				"contract", rcpt.ContractAddress.Hex(), "tx", hash.Hex(), "err", err)
		}
	}

	for _, l := range rcpt.Logs {
		if err := idx.indexLog(ctx, l, p); err != nil {
			logger.Errorw("error indexing log",
				"tx", hash.Hex(), "logIndex", uint64(l.Index), "err", err)
		}
	}
	return nil
}

// indexAddress samples balance, nonce and presumed-contract facets of an
// address at a block. Code and storage lookups degrade to empty values in
// the gateway; balance and nonce failures are fatal to the sample.
func (idx *Indexer) indexAddress(ctx context.Context, addr common.Address, blockNumber uint64, n *node.Client, p *db.Pool) error {
	balance, err := n.BalanceAt(ctx, addr, blockNumber)
	if err != nil {
		return err
	}
	nonce, err := n.TransactionCountAt(ctx, addr, blockNumber)
	if err != nil {
		return err
	}

	return p.InsertAddress(ctx, &db.AddressState{
		Address:          addr,
		Balance:          balance,
		Nonce:            nonce,
		TransactionCount: nonce,
		Storage:          n.StorageAt(ctx, addr, blockNumber),
		Code:             n.CodeAt(ctx, addr, blockNumber),
		BlockNumber:      blockNumber,
	})
}

// indexContract records a contract created by the receipt's transaction,
// enriched with explorer metadata when available. Explorer unavailability is
// never fatal; the row is written with whatever is known. A contract
// classified ERC-20 additionally gets its token metadata read and its
// constructor-era logs backfilled.
func (idx *Indexer) indexContract(ctx context.Context, rcpt *node.Receipt, n *node.Client, p *db.Pool) error {
	addr := *rcpt.ContractAddress
	creationBlock := rcpt.BlockNumberU64()

	var info *contract.Info
	if idx.explorer != nil {
		var err error
		info, err = idx.explorer.GetVerifiedContract(ctx, strings.ToLower(addr.Hex()))
		if err != nil {
			logger.Errorw("explorer lookup failed", "contract", addr.Hex(), "err", err)
			info = nil
		}
	}

	c := &db.Contract{
		Address:        addr,
		Bytecode:       n.LatestCodeAt(ctx, addr),
		BlockNumber:    creationBlock,
		TxHash:         rcpt.TransactionHash,
		CreatorAddress: rcpt.From,
		Info:           info,
	}
	if err := p.InsertContract(ctx, c); err != nil {
		return err
	}

	if info != nil && info.Type == contract.ERC20 {
		if err := idx.indexToken(ctx, addr, creationBlock, n, p); err != nil {
			logger.Errorw("error indexing token", "token", addr.Hex(), "err", err)
		}

		// Constructor-emitted logs are not on the creation receipt, so they
		// are recovered with a from-block filter. The filter is not scoped to
		// the contract address; over-fetching is accepted and the log upsert
		// keeps replays harmless.
		logs, err := n.LogsFrom(ctx, creationBlock)
		if err != nil {
			logger.Errorw("error backfilling logs", "contract", addr.Hex(), "err", err)
			return nil
		}
		for _, l := range logs {
			if err := idx.indexLog(ctx, l, p); err != nil {
				logger.Errorw("error indexing backfilled log",
					"tx", l.TransactionHash.Hex(), "logIndex", uint64(l.Index), "err", err)
			}
		}
	}
	return nil
}

// indexToken reads on-chain ERC-20 metadata and upserts the token row. The
// metadata read never fails; absent methods leave zero values.
func (idx *Indexer) indexToken(ctx context.Context, addr common.Address, creationBlock uint64, n *node.Client, p *db.Pool) error {
	ti := contract.ReadTokenInfo(ctx, n, addr)
	return p.InsertToken(ctx, &db.Token{
		Address:                   addr,
		Type:                      contract.ERC20,
		Name:                      ti.Name,
		Symbol:                    ti.Symbol,
		TotalSupply:               ti.TotalSupply,
		Decimals:                  ti.Decimals,
		TotalSupplyUpdatedAtBlock: creationBlock,
	})
}

// indexLog persists a log and, when the emitting contract has a stored ABI
// classifying it as ERC-20, decodes Transfer events into token transfers.
// An address with no stored ABI is the common case and ends the workflow
// successfully.
func (idx *Indexer) indexLog(ctx context.Context, l *node.Log, p *db.Pool) error {
	if err := p.InsertLog(ctx, l); err != nil {
		return err
	}

	abiJSON, err := idx.lookupABI(ctx, l.Address, p)
	if err != nil {
		if errors.Is(err, db.ErrNoABI) {
			return nil
		}
		return err
	}

	switch typ := contract.DetectType(abiJSON); typ {
	case contract.ERC20:
		if !contract.IsTransferLog(l) {
			return nil
		}
		t, err := contract.DecodeTransfer(l)
		if err != nil {
			return err
		}
		return p.InsertTokenTransfer(ctx, &db.TokenTransfer{
			TxHash:          l.TransactionHash,
			BlockHash:       l.BlockHash,
			LogIndex:        uint64(l.Index),
			ContractAddress: l.Address,
			FromAddress:     t.From,
			ToAddress:       t.To,
			BlockNumber:     l.BlockNumberU64(),
			Amount:          t.Value,
		})
	case contract.ERC721, contract.ERC777, contract.ERC1155:
		logger.Warnw("log decoding not supported for contract type",
			"type", typ, "contract", l.Address.Hex())
		return nil
	default:
		return nil
	}
}

// lookupABI resolves a contract's ABI through the in-process cache, falling
// back to the store. Only hits are cached; misses stay uncached so an ABI
// inserted later is still found.
func (idx *Indexer) lookupABI(ctx context.Context, addr common.Address, p *db.Pool) ([]byte, error) {
	if cached, ok := idx.abiCache.Get(addr); ok {
		return cached.([]byte), nil
	}
	abiJSON, err := p.GetABIByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	idx.abiCache.Add(addr, abiJSON)
	return abiJSON, nil
}
