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

package db

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/node"
)

const insertBlockSQL = `
	INSERT INTO blocks ("number", "hash", "parentHash", "nonce", "sha3Uncles", "logsBloom",
	                    "transactionsRoot", "stateRoot", "miner", "difficulty", "totalDifficulty",
	                    "size", "extraData", "gasLimit", "gasUsed", "timestamp",
	                    "transactionsCount", "transactions_ids", "uncles")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT ("number") DO NOTHING`

// InsertBlock persists a block. Re-insertion of the same number is a no-op.
func (p *Pool) InsertBlock(ctx context.Context, blk *node.Block) error {
	if blk.Number == nil {
		return errors.New("block has no number")
	}
	number := blk.Number.ToInt().Int64()

	txIDs, err := json.Marshal(blk.Transactions)
	if err != nil {
		return errors.Wrap(err, "encoding transaction ids")
	}
	uncles, err := json.Marshal(blk.Uncles)
	if err != nil {
		return errors.Wrap(err, "encoding uncles")
	}

	_, err = p.pool.Exec(ctx, insertBlockSQL,
		number,
		blk.Hash.Hex(),
		blk.ParentHash.Hex(),
		blk.Nonce.String(),
		blk.Sha3Uncles.Hex(),
		blk.LogsBloom.String(),
		blk.TransactionsRoot.Hex(),
		blk.StateRoot.Hex(),
		addrHex(blk.Miner),
		numeric(blk.Difficulty),
		numeric(blk.TotalDifficulty),
		int64(blk.Size),
		blk.ExtraData.String(),
		numeric(blk.GasLimit),
		numeric(blk.GasUsed),
		int64(blk.Timestamp),
		len(blk.Transactions),
		txIDs,
		uncles,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting block %d", number)
	}
	return nil
}
