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
	"strconv"

	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/node"
)

const insertTransactionSQL = `
	INSERT INTO transactions ("r", "s", "v", "to", "gas", "from", "hash", "type", "input",
	                          "nonce", "value", "chainId", "gasPrice", "blockHash",
	                          "accessList", "blockNumber", "maxFeePerGas", "transactionIndex",
	                          "maxPriorityFeePerGas")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT ("hash") DO NOTHING`

// InsertTransaction persists a transaction. Re-insertion is a no-op.
func (p *Pool) InsertTransaction(ctx context.Context, tx *node.Transaction) error {
	chainID := ""
	if tx.ChainID != nil {
		chainID = tx.ChainID.ToInt().String()
	}
	txType := int16(0)
	if tx.Type != nil {
		txType = int16(uint64(*tx.Type))
	}

	_, err := p.pool.Exec(ctx, insertTransactionSQL,
		hexBig(tx.R),
		hexBig(tx.S),
		hexBig(tx.V),
		addressOrNil(tx.To),
		int64(tx.Gas),
		addrHex(tx.From),
		tx.Hash.Hex(),
		txType,
		tx.Input.String(),
		int64(tx.Nonce),
		numeric(tx.Value),
		chainID,
		numeric(tx.GasPrice),
		hashOrNil(tx.BlockHash),
		jsonOrNull(tx.AccessList),
		int64(tx.BlockNumberU64()),
		numeric(tx.MaxFeePerGas),
		int64(uintVal(tx.TransactionIndex)),
		numeric(tx.MaxPriorityFeePerGas),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting transaction %s", tx.Hash.Hex())
	}
	return nil
}

const insertReceiptSQL = `
	INSERT INTO transactions_receipts ("transactionHash", "transactionIndex", "blockHash", "from",
	                                   "to", "blockNumber", "cumulativeGasUsed", "gasUsed",
	                                   "contractAddress", "logs", "logsBloom", "status",
	                                   "effectiveGasPrice", "type")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT ("transactionHash") DO NOTHING`

// InsertTransactionReceipt persists a receipt with its logs embedded as
// received. Re-insertion is a no-op.
func (p *Pool) InsertTransactionReceipt(ctx context.Context, r *node.Receipt) error {
	logs, err := json.Marshal(r.Logs)
	if err != nil {
		return errors.Wrap(err, "encoding receipt logs")
	}

	_, err = p.pool.Exec(ctx, insertReceiptSQL,
		r.TransactionHash.Hex(),
		int64(r.TransactionIndex),
		r.BlockHash.Hex(),
		addrHex(r.From),
		addressOrNil(r.To),
		int64(r.BlockNumberU64()),
		numeric(r.CumulativeGasUsed),
		numeric(r.GasUsed),
		addressOrNil(r.ContractAddress),
		logs,
		r.LogsBloom.String(),
		uint64(r.Status) == 1,
		numeric(r.EffectiveGasPrice),
		strconv.FormatUint(uint64(r.Type), 10),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting receipt %s", r.TransactionHash.Hex())
	}
	return nil
}
