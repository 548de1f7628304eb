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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/node"
)

const insertLogSQL = `
	INSERT INTO logs ("data", "index", "type", "firstTopic", "secondTopic", "thirdTopic",
	                  "fourthTopic", "address", "transactionHash", "blockHash", "blockNumber",
	                  "insertedAt")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT ("transactionHash", "blockHash", "index") DO UPDATE SET
	    "data" = EXCLUDED."data",
	    "type" = EXCLUDED."type",
	    "firstTopic" = EXCLUDED."firstTopic",
	    "secondTopic" = EXCLUDED."secondTopic",
	    "thirdTopic" = EXCLUDED."thirdTopic",
	    "fourthTopic" = EXCLUDED."fourthTopic",
	    "address" = EXCLUDED."address",
	    "blockNumber" = EXCLUDED."blockNumber"`

// InsertLog upserts a log entry keyed by (transactionHash, blockHash, index).
// Missing topics are stored as empty strings.
func (p *Pool) InsertLog(ctx context.Context, l *node.Log) error {
	_, err := p.pool.Exec(ctx, insertLogSQL,
		l.Data.String(),
		int64(l.Index),
		l.Type,
		topic(l.Topics, 0),
		topic(l.Topics, 1),
		topic(l.Topics, 2),
		topic(l.Topics, 3),
		addrHex(l.Address),
		l.TransactionHash.Hex(),
		l.BlockHash.Hex(),
		int64(l.BlockNumberU64()),
	)
	if err != nil {
		return errors.Wrapf(err, "upserting log %d of %s", uint64(l.Index), l.TransactionHash.Hex())
	}
	return nil
}

// TokenTransfer is a decoded ERC-20 Transfer derived from a log.
type TokenTransfer struct {
	TxHash          common.Hash
	BlockHash       common.Hash
	LogIndex        uint64
	ContractAddress common.Address
	FromAddress     common.Address
	ToAddress       common.Address
	BlockNumber     uint64
	Amount          *big.Int
}

const insertTokenTransferSQL = `
	INSERT INTO token_transfers ("transactionHash", "blockHash", "logIndex", "contractAddress",
	                             "fromAddress", "toAddress", "blockNumber", "amount")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT ("transactionHash", "blockHash", "logIndex") DO UPDATE SET
	    "contractAddress" = EXCLUDED."contractAddress",
	    "fromAddress" = EXCLUDED."fromAddress",
	    "toAddress" = EXCLUDED."toAddress",
	    "blockNumber" = EXCLUDED."blockNumber",
	    "amount" = EXCLUDED."amount"`

// InsertTokenTransfer upserts a token transfer keyed like its source log.
func (p *Pool) InsertTokenTransfer(ctx context.Context, t *TokenTransfer) error {
	amount := "0"
	if t.Amount != nil {
		amount = t.Amount.String()
	}

	_, err := p.pool.Exec(ctx, insertTokenTransferSQL,
		t.TxHash.Hex(),
		t.BlockHash.Hex(),
		int64(t.LogIndex),
		addrHex(t.ContractAddress),
		addrHex(t.FromAddress),
		addrHex(t.ToAddress),
		int64(t.BlockNumber),
		amount,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting token transfer %d of %s", t.LogIndex, t.TxHash.Hex())
	}
	return nil
}
