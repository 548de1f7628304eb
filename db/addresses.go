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
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// AddressState is one sample of an address's on-chain state at a block.
type AddressState struct {
	Address common.Address
	Balance *big.Int
	// Nonce and TransactionCount carry the same node sample.
	Nonce            uint64
	TransactionCount uint64
	Storage          common.Hash
	Code             []byte
	BlockNumber      uint64
}

// The monotone upsert: each field is overwritten only when the incoming
// blockNumber is strictly greater than the stored one, in a single statement
// so concurrent samples cannot interleave a read-modify-write.
const insertAddressSQL = `
	INSERT INTO addresses ("address", "balance", "nonce", "transactionCount", "blockNumber",
	                       "contractCode", "storage", "insertedAt")
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT ("address") DO UPDATE
	SET "balance" = EXCLUDED."balance",
	    "nonce" = EXCLUDED."nonce",
	    "transactionCount" = EXCLUDED."transactionCount",
	    "blockNumber" = EXCLUDED."blockNumber",
	    "contractCode" = EXCLUDED."contractCode",
	    "storage" = EXCLUDED."storage"
	WHERE EXCLUDED."blockNumber" > addresses."blockNumber"`

// InsertAddress upserts an address sample under the monotone blockNumber
// rule: stale samples never overwrite fresher ones. The full balance is
// stored at arbitrary precision.
func (p *Pool) InsertAddress(ctx context.Context, a *AddressState) error {
	balance := "0"
	if a.Balance != nil {
		balance = a.Balance.String()
	}

	_, err := p.pool.Exec(ctx, insertAddressSQL,
		addrHex(a.Address),
		balance,
		int64(a.Nonce),
		int64(a.TransactionCount),
		int64(a.BlockNumber),
		hexutil.Encode(a.Code),
		a.Storage.Hex(),
	)
	if err != nil {
		return errors.Wrapf(err, "upserting address %s", addrHex(a.Address))
	}
	return nil
}
