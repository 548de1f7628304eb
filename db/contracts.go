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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/contract"
)

// ErrNoABI signals that no ABI is stored for an address. It is a normal
// control outcome of GetABIByAddress, not a failure.
var ErrNoABI = errors.New("no ABI stored for address")

// Contract is a deployed contract observed through its creation receipt,
// optionally enriched with verified explorer metadata.
type Contract struct {
	Address        common.Address
	Bytecode       []byte
	BlockNumber    uint64
	TxHash         common.Hash
	CreatorAddress common.Address

	// Info is the verified metadata; nil when the explorer had nothing.
	Info *contract.Info
}

const insertContractSQL = `
	INSERT INTO contracts ("address", "bytecode", "blockNumber", "transactionHash", "creatorAddress",
	                       "contractType", "abi", "sourceCode", "additionalSources",
	                       "compilerSettings", "constructorArguments", "EVMVersion", "fileName",
	                       "isProxy", "contractName", "compilerVersion", "optimizationUsed")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT ("address") DO UPDATE SET
	    "bytecode" = EXCLUDED."bytecode",
	    "blockNumber" = EXCLUDED."blockNumber",
	    "transactionHash" = EXCLUDED."transactionHash",
	    "creatorAddress" = EXCLUDED."creatorAddress",
	    "contractType" = EXCLUDED."contractType",
	    "abi" = EXCLUDED."abi",
	    "sourceCode" = EXCLUDED."sourceCode",
	    "additionalSources" = EXCLUDED."additionalSources",
	    "compilerSettings" = EXCLUDED."compilerSettings",
	    "constructorArguments" = EXCLUDED."constructorArguments",
	    "EVMVersion" = EXCLUDED."EVMVersion",
	    "fileName" = EXCLUDED."fileName",
	    "isProxy" = EXCLUDED."isProxy",
	    "contractName" = EXCLUDED."contractName",
	    "compilerVersion" = EXCLUDED."compilerVersion",
	    "optimizationUsed" = EXCLUDED."optimizationUsed"`

// InsertContract upserts a contract, last write wins. A missing explorer
// result still writes the row with empty metadata and an empty type.
func (p *Pool) InsertContract(ctx context.Context, c *Contract) error {
	info := c.Info
	if info == nil {
		info = &contract.Info{}
	}

	_, err := p.pool.Exec(ctx, insertContractSQL,
		addrHex(c.Address),
		hexutil.Encode(c.Bytecode),
		int64(c.BlockNumber),
		c.TxHash.Hex(),
		addrHex(c.CreatorAddress),
		info.Type.String(),
		jsonOrNull(info.RawABI),
		info.SourceCode,
		info.AdditionalSources,
		info.CompilerSettings,
		info.ConstructorArguments,
		info.EVMVersion,
		info.FileName,
		info.IsProxy,
		info.Name,
		info.CompilerVersion,
		info.OptimizationUsed,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting contract %s", addrHex(c.Address))
	}
	return nil
}

// GetABIByAddress returns the stored ABI of a contract. ErrNoABI is returned
// both when the row is absent and when its abi column is null.
func (p *Pool) GetABIByAddress(ctx context.Context, addr common.Address) ([]byte, error) {
	var abiJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT "abi" FROM contracts WHERE "address" = $1`, addrHex(addr)).Scan(&abiJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoABI
	}
	if err != nil {
		return nil, errors.Wrapf(err, "looking up ABI for %s", addrHex(addr))
	}
	if len(abiJSON) == 0 {
		return nil, ErrNoABI
	}
	return abiJSON, nil
}
