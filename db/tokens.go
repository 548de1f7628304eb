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

	"github.com/jeongkyun-oh/eth-indexer/contract"
)

// Token is the metadata row of a classified token contract.
type Token struct {
	Address     common.Address
	Type        contract.Type
	Name        string
	Symbol      string
	TotalSupply *big.Int
	Decimals    uint8

	// TotalSupplyUpdatedAtBlock is the contract's creation block.
	TotalSupplyUpdatedAtBlock uint64
}

const insertTokenSQL = `
	INSERT INTO tokens ("address", "type", "name", "symbol", "totalSupply", "decimals",
	                    "totalSupplyUpdatedAtBlock")
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT ("address") DO UPDATE SET
	    "type" = EXCLUDED."type",
	    "name" = EXCLUDED."name",
	    "symbol" = EXCLUDED."symbol",
	    "totalSupply" = EXCLUDED."totalSupply",
	    "decimals" = EXCLUDED."decimals",
	    "totalSupplyUpdatedAtBlock" = EXCLUDED."totalSupplyUpdatedAtBlock",
	    "lastUpdated" = current_timestamp`

// InsertToken upserts token metadata. holderCount stays unpopulated; it is
// reserved for a balance-tracking pipeline this indexer does not run.
func (p *Pool) InsertToken(ctx context.Context, t *Token) error {
	supply := "0"
	if t.TotalSupply != nil {
		supply = t.TotalSupply.String()
	}

	_, err := p.pool.Exec(ctx, insertTokenSQL,
		addrHex(t.Address),
		t.Type.String(),
		t.Name,
		t.Symbol,
		supply,
		int64(t.Decimals),
		int64(t.TotalSupplyUpdatedAtBlock),
	)
	if err != nil {
		return errors.Wrapf(err, "upserting token %s", addrHex(t.Address))
	}
	return nil
}
