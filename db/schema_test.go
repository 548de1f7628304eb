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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSchema(t *testing.T, stem string) string {
	sql, err := os.ReadFile(filepath.Join("..", "model", stem+".sql"))
	require.NoError(t, err)
	return string(sql)
}

// Deleting a block must cascade through everything derived from it, and the
// derived tables must reference their parents so orphan rows cannot appear.
func TestSchemaForeignKeys(t *testing.T) {
	blockFK := `FOREIGN KEY ("blockNumber") REFERENCES blocks("number") ON DELETE CASCADE`
	txFK := `FOREIGN KEY ("transactionHash") REFERENCES transactions("hash") ON DELETE CASCADE`

	assert.Contains(t, readSchema(t, "transactions"), blockFK)

	receipts := readSchema(t, "transactions_receipts")
	assert.Contains(t, receipts, blockFK)
	assert.Contains(t, receipts, txFK)

	contracts := readSchema(t, "contracts")
	assert.Contains(t, contracts, blockFK)
	assert.Contains(t, contracts, txFK)

	assert.Contains(t, readSchema(t, "addresses"), blockFK)
}

func TestSchemaReservedColumns(t *testing.T) {
	assert.Contains(t, readSchema(t, "addresses"), `"tokens"`)
	assert.Contains(t, readSchema(t, "blocks"), `"insertedAt"`)
	assert.Contains(t, readSchema(t, "tokens"), `"holderCount"`)
}
