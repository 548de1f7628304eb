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

package node

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Capture types for JSON-RPC responses. These are transient values produced
// by the gateway and consumed by the workflow; the store owns the durable
// representation. Fields the node reports for pending objects are pointers.

// Block is an eth_getBlockByNumber result with transaction hashes only.
type Block struct {
	Number           *hexutil.Big   `json:"number"`
	Hash             common.Hash    `json:"hash"`
	ParentHash       common.Hash    `json:"parentHash"`
	Nonce            hexutil.Bytes  `json:"nonce"`
	Sha3Uncles       common.Hash    `json:"sha3Uncles"`
	LogsBloom        hexutil.Bytes  `json:"logsBloom"`
	TransactionsRoot common.Hash    `json:"transactionsRoot"`
	StateRoot        common.Hash    `json:"stateRoot"`
	Miner            common.Address `json:"miner"`
	Difficulty       *hexutil.Big   `json:"difficulty"`
	TotalDifficulty  *hexutil.Big   `json:"totalDifficulty"`
	Size             hexutil.Uint64 `json:"size"`
	ExtraData        hexutil.Bytes  `json:"extraData"`
	GasLimit         *hexutil.Big   `json:"gasLimit"`
	GasUsed          *hexutil.Big   `json:"gasUsed"`
	Timestamp        hexutil.Uint64 `json:"timestamp"`
	Transactions     []common.Hash  `json:"transactions"`
	Uncles           []common.Hash  `json:"uncles"`
}

// Transaction is an eth_getTransactionByHash result.
type Transaction struct {
	Hash                 common.Hash     `json:"hash"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	BlockHash            *common.Hash    `json:"blockHash"`
	BlockNumber          *hexutil.Big    `json:"blockNumber"`
	TransactionIndex     *hexutil.Uint64 `json:"transactionIndex"`
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	Input                hexutil.Bytes   `json:"input"`
	Type                 *hexutil.Uint64 `json:"type"`
	ChainID              *hexutil.Big    `json:"chainId"`
	AccessList           json.RawMessage `json:"accessList,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	V                    *hexutil.Big    `json:"v"`
	R                    *hexutil.Big    `json:"r"`
	S                    *hexutil.Big    `json:"s"`
}

// BlockNumberU64 returns the including block number, zero while pending.
func (tx *Transaction) BlockNumberU64() uint64 {
	if tx.BlockNumber == nil {
		return 0
	}
	return tx.BlockNumber.ToInt().Uint64()
}

// Receipt is an eth_getTransactionReceipt result.
type Receipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       *hexutil.Big    `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	CumulativeGasUsed *hexutil.Big    `json:"cumulativeGasUsed"`
	GasUsed           *hexutil.Big    `json:"gasUsed"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Logs              []*Log          `json:"logs"`
	LogsBloom         hexutil.Bytes   `json:"logsBloom"`
	Status            hexutil.Uint64  `json:"status"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Type              hexutil.Uint64  `json:"type"`
}

// BlockNumberU64 returns the including block number, zero while pending.
func (r *Receipt) BlockNumberU64() uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.ToInt().Uint64()
}

// Log is a single entry of a receipt's logs or an eth_getLogs result.
type Log struct {
	Address          common.Address `json:"address"`
	Topics           []common.Hash  `json:"topics"`
	Data             hexutil.Bytes  `json:"data"`
	BlockNumber      *hexutil.Big   `json:"blockNumber"`
	TransactionHash  common.Hash    `json:"transactionHash"`
	TransactionIndex hexutil.Uint64 `json:"transactionIndex"`
	BlockHash        common.Hash    `json:"blockHash"`
	Index            hexutil.Uint64 `json:"logIndex"`
	Removed          bool           `json:"removed"`
	Type             *string        `json:"type,omitempty"`
}

// BlockNumberU64 returns the emitting block number, zero while pending.
func (l *Log) BlockNumberU64() uint64 {
	if l.BlockNumber == nil {
		return 0
	}
	return l.BlockNumber.ToInt().Uint64()
}

// Header is a newHeads subscription notification.
type Header struct {
	Number     *hexutil.Big `json:"number"`
	Hash       common.Hash  `json:"hash"`
	ParentHash common.Hash  `json:"parentHash"`
}
