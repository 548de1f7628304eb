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

// Package node is the RPC gateway: long-lived WebSocket sessions to an
// Ethereum node exposing the lookups and the new-block subscription the
// indexing workflow needs.
package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/logutil"
)

var logger = logutil.NewModuleLogger("node")

// Client is one WebSocket session. The underlying rpc.Client multiplexes
// concurrent requests, so a Client is safe for use by many block tasks.
type Client struct {
	rpc *rpc.Client
}

// Dial opens a WebSocket session to the node.
func Dial(ctx context.Context, wsEndpoint string) (*Client, error) {
	c, err := rpc.DialContext(ctx, wsEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to RPC endpoint %s", wsEndpoint)
	}
	logger.Infow("connected to RPC endpoint", "endpoint", wsEndpoint)
	return &Client{rpc: c}, nil
}

// Close tears the session down.
func (c *Client) Close() {
	c.rpc.Close()
}

// LatestBlockNumber fetches the tip block and returns its number. It fails
// when the node does not return a block with a populated number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var blk Block
	if err := c.rpc.CallContext(ctx, &blk, "eth_getBlockByNumber", "latest", false); err != nil {
		return 0, errors.Wrap(err, "getting latest block")
	}
	if blk.Number == nil {
		return 0, errors.New("latest block has no number")
	}
	return blk.Number.ToInt().Uint64(), nil
}

// BlockByNumber fetches a block with its transaction hash list. A missing
// block returns (nil, nil).
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var blk *Block
	err := c.rpc.CallContext(ctx, &blk, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false)
	if err != nil {
		return nil, errors.Wrapf(err, "getting block %d", number)
	}
	return blk, nil
}

// TransactionByHash fetches a transaction. Missing transactions return
// (nil, nil).
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var tx *Transaction
	err := c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash)
	if err != nil {
		return nil, errors.Wrapf(err, "getting transaction %s", hash.Hex())
	}
	return tx, nil
}

// TransactionReceipt fetches a receipt. Missing receipts return (nil, nil).
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *Receipt
	err := c.rpc.CallContext(ctx, &r, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, errors.Wrapf(err, "getting receipt %s", hash.Hex())
	}
	return r, nil
}

// BalanceAt returns the balance of an address at the given block.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address, blockNumber uint64) (*big.Int, error) {
	var out hexutil.Big
	err := c.rpc.CallContext(ctx, &out, "eth_getBalance", addr, hexutil.EncodeUint64(blockNumber))
	if err != nil {
		return nil, errors.Wrapf(err, "getting balance for %s", addr.Hex())
	}
	return out.ToInt(), nil
}

// CodeAt returns the deployed code of an address at the given block. RPC
// failures degrade to empty bytes: the address is presumed not to be a
// contract at this block.
func (c *Client) CodeAt(ctx context.Context, addr common.Address, blockNumber uint64) []byte {
	var out hexutil.Bytes
	err := c.rpc.CallContext(ctx, &out, "eth_getCode", addr, hexutil.EncodeUint64(blockNumber))
	if err != nil {
		logger.Debugw("getCode failed, assuming non-contract", "address", addr.Hex(), "err", err)
		return nil
	}
	return out
}

// LatestCodeAt returns the code of an address at the chain tip, with the same
// empty-bytes fallback as CodeAt.
func (c *Client) LatestCodeAt(ctx context.Context, addr common.Address) []byte {
	var out hexutil.Bytes
	err := c.rpc.CallContext(ctx, &out, "eth_getCode", addr, "latest")
	if err != nil {
		logger.Debugw("getCode failed, assuming non-contract", "address", addr.Hex(), "err", err)
		return nil
	}
	return out
}

// StorageAt returns storage slot 0 of an address at the given block. RPC
// failures degrade to the zero hash.
func (c *Client) StorageAt(ctx context.Context, addr common.Address, blockNumber uint64) common.Hash {
	var out common.Hash
	// Slot 0 explicitly; the first declared storage variable of a contract.
	err := c.rpc.CallContext(ctx, &out, "eth_getStorageAt", addr, "0x0", hexutil.EncodeUint64(blockNumber))
	if err != nil {
		logger.Debugw("getStorageAt failed, assuming non-contract", "address", addr.Hex(), "err", err)
		return common.Hash{}
	}
	return out
}

// TransactionCountAt returns the nonce of an address at the given block.
func (c *Client) TransactionCountAt(ctx context.Context, addr common.Address, blockNumber uint64) (uint64, error) {
	var out hexutil.Uint64
	err := c.rpc.CallContext(ctx, &out, "eth_getTransactionCount", addr, hexutil.EncodeUint64(blockNumber))
	if err != nil {
		return 0, errors.Wrapf(err, "getting transaction count for %s", addr.Hex())
	}
	return uint64(out), nil
}

// LogsFrom returns all logs emitted at or after fromBlock. Used to backfill
// constructor-emitted logs that some nodes omit from creation receipts.
func (c *Client) LogsFrom(ctx context.Context, fromBlock uint64) ([]*Log, error) {
	var out []*Log
	filter := map[string]interface{}{"fromBlock": hexutil.EncodeUint64(fromBlock)}
	if err := c.rpc.CallContext(ctx, &out, "eth_getLogs", filter); err != nil {
		return nil, errors.Wrapf(err, "getting logs from block %d", fromBlock)
	}
	return out, nil
}

// Call executes a read-only contract call at the given block. A nil
// blockNumber means the chain tip.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error) {
	args := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	at := "latest"
	if blockNumber != nil {
		at = hexutil.EncodeBig(blockNumber)
	}
	var out hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &out, "eth_call", args, at); err != nil {
		return nil, errors.Wrapf(err, "calling contract %s", to.Hex())
	}
	return out, nil
}

// SubscribeNewHeads subscribes to new block headers. The subscription is
// infinite and non-restartable; the caller owns its lifetime.
func (c *Client) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (*rpc.ClientSubscription, error) {
	sub, err := c.rpc.EthSubscribe(ctx, ch, "newHeads")
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to new heads")
	}
	return sub, nil
}
