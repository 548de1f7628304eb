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

package contract

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/logutil"
	"github.com/jeongkyun-oh/eth-indexer/node"
)

var logger = logutil.NewModuleLogger("contract")

// ERC20MetadataABI is the input ABI used to read token metadata on-chain.
const ERC20MetadataABI = `[{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

// TransferEventSignature is the canonical ERC-20 transfer event signature.
const TransferEventSignature = "Transfer(address,address,uint256)"

// TransferEventHash is keccak256 of the canonical signature, matched against
// topics[0] of candidate logs.
var TransferEventHash = crypto.Keccak256Hash([]byte(TransferEventSignature))

// Transfer is a decoded ERC-20 Transfer event.
type Transfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// IsTransferLog reports whether a log carries the ERC-20 Transfer signature.
func IsTransferLog(l *node.Log) bool {
	return len(l.Topics) > 0 && l.Topics[0] == TransferEventHash
}

// DecodeTransfer extracts (from, to, value) from an ERC-20 Transfer log.
// The addresses are the low 20 bytes of topics[1] and topics[2]; the value is
// the log data as an unsigned 256-bit integer. Logs with fewer than three
// topics fail decoding instead of panicking.
func DecodeTransfer(l *node.Log) (*Transfer, error) {
	if !IsTransferLog(l) {
		return nil, errors.New("log is not an ERC-20 Transfer event")
	}
	if len(l.Topics) < 3 {
		return nil, errors.Errorf("Transfer log has %d topics, need 3", len(l.Topics))
	}
	return &Transfer{
		From:  common.BytesToAddress(l.Topics[1].Bytes()[12:]),
		To:    common.BytesToAddress(l.Topics[2].Bytes()[12:]),
		Value: new(big.Int).SetBytes(l.Data),
	}, nil
}

// Caller executes read-only contract calls; satisfied by node.Client.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error)
}

// TokenInfo is the on-chain metadata of an ERC-20 token.
type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// ReadTokenInfo calls name, symbol, decimals and totalSupply on an ERC-20
// contract. Each call failure degrades gracefully: names default to empty,
// numbers to zero. It never returns an error.
func ReadTokenInfo(ctx context.Context, caller Caller, token common.Address) *TokenInfo {
	parsed, err := abi.JSON(strings.NewReader(ERC20MetadataABI))
	if err != nil {
		logger.Errorw("parsing ERC-20 metadata ABI", "err", err)
		return &TokenInfo{TotalSupply: new(big.Int)}
	}

	info := &TokenInfo{TotalSupply: new(big.Int)}

	if out, err := callMethod(ctx, caller, parsed, token, "name"); err == nil {
		if s, ok := out.(string); ok {
			info.Name = s
		}
	}
	if out, err := callMethod(ctx, caller, parsed, token, "symbol"); err == nil {
		if s, ok := out.(string); ok {
			info.Symbol = s
		}
	}
	if out, err := callMethod(ctx, caller, parsed, token, "decimals"); err == nil {
		if d, ok := out.(uint8); ok {
			info.Decimals = d
		}
	}
	if out, err := callMethod(ctx, caller, parsed, token, "totalSupply"); err == nil {
		if ts, ok := out.(*big.Int); ok {
			info.TotalSupply = ts
		}
	}
	return info
}

func callMethod(ctx context.Context, caller Caller, parsed abi.ABI, to common.Address, method string) (interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, errors.Wrapf(err, "packing %s", method)
	}
	ret, err := caller.Call(ctx, to, data, nil)
	if err != nil {
		logger.Debugw("token metadata call failed", "method", method, "token", to.Hex(), "err", err)
		return nil, err
	}
	outs, err := parsed.Unpack(method, ret)
	if err != nil || len(outs) == 0 {
		logger.Debugw("token metadata unpack failed", "method", method, "token", to.Hex(), "err", err)
		return nil, errors.Wrapf(err, "unpacking %s", method)
	}
	return outs[0], nil
}
