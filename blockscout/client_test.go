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

package blockscout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongkyun-oh/eth-indexer/contract"
)

const testAddress = "0x1234567890abcdef1234567890abcdef12345678"

const verifiedBody = `{
	"abi": [
		{"type":"function","name":"totalSupply"},
		{"type":"function","name":"balanceOf"},
		{"type":"function","name":"transfer"}
	],
	"compiler_version": "v0.8.19+commit.7dd6d404",
	"constructor_args": "0x0000",
	"name": "TestToken",
	"evm_version": "paris",
	"file_path": "contracts/TestToken.sol",
	"optimization_enabled": true,
	"source_code": "contract TestToken {}"
}`

func TestGetVerifiedContract(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(verifiedBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	info, err := c.GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "/api/v2/smart-contracts/"+testAddress, gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)

	assert.Equal(t, contract.ERC20, info.Type)
	assert.Equal(t, "TestToken", info.Name)
	assert.Equal(t, "v0.8.19+commit.7dd6d404", info.CompilerVersion)
	assert.Equal(t, "0x0000", info.ConstructorArguments)
	assert.Equal(t, "paris", info.EVMVersion)
	assert.Equal(t, "contracts/TestToken.sol", info.FileName)
	assert.True(t, info.OptimizationUsed)
	assert.Equal(t, "contract TestToken {}", info.SourceCode)
	assert.NotEmpty(t, info.RawABI)
}

func TestGetVerifiedContractNotVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, "").GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetVerifiedContractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, "").GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetVerifiedContractMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, "").GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetVerifiedContractUnreachable(t *testing.T) {
	// A dead endpoint is a Missing outcome, never a workflow failure.
	info, err := NewClient("http://127.0.0.1:1", "").GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetVerifiedContractUnverifiedABI(t *testing.T) {
	// Verified metadata without a recognizable ABI classifies as Unknown.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Mystery","abi":null}`))
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, "").GetVerifiedContract(context.Background(), testAddress)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, contract.Unknown, info.Type)
	assert.Equal(t, "Mystery", info.Name)
}
