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

// Package blockscout fetches verified contract metadata from a Blockscout
// REST explorer.
package blockscout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/jeongkyun-oh/eth-indexer/contract"
	"github.com/jeongkyun-oh/eth-indexer/logutil"
)

var logger = logutil.NewModuleLogger("blockscout")

const requestTimeout = 60 * time.Second

// Client talks to one Blockscout instance.
type Client struct {
	endpoint string
	apiKey   string
	hc       *http.Client
}

// NewClient builds a Client for the given endpoint. The API key is optional.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		hc:       &http.Client{Timeout: requestTimeout},
	}
}

// smartContractResponse mirrors GET /api/v2/smart-contracts/{address}.
// Missing fields default to empty / false.
type smartContractResponse struct {
	ABI                 json.RawMessage `json:"abi"`
	AdditionalSources   json.RawMessage `json:"additional_sources"`
	CompilerSettings    json.RawMessage `json:"compiler_settings"`
	CompilerVersion     string          `json:"compiler_version"`
	ConstructorArgs     string          `json:"constructor_args"`
	Name                string          `json:"name"`
	EVMVersion          string          `json:"evm_version"`
	FilePath            string          `json:"file_path"`
	OptimizationEnabled bool            `json:"optimization_enabled"`
	SourceCode          string          `json:"source_code"`
}

// GetVerifiedContract fetches the verified metadata for an address. A 404
// means the contract is simply not verified and yields (nil, nil), the
// Missing outcome. Other HTTP failures and malformed bodies are logged and
// also yield Missing; they are never fatal to the enclosing workflow. The
// error return covers only transport-level problems the caller may want to
// log with its own context.
func (c *Client) GetVerifiedContract(ctx context.Context, address string) (*contract.Info, error) {
	url := fmt.Sprintf("%s/api/v2/smart-contracts/%s", c.endpoint, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building explorer request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		logger.Errorw("explorer request failed", "address", address, "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		logger.Debugw("no verified source code found", "address", address)
		return nil, nil
	case resp.StatusCode >= 400:
		logger.Errorw("explorer returned error status", "address", address, "status", resp.StatusCode)
		return nil, nil
	}

	var sc smartContractResponse
	if err := json.NewDecoder(resp.Body).Decode(&sc); err != nil {
		logger.Errorw("parsing explorer response", "address", address, "err", err)
		return nil, nil
	}

	info := &contract.Info{
		Type:                 contract.DetectType(sc.ABI),
		RawABI:               sc.ABI,
		AdditionalSources:    rawString(sc.AdditionalSources),
		CompilerSettings:     rawString(sc.CompilerSettings),
		CompilerVersion:      sc.CompilerVersion,
		ConstructorArguments: sc.ConstructorArgs,
		Name:                 sc.Name,
		EVMVersion:           sc.EVMVersion,
		FileName:             sc.FilePath,
		IsProxy:              false,
		OptimizationUsed:     sc.OptimizationEnabled,
		SourceCode:           sc.SourceCode,
	}
	logger.Debugw("got verified source code", "address", address, "type", info.Type.String())
	return info, nil
}

// rawString renders a raw JSON value as the stored text form, empty for null.
func rawString(raw json.RawMessage) string {
	s := string(raw)
	if s == "" || s == "null" {
		return ""
	}
	return s
}
