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

// Package contract classifies deployed contracts from their ABI and decodes
// the token events the indexer derives rows from.
package contract

import (
	"encoding/json"
	"strings"
)

// Type tags a contract with the token standard its ABI exposes.
type Type int

const (
	Unknown Type = iota
	ERC20
	ERC721
	ERC777
	ERC1155
)

// String returns the stored form of the type. Unknown contracts are stored
// with an empty type.
func (t Type) String() string {
	switch t {
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC777:
		return "ERC777"
	case ERC1155:
		return "ERC1155"
	default:
		return ""
	}
}

// ParseType converts a stored type string back to a Type.
func ParseType(s string) Type {
	switch strings.ToUpper(s) {
	case "ERC20":
		return ERC20
	case "ERC721":
		return ERC721
	case "ERC777":
		return ERC777
	case "ERC1155":
		return ERC1155
	default:
		return Unknown
	}
}

type abiEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DetectType classifies a contract from its raw ABI JSON. A null,
// unparseable, or empty ABI classifies as Unknown without error. Rules are
// evaluated in order; the first standard whose function set is fully present
// wins, regardless of entry ordering or additional entries.
func DetectType(abiJSON []byte) Type {
	fns := functionNames(abiJSON)
	if len(fns) == 0 {
		return Unknown
	}
	switch {
	case hasAll(fns, "totalSupply", "balanceOf", "transfer"):
		return ERC20
	case hasAll(fns, "ownerOf", "safeTransferFrom", "transferFrom"):
		return ERC721
	case hasAll(fns, "granularity", "defaultOperators", "send"):
		return ERC777
	case hasAll(fns, "safeTransferFrom", "safeBatchTransferFrom", "balanceOf", "balanceOfBatch"):
		return ERC1155
	default:
		return Unknown
	}
}

// functionNames collects the names of function entries in an ABI. The
// explorer sometimes returns the ABI as a JSON-encoded string rather than an
// array; both forms are accepted.
func functionNames(abiJSON []byte) map[string]bool {
	raw := strings.TrimSpace(string(abiJSON))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(raw), &unquoted); err != nil {
			return nil
		}
		raw = unquoted
	}
	var entries []abiEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type == "function" {
			names[e.Name] = true
		}
	}
	return names
}

func hasAll(names map[string]bool, want ...string) bool {
	for _, w := range want {
		if !names[w] {
			return false
		}
	}
	return true
}

// Info holds the verified metadata of a contract as reported by the
// explorer. A nil *Info is the Missing outcome: the explorer had nothing for
// the address, which is a normal result rather than an error.
type Info struct {
	Type                 Type
	RawABI               json.RawMessage
	AdditionalSources    string
	CompilerSettings     string
	CompilerVersion      string
	ConstructorArguments string
	Name                 string
	EVMVersion           string
	FileName             string
	IsProxy              bool
	OptimizationUsed     bool
	SourceCode           string
}
