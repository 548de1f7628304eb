package db

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Shaping helpers shared by the insert statements. NUMERIC columns are bound
// as decimal strings so arbitrary-precision values survive intact. Addresses
// are stored lowercase so the ABI lookup by log address always matches.

func addrHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func numeric(v *hexutil.Big) string {
	if v == nil {
		return "0"
	}
	return v.ToInt().String()
}

func uintVal(v *hexutil.Uint64) uint64 {
	if v == nil {
		return 0
	}
	return uint64(*v)
}

// hexBig renders a quantity in its 0x form for VARCHAR columns (r, s, v).
func hexBig(v *hexutil.Big) string {
	if v == nil {
		return "0x0"
	}
	return v.String()
}

func hashOrNil(h *common.Hash) interface{} {
	if h == nil {
		return nil
	}
	return h.Hex()
}

func addressOrNil(a *common.Address) interface{} {
	if a == nil {
		return nil
	}
	return addrHex(*a)
}

// topic returns topics[i] in hex form, empty when the topic is absent.
func topic(topics []common.Hash, i int) string {
	if i >= len(topics) {
		return ""
	}
	return topics[i].Hex()
}

// jsonOrNull passes raw JSON through, substituting SQL NULL for empty values.
func jsonOrNull(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
