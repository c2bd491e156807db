package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/tdex-network/xswapd/pkg/htlc"
	"golang.org/x/crypto/sha3"
)

const wordSize = 32

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// selector returns the 4-byte method id of a solidity signature.
func selector(signature string) []byte {
	return keccak256([]byte(signature))[:4]
}

// eventTopic returns the topic0 of a solidity event signature.
func eventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature)))
}

// encodeCall ABI encodes a call to signature with static arguments only:
// [32]byte and htlc types as bytes32, *big.Int and integers as uint256,
// strings as addresses.
func encodeCall(signature string, args ...interface{}) ([]byte, error) {
	data := append([]byte{}, selector(signature)...)
	for i, arg := range args {
		word, err := encodeWord(arg)
		if err != nil {
			return nil, fmt.Errorf("arg %d of %s: %w", i, signature, err)
		}
		data = append(data, word[:]...)
	}
	return data, nil
}

func encodeWord(arg interface{}) ([wordSize]byte, error) {
	var word [wordSize]byte
	switch v := arg.(type) {
	case htlc.HashLock:
		copy(word[:], v[:])
	case htlc.Secret:
		copy(word[:], v[:])
	case [32]byte:
		copy(word[:], v[:])
	case *big.Int:
		if v == nil || v.Sign() < 0 {
			return word, fmt.Errorf("invalid uint256 %v", v)
		}
		u, overflow := uint256.FromBig(v)
		if overflow {
			return word, fmt.Errorf("uint256 overflow")
		}
		word = u.Bytes32()
	case uint64:
		word = uint256.NewInt(v).Bytes32()
	case int64:
		if v < 0 {
			return word, fmt.Errorf("invalid uint256 %d", v)
		}
		word = uint256.NewInt(uint64(v)).Bytes32()
	case string:
		b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
		if err != nil || len(b) != addressLength {
			return word, fmt.Errorf("invalid address %s", v)
		}
		copy(word[wordSize-addressLength:], b)
	default:
		return word, fmt.Errorf("unsupported abi type %T", arg)
	}
	return word, nil
}

// words splits hex encoded return data into 32-byte words.
func words(data string) ([][wordSize]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid return data: %w", err)
	}
	if len(b)%wordSize != 0 {
		return nil, fmt.Errorf("invalid return data length %d", len(b))
	}
	out := make([][wordSize]byte, 0, len(b)/wordSize)
	for i := 0; i < len(b); i += wordSize {
		var w [wordSize]byte
		copy(w[:], b[i:i+wordSize])
		out = append(out, w)
	}
	return out, nil
}

func wordToBig(w [wordSize]byte) *big.Int {
	return new(uint256.Int).SetBytes32(w[:]).ToBig()
}

func wordToUint64(w [wordSize]byte) uint64 {
	return new(uint256.Int).SetBytes32(w[:]).Uint64()
}

func wordToAddress(w [wordSize]byte) string {
	return ChecksumAddress("0x" + hex.EncodeToString(w[wordSize-addressLength:]))
}

func wordToHex(w [wordSize]byte) string {
	return "0x" + hex.EncodeToString(w[:])
}

// decodeBytes32Array decodes the return data of a function returning a
// single dynamic bytes32[].
func decodeBytes32Array(data string) ([][wordSize]byte, error) {
	ws, err := words(data)
	if err != nil {
		return nil, err
	}
	if len(ws) < 2 {
		return nil, nil
	}
	offset := wordToUint64(ws[0]) / wordSize
	if offset >= uint64(len(ws)) {
		return nil, fmt.Errorf("invalid array offset")
	}
	length := wordToUint64(ws[offset])
	if offset+1+length > uint64(len(ws)) {
		return nil, fmt.Errorf("invalid array length %d", length)
	}
	return ws[offset+1 : offset+1+length], nil
}

func hexToBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		if s == "0x" || s == "0x0" {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

func bigToHex(n *big.Int) string {
	if n == nil || n.Sign() == 0 {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
