package sui

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// u64 decodes Move integers that the node returns either as JSON strings
// or as JSON numbers.
type u64 string

func (n *u64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*n = "0"
		return nil
	}
	if _, ok := new(big.Int).SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer %s", string(b))
	}
	*n = u64(s)
	return nil
}

func (n u64) Big() *big.Int {
	v, ok := new(big.Int).SetString(string(n), 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func (n u64) Int64() int64 {
	v, _ := strconv.ParseInt(string(n), 10, 64)
	return v
}

// byteVector decodes a Move vector<u8> returned either as an array of
// numbers, a hex string or a base64 string.
type byteVector []byte

func (v *byteVector) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var nums []uint8
		if err := json.Unmarshal(b, &nums); err != nil {
			return err
		}
		*v = nums
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.HasPrefix(s, "0x") {
		buf, err := hex.DecodeString(s[2:])
		if err != nil {
			return err
		}
		*v = buf
		return nil
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	*v = buf
	return nil
}

type objectResponse struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Content  *struct {
			DataType string       `json:"dataType"`
			Type     string       `json:"type"`
			Fields   escrowFields `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type escrowFields struct {
	Creator     string     `json:"creator"`
	Beneficiary string     `json:"beneficiary"`
	HashLock    byteVector `json:"hash_lock"`
	TimeLock    u64        `json:"time_lock"`
	Total       u64        `json:"total"`
	Remaining   u64        `json:"remaining"`
	ClaimAmount u64        `json:"claim_amount"`
	OrderID     byteVector `json:"order_id"`
	Status      u64        `json:"status"`
	Secret      byteVector `json:"secret"`
	CreatedAt   u64        `json:"created_at"`
	Fills       []struct {
		Fields struct {
			Filler    string `json:"filler"`
			Amount    u64    `json:"amount"`
			Timestamp u64    `json:"timestamp_ms"`
		} `json:"fields"`
	} `json:"fills"`
}

type eventPage struct {
	Data []struct {
		ID struct {
			TxDigest string `json:"txDigest"`
		} `json:"id"`
		ParsedJSON struct {
			EscrowID string     `json:"escrow_id"`
			HashLock byteVector `json:"hash_lock"`
		} `json:"parsedJson"`
	} `json:"data"`
	NextCursor  json.RawMessage `json:"nextCursor"`
	HasNextPage bool            `json:"hasNextPage"`
}

type txBlock struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
	ObjectChanges []struct {
		Type       string `json:"type"`
		ObjectType string `json:"objectType"`
		ObjectID   string `json:"objectId"`
	} `json:"objectChanges"`
}

type balanceResponse struct {
	TotalBalance u64 `json:"totalBalance"`
}
