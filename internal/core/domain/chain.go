package domain

import (
	"fmt"
	"time"
)

// Chain identifies one of the two ledgers involved in a swap.
type Chain string

const (
	// ChainSource is the EVM-style chain where the maker locks funds.
	ChainSource Chain = "evm"
	// ChainDestination is the Sui-style chain where resolvers lock funds for
	// the receiver.
	ChainDestination Chain = "sui"
)

func (c Chain) IsValid() bool {
	return c == ChainSource || c == ChainDestination
}

// TimeUnit returns the native time unit of the chain's time locks.
func (c Chain) TimeUnit() TimeUnit {
	if c == ChainDestination {
		return Milliseconds
	}
	return Seconds
}

// TimeUnit is the unit in which a chain expresses absolute time locks.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Milliseconds
)

func (u TimeUnit) String() string {
	if u == Milliseconds {
		return "ms"
	}
	return "s"
}

// ToTime converts a time lock expressed in this unit into a time.Time.
func (u TimeUnit) ToTime(lock int64) time.Time {
	if u == Milliseconds {
		return time.UnixMilli(lock)
	}
	return time.Unix(lock, 0)
}

// FromTime converts t into a time lock expressed in this unit.
func (u TimeUnit) FromTime(t time.Time) int64 {
	if u == Milliseconds {
		return t.UnixMilli()
	}
	return t.Unix()
}

// Asset is a token on one chain.
type Asset struct {
	Chain    Chain
	ChainID  string
	Address  string
	Symbol   string
	Decimals uint8
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return fmt.Sprintf("%s:%s", a.Chain, a.Symbol)
	}
	return fmt.Sprintf("%s:%s", a.Chain, a.Address)
}
