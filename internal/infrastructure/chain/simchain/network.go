// Package simchain is an in-memory ledger enforcing the escrow rules of both
// chains. Mutations are serialized under a single lock like blocks would.
// It backs the package tests and the sim network mode of the daemons.
package simchain

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/evm"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/sui"
	"golang.org/x/crypto/sha3"
)

// Op identifies a class of calls for fault injection.
type Op int

const (
	OpCreate Op = iota
	OpFill
	OpRefund
	OpRead
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpFill:
		return "fill"
	case OpRefund:
		return "refund"
	default:
		return "read"
	}
}

type faultKey struct {
	chain domain.Chain
	op    Op
}

type fault struct {
	err error
	// applied faults execute the call and lose the response.
	applied bool
}

type tx struct {
	status         domain.TxStatus
	pendingQueries int
}

type ledger struct {
	escrows  map[string]*domain.Escrow
	order    []string
	balances map[string]*big.Int
	txs      map[string]*tx
}

func newLedger() *ledger {
	return &ledger{
		escrows:  make(map[string]*domain.Escrow),
		order:    make([]string, 0),
		balances: make(map[string]*big.Int),
		txs:      make(map[string]*tx),
	}
}

type Option func(*Network)

// WithClock sets the time source of the network.
func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		n.now = now
	}
}

// Network holds one ledger per chain.
type Network struct {
	lock    sync.Mutex
	now     func() time.Time
	ledgers map[domain.Chain]*ledger
	seq     uint64
	faults  map[faultKey][]fault
	pending int
}

func NewNetwork(opts ...Option) *Network {
	n := &Network{
		now: time.Now,
		ledgers: map[domain.Chain]*ledger{
			domain.ChainSource:      newLedger(),
			domain.ChainDestination: newLedger(),
		},
		faults: make(map[faultKey][]fault),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Now returns the current network time.
func (n *Network) Now() time.Time {
	return n.now()
}

// Client returns an EscrowClient for chain signing as address.
func (n *Network) Client(chain domain.Chain, address string) (ports.EscrowClient, error) {
	if !chain.IsValid() {
		return nil, fmt.Errorf("unknown chain %s", chain)
	}
	if err := validateAddress(chain, address); err != nil {
		return nil, err
	}
	return &client{network: n, chain: chain, address: address}, nil
}

// Fund credits amount to address on chain.
func (n *Network) Fund(chain domain.Chain, address string, amount *big.Int) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.credit(chain, address, amount)
}

// BalanceOf returns the balance of address on chain.
func (n *Network) BalanceOf(chain domain.Chain, address string) *big.Int {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.balanceOf(chain, address)
}

// Escrows returns a copy of all escrows of chain in creation order.
func (n *Network) Escrows(chain domain.Chain) []*domain.Escrow {
	n.lock.Lock()
	defer n.lock.Unlock()

	l := n.ledgers[chain]
	escrows := make([]*domain.Escrow, 0, len(l.order))
	for _, id := range l.order {
		escrows = append(escrows, l.escrows[id].Clone())
	}
	return escrows
}

// FailNext makes the next call of op on chain fail with err without being
// executed.
func (n *Network) FailNext(chain domain.Chain, op Op, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	key := faultKey{chain, op}
	n.faults[key] = append(n.faults[key], fault{err: err})
}

// LoseNextResponse makes the next call of op on chain be executed while its
// caller receives a timeout, as if the response got lost on the way back.
func (n *Network) LoseNextResponse(chain domain.Chain, op Op) {
	n.lock.Lock()
	defer n.lock.Unlock()

	key := faultKey{chain, op}
	n.faults[key] = append(n.faults[key], fault{err: domain.ErrRPCTimeout, applied: true})
}

// DelayReceipts makes the receipts of the next count mutating calls pending.
// Their status turns confirmed after being queried once.
func (n *Network) DelayReceipts(count int) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.pending += count
}

func (n *Network) popFault(chain domain.Chain, op Op) (fault, bool) {
	key := faultKey{chain, op}
	faults := n.faults[key]
	if len(faults) <= 0 {
		return fault{}, false
	}
	n.faults[key] = faults[1:]
	return faults[0], true
}

func (n *Network) balanceOf(chain domain.Chain, address string) *big.Int {
	if b, ok := n.ledgers[chain].balances[address]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (n *Network) credit(chain domain.Chain, address string, amount *big.Int) {
	l := n.ledgers[chain]
	b, ok := l.balances[address]
	if !ok {
		b = new(big.Int)
	}
	l.balances[address] = new(big.Int).Add(b, amount)
}

func (n *Network) debit(chain domain.Chain, address string, amount *big.Int) error {
	balance := n.balanceOf(chain, address)
	if balance.Cmp(amount) < 0 {
		return domain.ErrInsufficientFunds
	}
	n.ledgers[chain].balances[address] = balance.Sub(balance, amount)
	return nil
}

// nextID returns a fresh 32-byte hex identifier.
func (n *Network) nextID(chain domain.Chain, kind string) string {
	n.seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n.seq)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(string(chain) + kind))
	h.Write(buf)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func (n *Network) recordTx(chain domain.Chain) (string, domain.TxStatus) {
	hash := n.nextID(chain, "tx")
	t := &tx{status: domain.TxStatusConfirmed}
	if n.pending > 0 {
		n.pending--
		t.pendingQueries = 1
	}
	n.ledgers[chain].txs[hash] = t
	if t.pendingQueries > 0 {
		return hash, domain.TxStatusPending
	}
	return hash, t.status
}

func validateAddress(chain domain.Chain, address string) error {
	if chain == domain.ChainDestination {
		return sui.ValidateAddress(address)
	}
	return evm.ValidateAddress(address)
}

// NewAddress returns a random valid address for chain.
func NewAddress(chain domain.Chain) string {
	size := 20
	if chain == domain.ChainDestination {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	addr := "0x" + hex.EncodeToString(buf)
	if chain == domain.ChainSource {
		return evm.ChecksumAddress(addr)
	}
	return addr
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	lock sync.Mutex
	now  time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}
