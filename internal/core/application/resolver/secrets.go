package resolver

import (
	"sync"

	"github.com/tdex-network/xswapd/pkg/htlc"
)

// secretBox keeps the secrets received from the order book and lets order
// handlers wait for them. Along with a secret the maker may publish the
// destination escrows it accepted.
type secretBox struct {
	lock     sync.Mutex
	secrets  map[htlc.HashLock]htlc.Secret
	accepted map[htlc.HashLock]map[string]struct{}
	waiters  map[htlc.HashLock]chan struct{}
}

func newSecretBox() *secretBox {
	return &secretBox{
		secrets:  make(map[htlc.HashLock]htlc.Secret),
		accepted: make(map[htlc.HashLock]map[string]struct{}),
		waiters:  make(map[htlc.HashLock]chan struct{}),
	}
}

// accept records the destination escrows accepted by the maker along with
// a secret published for the hash lock. An empty list accepts every escrow.
// It must be called before put for the same release.
func (b *secretBox) accept(hashLock htlc.HashLock, secret htlc.Secret, escrowIDs []string) {
	if !htlc.Verify(secret, hashLock) {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	var ids map[string]struct{}
	if len(escrowIDs) > 0 {
		ids = make(map[string]struct{}, len(escrowIDs))
		for _, id := range escrowIDs {
			ids[id] = struct{}{}
		}
	}
	b.accepted[hashLock] = ids
}

// acceptance returns whether escrowID is accepted for the hash lock. known
// is false until a release for the hash lock comes from the order book.
func (b *secretBox) acceptance(hashLock htlc.HashLock, escrowID string) (accepted, known bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ids, known := b.accepted[hashLock]
	if !known {
		return false, false
	}
	if ids == nil {
		return true, true
	}
	_, accepted = ids[escrowID]
	return accepted, true
}

// put stores the secret if it opens the hash lock.
func (b *secretBox) put(hashLock htlc.HashLock, secret htlc.Secret) bool {
	if !htlc.Verify(secret, hashLock) {
		return false
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.secrets[hashLock]; ok {
		return true
	}
	b.secrets[hashLock] = secret
	if ch, ok := b.waiters[hashLock]; ok {
		close(ch)
		delete(b.waiters, hashLock)
	}
	return true
}

func (b *secretBox) get(hashLock htlc.HashLock) (htlc.Secret, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.secrets[hashLock]
	return s, ok
}

// wait returns a channel closed once the secret of hashLock is known.
func (b *secretBox) wait(hashLock htlc.HashLock) <-chan struct{} {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.secrets[hashLock]; ok {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch, ok := b.waiters[hashLock]
	if !ok {
		ch = make(chan struct{})
		b.waiters[hashLock] = ch
	}
	return ch
}
