package orchestrator

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
)

const subscriptionBuffer = 64

// logBroker fans out the log entries of swaps to their subscribers. A
// subscriber that cannot keep up is dropped and its channel closed.
type logBroker struct {
	lock sync.Mutex
	subs map[string]map[chan domain.LogEntry]struct{}
}

func newLogBroker() *logBroker {
	return &logBroker{
		subs: make(map[string]map[chan domain.LogEntry]struct{}),
	}
}

func (b *logBroker) subscribe(swapID string) chan domain.LogEntry {
	b.lock.Lock()
	defer b.lock.Unlock()

	ch := make(chan domain.LogEntry, subscriptionBuffer)
	if _, ok := b.subs[swapID]; !ok {
		b.subs[swapID] = make(map[chan domain.LogEntry]struct{})
	}
	b.subs[swapID][ch] = struct{}{}
	return ch
}

func (b *logBroker) unsubscribe(swapID string, ch chan domain.LogEntry) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.remove(swapID, ch)
}

func (b *logBroker) publish(swapID string, entries []domain.LogEntry) {
	if len(entries) <= 0 {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	for ch := range b.subs[swapID] {
		for _, entry := range entries {
			select {
			case ch <- entry:
				continue
			default:
			}
			log.WithField("swap", swapID).Warn(
				"orchestrator: dropping slow log subscriber",
			)
			b.remove(swapID, ch)
			break
		}
	}
}

// closeSwap closes every subscription of a swap that reached a terminal
// status.
func (b *logBroker) closeSwap(swapID string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for ch := range b.subs[swapID] {
		b.remove(swapID, ch)
	}
}

func (b *logBroker) closeAll() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for swapID, subs := range b.subs {
		for ch := range subs {
			b.remove(swapID, ch)
		}
	}
}

func (b *logBroker) remove(swapID string, ch chan domain.LogEntry) {
	subs, ok := b.subs[swapID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) <= 0 {
		delete(b.subs, swapID)
	}
}
