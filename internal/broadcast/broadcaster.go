// Package broadcast fans live session events out to display and monitor
// subscribers. Sends never block the mint or accept paths: every subscriber
// has a bounded queue and overflow drops the oldest update.
package broadcast

import (
	"sync"

	"rollcall/pkg/types"
)

// DefaultQueueSize bounds each subscriber's outbound queue.
const DefaultQueueSize = 100

// TokenSub receives every token minted for one class while subscribed.
type TokenSub struct {
	C       chan types.ActiveToken
	classID string
}

// MonitorSub receives the checked-in roster whenever its membership changes.
type MonitorSub struct {
	C       chan types.PresenceUpdate
	classID string
}

// Broadcaster is the per-process fanout registry. It is instantiated once at
// startup and injected wherever events are published; no package-level state.
type Broadcaster struct {
	mu       sync.RWMutex
	queue    int
	tokens   map[string]map[*TokenSub]struct{}
	monitors map[string]map[*MonitorSub]struct{}
}

func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		queue:    queueSize,
		tokens:   make(map[string]map[*TokenSub]struct{}),
		monitors: make(map[string]map[*MonitorSub]struct{}),
	}
}

// SubscribeTokens attaches a display subscriber to the class token stream.
// Subscribers connecting mid-session receive only future tokens.
func (b *Broadcaster) SubscribeTokens(classID string) *TokenSub {
	sub := &TokenSub{C: make(chan types.ActiveToken, b.queue), classID: classID}
	b.mu.Lock()
	if b.tokens[classID] == nil {
		b.tokens[classID] = make(map[*TokenSub]struct{})
	}
	b.tokens[classID][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// UnsubscribeTokens detaches the subscriber and closes its channel.
func (b *Broadcaster) UnsubscribeTokens(sub *TokenSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.tokens[sub.classID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.tokens, sub.classID)
	}
	close(sub.C)
}

// SubscribeMonitor attaches a monitor subscriber to the class presence stream.
func (b *Broadcaster) SubscribeMonitor(classID string) *MonitorSub {
	sub := &MonitorSub{C: make(chan types.PresenceUpdate, b.queue), classID: classID}
	b.mu.Lock()
	if b.monitors[classID] == nil {
		b.monitors[classID] = make(map[*MonitorSub]struct{})
	}
	b.monitors[classID][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// UnsubscribeMonitor detaches the subscriber and closes its channel.
func (b *Broadcaster) UnsubscribeMonitor(sub *MonitorSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.monitors[sub.classID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.monitors, sub.classID)
	}
	close(sub.C)
}

// PublishToken delivers a freshly minted token to every display subscriber.
func (b *Broadcaster) PublishToken(classID string, token types.ActiveToken) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.tokens[classID] {
		select {
		case sub.C <- token:
		default:
			// Slow subscriber: drop its oldest token to make room.
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- token:
			default:
			}
		}
	}
}

// PublishPresence delivers the roster to every monitor subscriber. Callers
// invoke this only when membership actually changed, so subscribers never
// see redundant pushes.
func (b *Broadcaster) PublishPresence(classID string, update types.PresenceUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.monitors[classID] {
		select {
		case sub.C <- update:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- update:
			default:
			}
		}
	}
}

// Stats reports subscriber counts per stream, for the health endpoint.
func (b *Broadcaster) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	displays, monitors := 0, 0
	for _, subs := range b.tokens {
		displays += len(subs)
	}
	for _, subs := range b.monitors {
		monitors += len(subs)
	}
	return map[string]int{
		"display_subscribers": displays,
		"monitor_subscribers": monitors,
	}
}
