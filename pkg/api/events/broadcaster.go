// Package events fans memvault activity out to admin feed subscribers.
package events

import (
	"cmp"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memvault/memvault/pkg/compaction"
	"github.com/memvault/memvault/pkg/dedup"
	"github.com/memvault/memvault/pkg/ingest"
)

// Event types published on the admin feed.
const (
	TypeIngested         = "ingest.committed"
	TypeSessionCompacted = "session.compacted"
	TypeDedupScanned     = "dedup.scanned"
	TypeBackfilled       = "embeddings.backfilled"
	TypeItemsDeleted     = "items.deleted"
	TypeKeyCreated       = "api_key.created"
	TypeKeyRevoked       = "api_key.revoked"
)

// Event is one feed message. Namespace is empty for global events.
type Event struct {
	Type      string    `json:"type"`
	Namespace string    `json:"namespace,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// defaultSubscriberBuffer applies when Subscribe is given no buffer size.
const defaultSubscriberBuffer = 16

// Broadcaster delivers events to in-process subscribers without blocking
// publishers. An event that does not fit a subscriber's buffer is dropped
// for that subscriber and counted.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	stopped bool
	dropped atomic.Uint64
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a buffered subscription. After Close it returns a
// closed channel.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	ch := make(chan Event, cmp.Or(max(buffer, 0), defaultSubscriberBuffer))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		close(ch)
	} else {
		b.subs[ch] = struct{}{}
	}
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown
// channels are ignored.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were lost to full buffers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Broadcast stamps event, if needed, and offers it to every subscriber.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Ingested publishes a committed ingest batch. Its signature matches
// ingest.OnIngested.
func (b *Broadcaster) Ingested(_ context.Context, r *ingest.Result) {
	b.Broadcast(Event{Type: TypeIngested, Namespace: r.Namespace, Payload: r.Counts})
}

// Compacted publishes a compacted session. Its signature matches
// compaction.OnCompacted.
func (b *Broadcaster) Compacted(_ context.Context, r *compaction.Result) {
	b.Broadcast(Event{Type: TypeSessionCompacted, Namespace: r.Namespace, Payload: r})
}

// DedupScanned publishes a dedup report without its group listing.
func (b *Broadcaster) DedupScanned(r *dedup.Report) {
	b.Broadcast(Event{
		Type:      TypeDedupScanned,
		Namespace: r.Namespace,
		Payload: map[string]any{
			"dry_run":          r.DryRun,
			"scanned":          r.Scanned,
			"duplicate_groups": r.DuplicateGroups,
			"deleted":          r.Deleted,
		},
	})
}

// Backfilled publishes a backfill run.
func (b *Broadcaster) Backfilled(r *ingest.BackfillResult) {
	b.Broadcast(Event{Type: TypeBackfilled, Namespace: r.Namespace, Payload: r})
}

// ItemsDeleted publishes an explicit deletion.
func (b *Broadcaster) ItemsDeleted(namespace string, deleted int) {
	b.Broadcast(Event{Type: TypeItemsDeleted, Namespace: namespace, Payload: map[string]int{"deleted": deleted}})
}

// KeyCreated publishes key metadata. The secret never reaches the feed.
func (b *Broadcaster) KeyCreated(id, name, role string, namespaces []string) {
	b.Broadcast(Event{
		Type: TypeKeyCreated,
		Payload: map[string]any{
			"id":         id,
			"name":       name,
			"role":       role,
			"namespaces": namespaces,
		},
	})
}

// KeyRevoked publishes a revocation.
func (b *Broadcaster) KeyRevoked(id string) {
	b.Broadcast(Event{Type: TypeKeyRevoked, Payload: map[string]string{"id": id}})
}

// Close closes every subscription. Later subscriptions are closed
// immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
