package flow

import (
	"sync"

	"github.com/google/uuid"
)

// conversationLocks serializes processing per conversation so concurrent
// webhooks for the same client cannot interleave read-extract-finalize.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock acquires the lock for a conversation and returns its release func.
func (l *conversationLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
