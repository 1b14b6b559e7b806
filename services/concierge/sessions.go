// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package concierge

import (
	"hash/fnv"
	"sync"

	"github.com/AleutianAI/concierge/services/datatypes"
)

const sessionShardCount = 16

// SessionStore keeps per-conversation message history in memory, sharded
// to keep unrelated conversations off the same lock.
//
// # Description
//
//	History lives only for the process lifetime; a restart clears all
//	conversations. Reads hand out copies, so callers can append freely
//	without racing the store.
//
// # Thread Safety
//
// Safe for concurrent use.
type SessionStore struct {
	shards [sessionShardCount]sessionShard
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string][]datatypes.Message
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string][]datatypes.Message)
	}
	return s
}

func (s *SessionStore) shardFor(conversationID string) *sessionShard {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &s.shards[h.Sum32()%sessionShardCount]
}

// History returns a copy of the stored history for the conversation,
// oldest first. Unknown conversations return an empty slice.
func (s *SessionStore) History(conversationID string) []datatypes.Message {
	shard := s.shardFor(conversationID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return datatypes.CloneHistory(shard.sessions[conversationID])
}

// Replace stores the given history for the conversation, overwriting any
// previous value. The slice is copied before storing.
func (s *SessionStore) Replace(conversationID string, history []datatypes.Message) {
	shard := s.shardFor(conversationID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.sessions[conversationID] = datatypes.CloneHistory(history)
}

// Len reports the number of tracked conversations.
func (s *SessionStore) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].sessions)
		s.shards[i].mu.RUnlock()
	}
	return total
}
