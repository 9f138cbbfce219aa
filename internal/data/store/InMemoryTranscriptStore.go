package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

type storedChat struct {
	messages  []commonModels.Message
	expiresAt time.Time
}

type turnLock struct {
	owner     string
	expiresAt time.Time
}

// InMemoryTranscriptStore mirrors the redis transcript store: transcripts expire ttl after
// their last message and turn locks expire like the SETNX keys do
type InMemoryTranscriptStore struct {
	mu      sync.RWMutex
	chats   map[string]storedChat
	turns   map[string]turnLock
	ttl     time.Duration
	appends int
	now     func() time.Time
}

func InitTranscriptStore() *InMemoryTranscriptStore {
	return NewInMemoryTranscriptStore(config.RedisTranscriptStoreTTL, time.Now)
}

func NewInMemoryTranscriptStore(ttl time.Duration, now func() time.Time) *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{
		chats: make(map[string]storedChat),
		turns: make(map[string]turnLock),
		ttl:   ttl,
		now:   now,
	}
}

func (store *InMemoryTranscriptStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.mu.RLock()
	defer store.mu.RUnlock()
	_, ok := store.liveChat(chatId, store.now())
	return ok
}

func (store *InMemoryTranscriptStore) InitNewChat(ctx context.Context, id string, greeting commonModels.Message) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	store.chats[id] = storedChat{messages: []commonModels.Message{greeting}, expiresAt: now.Add(store.ttl)}
	delete(store.turns, id)
	store.countAppend(now)
	return nil
}

// AppendMessage refreshes the transcript ttl, as the redis store does on every push
func (store *InMemoryTranscriptStore) AppendMessage(ctx context.Context, id string, message commonModels.Message) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	chat, ok := store.liveChat(id, now)
	if !ok {
		return ErrUnknownChat
	}
	chat.messages = append(chat.messages, message)
	chat.expiresAt = now.Add(store.ttl)
	store.chats[id] = chat
	store.countAppend(now)
	inMemLogger.WithTrace(ctx).Debug("Saved message to transcript", "chatId", id, "role", message.Role)
	return nil
}

func (store *InMemoryTranscriptStore) GetTranscript(ctx context.Context, id string) ([]commonModels.Message, error) {
	return store.GetMessageHistory(ctx, id, 0)
}

func (store *InMemoryTranscriptStore) GetMessageHistory(ctx context.Context, chatId string, limit int) ([]commonModels.Message, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	chat, _ := store.liveChat(chatId, store.now())
	messages := chat.messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]commonModels.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (store *InMemoryTranscriptStore) TryBeginTurn(ctx context.Context, id string, owner string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	if _, held := store.liveTurn(id, now); held {
		return false, nil
	}
	store.turns[id] = turnLock{owner: owner, expiresAt: now.Add(config.TurnLockTTL)}
	return true, nil
}

func (store *InMemoryTranscriptStore) RefreshTurn(ctx context.Context, id string, owner string, ttl time.Duration) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	lock, held := store.liveTurn(id, now)
	if !held || lock.owner != owner {
		return false, nil
	}
	lock.expiresAt = now.Add(ttl)
	store.turns[id] = lock
	return true, nil
}

func (store *InMemoryTranscriptStore) EndTurn(ctx context.Context, id string, owner string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if lock, held := store.liveTurn(id, store.now()); held && lock.owner != owner {
		inMemLogger.WithTrace(ctx).Warn("Turn lock was no longer held", "chatId", id, "owner", owner)
		return nil
	}
	delete(store.turns, id)
	return nil
}

func (store *InMemoryTranscriptStore) IsTurnPending(ctx context.Context, id string) bool {
	store.mu.RLock()
	defer store.mu.RUnlock()
	_, held := store.liveTurn(id, store.now())
	return held
}

// Len counts stored transcripts, including expired ones not yet swept
func (store *InMemoryTranscriptStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.chats)
}

func (store *InMemoryTranscriptStore) liveChat(id string, now time.Time) (storedChat, bool) {
	chat, ok := store.chats[id]
	if !ok || !now.Before(chat.expiresAt) {
		return storedChat{}, false
	}
	return chat, true
}

func (store *InMemoryTranscriptStore) liveTurn(id string, now time.Time) (turnLock, bool) {
	lock, ok := store.turns[id]
	if !ok || !now.Before(lock.expiresAt) {
		return turnLock{}, false
	}
	return lock, true
}

func (store *InMemoryTranscriptStore) countAppend(now time.Time) {
	store.appends++
	if store.appends%sweepEvery != 0 {
		return
	}
	for id, chat := range store.chats {
		if !now.Before(chat.expiresAt) {
			delete(store.chats, id)
		}
	}
	for id, lock := range store.turns {
		if !now.Before(lock.expiresAt) {
			delete(store.turns, id)
		}
	}
}
