package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/redisStore"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var ErrUnknownChat = errors.New("unknown chat id")

const (
	chatKeyPrefix = "chat:"
	turnKeyPrefix = "turn:"
)

type RedisTranscriptStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisTranscriptStore returns nil when redis is unreachable
func GetRedisTranscriptStore(ctx context.Context) *RedisTranscriptStore {
	s := redisStore.GetRedisStore(ctx, config.RedisTranscriptStore)
	if s == nil {
		return nil
	}
	return &RedisTranscriptStore{
		store:  s,
		logger: logger_i.NewLogger("TranscriptStore"),
	}
}

func TestTranscriptStore(store *redisStore.Store) *RedisTranscriptStore {
	return &RedisTranscriptStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}

func (s *RedisTranscriptStore) ValidateChatId(ctx context.Context, chatId string) bool {
	log := s.logger.WithTrace(ctx).With("chatId", chatId)
	log.Debug("validating chatId")
	isFound, err := s.store.Exists(ctx, chatKeyPrefix+chatId)
	if err != nil {
		log.Error("Failed to check if chatId exists", "err", err)
		return false
	}
	return isFound
}

func (s *RedisTranscriptStore) InitNewChat(ctx context.Context, id string, greeting commonModels.Message) error {
	log := s.logger.WithTrace(ctx).With("chatId", id)
	log.Debug("Initializing new chat")
	if err := s.store.Del(ctx, chatKeyPrefix+id, turnKeyPrefix+id); err != nil {
		log.Error("Error resetting chat", "error", err)
		return err
	}
	return s.push(ctx, id, greeting)
}

func (s *RedisTranscriptStore) AppendMessage(ctx context.Context, id string, message commonModels.Message) error {
	log := s.logger.WithTrace(ctx).With("chatId", id)
	if !s.ValidateChatId(ctx, id) {
		log.Error("Failed validation before saving", "err", ErrUnknownChat)
		return ErrUnknownChat
	}
	return s.push(ctx, id, message)
}

func (s *RedisTranscriptStore) push(ctx context.Context, id string, message commonModels.Message) error {
	log := s.logger.WithTrace(ctx).With("chatId", id)
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err = s.store.ListPush(ctx, chatKeyPrefix+id, data); err != nil {
		log.Error("error saving message", "error", err)
		return err
	}
	if err = s.store.Expire(ctx, chatKeyPrefix+id, config.RedisTranscriptStoreTTL); err != nil {
		log.Warn("could not refresh transcript ttl", "error", err)
	}
	log.Debug("Saved message", "role", message.Role)
	return nil
}

func (s *RedisTranscriptStore) GetTranscript(ctx context.Context, id string) ([]commonModels.Message, error) {
	return s.GetMessageHistory(ctx, id, 0)
}

// GetMessageHistory returns the newest limit messages in chronological order, limit <= 0 means all
func (s *RedisTranscriptStore) GetMessageHistory(ctx context.Context, chatId string, limit int) ([]commonModels.Message, error) {
	log := s.logger.WithTrace(ctx).With("chatId", chatId)
	log.Debug("Getting message history", "limit", limit)

	res, err := s.store.ListGetLast(ctx, chatKeyPrefix+chatId, int64(limit))
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}

	messages := make([]commonModels.Message, 0, len(res))
	for _, raw := range res {
		var m commonModels.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			log.Error("Skipping unreadable message", "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// TryBeginTurn stores owner as the lock value so a late EndTurn cannot release a newer turn
func (s *RedisTranscriptStore) TryBeginTurn(ctx context.Context, id string, owner string) (bool, error) {
	return s.store.SetIfAbsent(ctx, turnKeyPrefix+id, owner, config.TurnLockTTL)
}

func (s *RedisTranscriptStore) RefreshTurn(ctx context.Context, id string, owner string, ttl time.Duration) (bool, error) {
	return s.store.ExpireIfValue(ctx, turnKeyPrefix+id, owner, ttl)
}

func (s *RedisTranscriptStore) EndTurn(ctx context.Context, id string, owner string) error {
	released, err := s.store.DelIfValue(ctx, turnKeyPrefix+id, owner)
	if err != nil {
		return err
	}
	if !released {
		s.logger.WithTrace(ctx).Warn("Turn lock was no longer held", "chatId", id, "owner", owner)
	}
	return nil
}

func (s *RedisTranscriptStore) IsTurnPending(ctx context.Context, id string) bool {
	pending, err := s.store.Exists(ctx, turnKeyPrefix+id)
	if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read turn lock", "chatId", id, "error", err)
		return false
	}
	return pending
}
