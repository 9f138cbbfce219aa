package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/redisStore"
	"github.com/akolanti/rightsbot/internal/data/store"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func transcriptStores(t *testing.T) map[string]jobModel.TranscriptStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]jobModel.TranscriptStore{
		"redis":  store.TestTranscriptStore(redisStore.NewTestStore(client)),
		"memory": store.InitTranscriptStore(),
	}
}

func TestTranscriptStore_Ordering(t *testing.T) {
	for name, s := range transcriptStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "transcript-trace")
			chatID := "chat-" + name

			if s.ValidateChatId(ctx, chatID) {
				t.Fatal("chat should not exist before init")
			}
			if err := s.InitNewChat(ctx, chatID, commonModels.NewMessage(commonModels.RoleAssistant, config.Greeting)); err != nil {
				t.Fatalf("InitNewChat failed: %v", err)
			}
			if !s.ValidateChatId(ctx, chatID) {
				t.Fatal("chat should exist after init")
			}

			turns := []commonModels.Message{
				commonModels.NewMessage(commonModels.RoleUser, "What is section 302?"),
				commonModels.NewMessage(commonModels.RoleAssistant, "Section 302 deals with murder."),
				commonModels.NewMessage(commonModels.RoleUser, "And bail?"),
				commonModels.NewMessage(commonModels.RoleAssistant, "Bail is governed by the CrPC."),
			}
			for _, m := range turns {
				if err := s.AppendMessage(ctx, chatID, m); err != nil {
					t.Fatalf("AppendMessage failed: %v", err)
				}
			}

			transcript, err := s.GetTranscript(ctx, chatID)
			if err != nil {
				t.Fatalf("GetTranscript failed: %v", err)
			}
			if len(transcript) != len(turns)+1 {
				t.Fatalf("expected %d messages, got %d", len(turns)+1, len(transcript))
			}
			if transcript[0].Role != commonModels.RoleAssistant || transcript[0].Content != config.Greeting {
				t.Errorf("first message should be the greeting, got %+v", transcript[0])
			}
			for i, m := range turns {
				if transcript[i+1].Content != m.Content || transcript[i+1].Role != m.Role {
					t.Errorf("message %d out of order: got %+v want %+v", i+1, transcript[i+1], m)
				}
			}

			last2, err := s.GetMessageHistory(ctx, chatID, 2)
			if err != nil {
				t.Fatalf("GetMessageHistory failed: %v", err)
			}
			if len(last2) != 2 || last2[0].Content != "And bail?" || last2[1].Content != "Bail is governed by the CrPC." {
				t.Errorf("unexpected tail of history: %+v", last2)
			}
		})
	}
}

func TestTranscriptStore_UnknownChat(t *testing.T) {
	for name, s := range transcriptStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.AppendMessage(context.Background(), "ghost", commonModels.NewMessage(commonModels.RoleUser, "hi"))
			if !errors.Is(err, store.ErrUnknownChat) {
				t.Errorf("expected ErrUnknownChat, got %v", err)
			}
		})
	}
}

func TestTranscriptStore_TurnLock(t *testing.T) {
	for name, s := range transcriptStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			chatID := "locked-" + name
			if err := s.InitNewChat(ctx, chatID, commonModels.NewMessage(commonModels.RoleAssistant, "hello")); err != nil {
				t.Fatalf("InitNewChat failed: %v", err)
			}

			ok, err := s.TryBeginTurn(ctx, chatID, "job-1")
			if err != nil || !ok {
				t.Fatalf("first turn should start, got ok=%v err=%v", ok, err)
			}
			if !s.IsTurnPending(ctx, chatID) {
				t.Error("turn should be pending")
			}
			ok, err = s.TryBeginTurn(ctx, chatID, "job-2")
			if err != nil || ok {
				t.Fatalf("second turn should be rejected while pending, got ok=%v err=%v", ok, err)
			}
			if held, _ := s.RefreshTurn(ctx, chatID, "job-2", config.TurnRunTTL); held {
				t.Error("only the owner may refresh the lock")
			}
			if err = s.EndTurn(ctx, chatID, "job-2"); err != nil {
				t.Fatalf("EndTurn failed: %v", err)
			}
			if !s.IsTurnPending(ctx, chatID) {
				t.Fatal("a release by another job must leave the turn pending")
			}
			if held, err := s.RefreshTurn(ctx, chatID, "job-1", config.TurnRunTTL); err != nil || !held {
				t.Errorf("owner refresh should succeed, got held=%v err=%v", held, err)
			}
			if err = s.EndTurn(ctx, chatID, "job-1"); err != nil {
				t.Fatalf("EndTurn failed: %v", err)
			}
			if s.IsTurnPending(ctx, chatID) {
				t.Error("turn should be released")
			}
			ok, _ = s.TryBeginTurn(ctx, chatID, "job-3")
			if !ok {
				t.Error("turn should start again after EndTurn")
			}
		})
	}
}

func TestRedisTranscriptStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := store.TestTranscriptStore(redisStore.NewTestStore(client))
	ctx := context.Background()

	_ = s.InitNewChat(ctx, "aging", commonModels.NewMessage(commonModels.RoleAssistant, "hello"))
	mr.FastForward(config.RedisTranscriptStoreTTL - time.Hour)
	_ = s.AppendMessage(ctx, "aging", commonModels.NewMessage(commonModels.RoleUser, "still here"))
	mr.FastForward(2 * time.Hour)
	if !s.ValidateChatId(ctx, "aging") {
		t.Fatal("appending should refresh the transcript ttl")
	}

	mr.FastForward(config.RedisTranscriptStoreTTL + time.Second)
	if s.ValidateChatId(ctx, "aging") {
		t.Error("transcript should expire after its ttl")
	}
}

func TestRedisTranscriptStore_TurnLockOwnership(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := store.TestTranscriptStore(redisStore.NewTestStore(client))
	ctx := context.Background()

	_ = s.InitNewChat(ctx, "busy", commonModels.NewMessage(commonModels.RoleAssistant, "hello"))
	if ok, _ := s.TryBeginTurn(ctx, "busy", "job-1"); !ok {
		t.Fatal("first turn should start")
	}
	if got := mr.TTL("turn:busy"); got != config.TurnLockTTL {
		t.Errorf("queued turn ttl = %v, want %v", got, config.TurnLockTTL)
	}

	// a full queue drained by the maximum number of workers must not outlive the lock
	worstWait := time.Duration(config.BufferLimit/config.MaxWorkerCount+1) * config.JobTimeout
	mr.FastForward(worstWait)
	if ok, _ := s.TryBeginTurn(ctx, "busy", "job-2"); ok {
		t.Fatal("lock expired while its turn could still be queued")
	}

	if held, _ := s.RefreshTurn(ctx, "busy", "job-1", config.TurnRunTTL); !held {
		t.Fatal("the owner should be able to refresh on pickup")
	}
	if got := mr.TTL("turn:busy"); got != config.TurnRunTTL {
		t.Errorf("running turn ttl = %v, want %v", got, config.TurnRunTTL)
	}

	// the lock lapses anyway, a newer turn takes it and the late release must not free it
	mr.FastForward(config.TurnRunTTL + time.Second)
	if ok, _ := s.TryBeginTurn(ctx, "busy", "job-2"); !ok {
		t.Fatal("expired lock should be free")
	}
	if err := s.EndTurn(ctx, "busy", "job-1"); err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if !s.IsTurnPending(ctx, "busy") {
		t.Error("the late release of job-1 freed the turn of job-2")
	}
	if got, _ := mr.Get("turn:busy"); got != "job-2" {
		t.Errorf("lock owner = %q, want job-2", got)
	}
}

func TestInMemoryTranscriptStore_Expiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := store.NewInMemoryTranscriptStore(24*time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	_ = s.InitNewChat(ctx, "aging", commonModels.NewMessage(commonModels.RoleAssistant, "hello"))
	clock = clock.Add(23 * time.Hour)
	if err := s.AppendMessage(ctx, "aging", commonModels.NewMessage(commonModels.RoleUser, "still here")); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	clock = clock.Add(2 * time.Hour)
	if !s.ValidateChatId(ctx, "aging") {
		t.Fatal("appending should refresh the transcript ttl")
	}

	clock = clock.Add(24 * time.Hour)
	if s.ValidateChatId(ctx, "aging") {
		t.Error("transcript should expire after its ttl")
	}
	if history, _ := s.GetTranscript(ctx, "aging"); len(history) != 0 {
		t.Errorf("expired transcript should read empty, got %+v", history)
	}
	err := s.AppendMessage(ctx, "aging", commonModels.NewMessage(commonModels.RoleUser, "too late"))
	if !errors.Is(err, store.ErrUnknownChat) {
		t.Errorf("expected ErrUnknownChat on an expired transcript, got %v", err)
	}

	for i := 0; i < 64; i++ {
		_ = s.InitNewChat(ctx, fmt.Sprintf("fresh-%d", i), commonModels.NewMessage(commonModels.RoleAssistant, "hello"))
	}
	if got := s.Len(); got != 64 {
		t.Errorf("expected the expired transcript to be swept, store holds %d", got)
	}
}

func TestInMemoryTranscriptStore_TurnLockExpiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := store.NewInMemoryTranscriptStore(24*time.Hour, func() time.Time { return clock })
	ctx := context.Background()
	_ = s.InitNewChat(ctx, "busy", commonModels.NewMessage(commonModels.RoleAssistant, "hello"))

	_, _ = s.TryBeginTurn(ctx, "busy", "job-1")
	clock = clock.Add(config.TurnLockTTL - time.Second)
	if ok, _ := s.TryBeginTurn(ctx, "busy", "job-2"); ok {
		t.Fatal("queued turn lost its lock early")
	}
	_, _ = s.RefreshTurn(ctx, "busy", "job-1", config.TurnRunTTL)
	clock = clock.Add(config.TurnRunTTL)
	if ok, _ := s.TryBeginTurn(ctx, "busy", "job-2"); !ok {
		t.Fatal("expired lock should be free")
	}
	_ = s.EndTurn(ctx, "busy", "job-1")
	if !s.IsTurnPending(ctx, "busy") {
		t.Error("the late release of job-1 freed the turn of job-2")
	}
}
