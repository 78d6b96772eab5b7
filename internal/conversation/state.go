package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// Step is where a conversation currently waits.
type Step string

const (
	StepIdle                    Step = "idle"
	StepAwaitingDate            Step = "awaiting_date"
	StepAwaitingTime            Step = "awaiting_time"
	StepAwaitingCancelSelection Step = "awaiting_cancel_selection"
	StepAwaitingAnnouncement    Step = "awaiting_announcement"
	StepAwaitingDocument        Step = "awaiting_document"
	StepAwaitingDocSelection    Step = "awaiting_doc_selection"
)

// State is the conversation state of one user in one chat.  Date is only set while
// awaiting a time; Selection only while awaiting a cancel choice.
type State struct {
	Step      Step            `json:"step"`
	Date      string          `json:"date,omitempty"`
	Selection []model.Booking `json:"selection,omitempty"`
}

var idle = State{Step: StepIdle}

// Key scopes a conversation to one user in one chat, so a user talking to
// the bot privately and in the group has two independent conversations.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

// StateStore keeps conversation state between messages.  A missing or
// expired entry reads as idle.
type StateStore interface {
	Get(ctx context.Context, k Key) (State, error)
	Put(ctx context.Context, k Key, st State) error
	Clear(ctx context.Context, k Key) error
}

type memoryEntry struct {
	st      State
	expires time.Time
}

// MemoryStateStore is the single-process store.
type MemoryStateStore struct {
	mu  sync.Mutex
	m   map[Key]memoryEntry
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStateStore keeps entries for ttl; ttl <= 0 keeps them forever.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{m: make(map[Key]memoryEntry), ttl: ttl, now: time.Now}
}

func (s *MemoryStateStore) Get(_ context.Context, k Key) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[k]
	if !ok {
		return idle, nil
	}
	if s.ttl > 0 && s.now().After(e.expires) {
		delete(s.m, k)
		return idle, nil
	}
	return e.st, nil
}

func (s *MemoryStateStore) Put(_ context.Context, k Key, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = memoryEntry{st: st, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStateStore) Clear(_ context.Context, k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
	return nil
}

// RedisStateStore keeps state as JSON under prefix:<chatID>:<userID> with a TTL so
// abandoned conversations expire and several bot replicas share state.
type RedisStateStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStateStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStateStore) key(k Key) string {
	return s.prefix + ":" + k.String()
}

func (s *RedisStateStore) Get(ctx context.Context, k Key) (State, error) {
	raw, err := s.rdb.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idle, nil
	}
	if err != nil {
		return idle, fmt.Errorf("get conversation state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return idle, fmt.Errorf("decode conversation state: %w", err)
	}
	return st, nil
}

func (s *RedisStateStore) Put(ctx context.Context, k Key, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(k), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put conversation state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Clear(ctx context.Context, k Key) error {
	if err := s.rdb.Del(ctx, s.key(k)).Err(); err != nil {
		return fmt.Errorf("clear conversation state: %w", err)
	}
	return nil
}
