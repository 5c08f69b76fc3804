package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/mentor-backend/internal/shared"
)

const recordTTL = 24 * time.Hour

// LiveStore holds registry entries for sessions that have started but not
// yet ended. Create returns shared.ErrConflict when the id is already
// registered.
type LiveStore interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*Record, error)
}

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	rec.Status = StatusActive
	rec.StartedAt = time.Now()
	rec.LastActiveAt = rec.StartedAt

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, rec.RedisKey(), data, recordTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrConflict
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, "mentor:session:"+id).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Update(ctx context.Context, rec *Record) error {
	rec.LastActiveAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, rec.RedisKey(), data, recordTTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, "mentor:session:"+id).Err()
}

func (s *RedisStore) ListActive(ctx context.Context) ([]*Record, error) {
	keys, err := s.redis.Keys(ctx, "mentor:session:*").Result()
	if err != nil {
		return nil, err
	}

	var records []*Record
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Status == StatusActive {
			records = append(records, &rec)
		}
	}
	return records, nil
}

// MemoryStore backs deployments without Redis and keeps tests hermetic.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	rec.Status = StatusActive
	rec.StartedAt = time.Now()
	rec.LastActiveAt = rec.StartedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return shared.ErrConflict
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, rec *Record) error {
	rec.LastActiveAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []*Record
	for _, rec := range s.records {
		if rec.Status != StatusActive {
			continue
		}
		cp := *rec
		records = append(records, &cp)
	}
	return records, nil
}
