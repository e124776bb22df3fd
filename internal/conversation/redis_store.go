package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vocero/platform/logger"
)

const (
	redisStateKeyPrefix = "vocero:state:"
	redisCallKeyPrefix  = "vocero:call:"
	redisStateTTL       = 24 * time.Hour
	redisCallTTL        = 2 * time.Hour
	redisOpTimeout      = 3 * time.Second
)

// RedisStore is a write-through Store: live states stay in process so the
// per-state commit lock keeps its meaning, and every Save serializes to
// redis so sessions survive a restart. The call-id index is mirrored as
// short-lived redis keys for cross-restart callback correlation.
type RedisStore struct {
	mu    sync.RWMutex
	cache map[string]*State
	rdb   *redis.Client
	log   *logger.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, log *logger.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{
		cache: make(map[string]*State),
		rdb:   rdb,
		log:   log,
	}, nil
}

var _ Store = (*RedisStore)(nil)

// Close releases the underlying redis connection.
func (r *RedisStore) Close() error { return r.rdb.Close() }

func (r *RedisStore) Get(userID string) *State {
	r.mu.RLock()
	st, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return st
	}
	return r.loadFromRedis(userID)
}

func (r *RedisStore) GetOrCreate(userID string) *State {
	if st := r.Get(userID); st != nil {
		return st
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.cache[userID]; ok {
		return st
	}
	st := NewState()
	r.cache[userID] = st
	return st
}

func (r *RedisStore) Reset(userID string) *State {
	st := NewState()
	r.mu.Lock()
	r.cache[userID] = st
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.rdb.Del(ctx, redisStateKeyPrefix+userID).Err(); err != nil {
		r.log.DatabaseError("redis_reset", err)
	}
	return st
}

func (r *RedisStore) Save(userID string, st *State) error {
	st.Lock()
	raw, err := json.Marshal(st)
	ids := st.trackedIDs()
	st.Unlock()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[userID] = st
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, redisStateKeyPrefix+userID, raw, redisStateTTL)
	for _, id := range ids {
		if id != PendingCallSentinel {
			pipe.Set(ctx, redisCallKeyPrefix+id, userID, redisCallTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.DatabaseError("redis_save", err)
		return err
	}
	return nil
}

func (r *RedisStore) FindByCallID(callID string) (string, *State, bool) {
	r.mu.RLock()
	for userID, st := range r.cache {
		st.Lock()
		owns := st.tracksCallID(callID) || st.MultiCall.providerByCallID(callID) != nil
		st.Unlock()
		if owns {
			r.mu.RUnlock()
			return userID, st, true
		}
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	userID, err := r.rdb.Get(ctx, redisCallKeyPrefix+callID).Result()
	if err != nil {
		return "", nil, false
	}
	st := r.Get(userID)
	if st == nil {
		return "", nil, false
	}
	return userID, st, true
}

func (r *RedisStore) StaleCalls(cutoff time.Time) []TrackedCall {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []TrackedCall
	for userID, st := range r.cache {
		st.Lock()
		if st.UpdatedAt.After(cutoff) {
			st.Unlock()
			continue
		}
		for _, id := range st.trackedIDs() {
			if id == PendingCallSentinel {
				continue
			}
			stale = append(stale, TrackedCall{UserID: userID, CallID: id})
		}
		st.Unlock()
	}
	return stale
}

func (r *RedisStore) loadFromRedis(userID string) *State {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := r.rdb.Get(ctx, redisStateKeyPrefix+userID).Bytes()
	if err != nil {
		return nil
	}
	st := NewState()
	if err := json.Unmarshal(raw, st); err != nil {
		r.log.DatabaseError("redis_decode", err)
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[userID]; ok {
		return cached
	}
	r.cache[userID] = st
	return st
}
