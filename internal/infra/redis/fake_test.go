package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// fakeRedis is an in-memory RedisClient. TTLs are recorded, not enforced.
type fakeRedis struct {
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
	ttls  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{kv: map[string]string{}, lists: map[string][]string{}, ttls: map[string]time.Duration{}}
}

func str(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = str(value)
	f.ttls[key] = exp
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	fmt.Sscan(f.kv[key], &n)
	n++
	f.kv[key] = fmt.Sprint(n)
	return n, nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = exp
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.kv[k]; ok {
			n++
		} else if len(f.lists[k]) > 0 {
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], str(v))
	}
	return nil
}

func (f *fakeRedis) index(key string, i int64) (int64, bool) {
	n := int64(len(f.lists[key]))
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}

func (f *fakeRedis) LIndex(_ context.Context, key string, index int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index(key, index)
	if !ok {
		return "", redis.Nil
	}
	return f.lists[key][i], nil
}

func (f *fakeRedis) LSet(_ context.Context, key string, index int64, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index(key, index)
	if !ok {
		return fmt.Errorf("ERR index out of range")
	}
	f.lists[key][i] = str(value)
	return nil
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	n := int64(len(l))
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start += n
	}
	if start >= n || start > stop {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	return append([]string(nil), l[start:stop+1]...), nil
}

func (f *fakeRedis) Close() error { return nil }
