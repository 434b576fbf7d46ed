package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is one persistence store for session values.
type Backend interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

/* -------------------- cookies -------------------- */

// CookieOptions are the attributes of every cookie a CookieBackend writes.
type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
	Path   string
}

// CookieBackend is the cookie jar of a single HTTP exchange. Reads see the
// request cookies overlaid with anything written during the exchange.
type CookieBackend struct {
	w       http.ResponseWriter
	r       *http.Request
	opts    CookieOptions
	pending map[string]*string
}

func NewCookieBackend(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieBackend {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &CookieBackend{w: w, r: r, opts: opts, pending: map[string]*string{}}
}

func (b *CookieBackend) Get(_ context.Context, key string) (string, bool, error) {
	if v, ok := b.pending[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	ck, err := b.r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	v, err := url.QueryUnescape(ck.Value)
	if err != nil {
		return "", false, fmt.Errorf("cookie %s: %w", key, err)
	}
	return v, v != "", nil
}

func (b *CookieBackend) Set(_ context.Context, key, value string) error {
	http.SetCookie(b.w, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     b.opts.Path,
		MaxAge:   int(b.opts.MaxAge.Seconds()),
		Secure:   b.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	b.pending[key] = &value
	return nil
}

func (b *CookieBackend) Delete(_ context.Context, key string) error {
	http.SetCookie(b.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     b.opts.Path,
		MaxAge:   -1,
		Secure:   b.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	b.pending[key] = nil
	return nil
}

/* -------------------- redis (local storage) -------------------- */

// RedisBackend is the device-local key-value storage, kept in Redis under
// session:<device>:<key>.
type RedisBackend struct {
	rdb    *redis.Client
	device string
	ttl    time.Duration
}

func NewRedisBackend(rdb *redis.Client, device string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, device: device, ttl: ttl}
}

func (b *RedisBackend) key(k string) string { return "session:" + b.device + ":" + k }

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.rdb.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.rdb.Set(ctx, b.key(key), value, b.ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.key(key)).Err()
}

/* -------------------- memory -------------------- */

type MemoryBackend struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{m: map[string]string{}} }

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[key]
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
	return nil
}

// Len is the number of stored keys.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}
