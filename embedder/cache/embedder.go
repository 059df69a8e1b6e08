// Package cache keeps embeddings in redis so that re-running against the
// same document does not pay for the same vectors twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/w-h-a/doctalk/embedder"
)

const defaultTTL = 24 * time.Hour

// Client is the part of *redis.Client the cache uses.
type Client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type cachedEmbedder struct {
	options embedder.Options
	next    embedder.Embedder
	client  Client
	ttl     time.Duration
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

func (e *cachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedder.CheckInputs(texts); err != nil {
		return nil, err
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.key(text)
	}

	out := make([][]float32, len(texts))

	hits, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		slog.WarnContext(ctx, "embedding cache unavailable", "error", err)
		hits = nil
	}

	var missing []int
	for i := range texts {
		if i < len(hits) {
			if s, ok := hits[i].(string); ok {
				if vec, ok := decode(s); ok {
					out[i] = vec
					continue
				}
			}
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}

	vecs, err := e.next.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d inputs", len(vecs), len(batch))
	}

	for j, i := range missing {
		out[i] = vecs[j]
		if err := e.client.Set(ctx, keys[i], encode(vecs[j]), e.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "failed to cache embedding", "error", err)
		}
	}

	return out, nil
}

func (e *cachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("doctalk:embedding:%s:%d:%s", e.options.Model, e.options.Dimensions, hex.EncodeToString(sum[:]))
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(s string) ([]float32, bool) {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil, false
	}

	vec := make([]float32, len(s)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[4*i : 4*i+4])))
	}

	return vec, true
}

// NewEmbedder wraps next. Model and Dimensions namespace the cache keys so
// vectors from different models never mix.
func NewEmbedder(next embedder.Embedder, opts ...embedder.Option) (embedder.Embedder, error) {
	options := embedder.NewOptions(opts...)

	client, ok := ClientFrom(options.Context)
	if !ok || client == nil {
		return nil, fmt.Errorf("embedding cache: missing redis client")
	}

	ttl := defaultTTL
	if v, ok := TTLFrom(options.Context); ok {
		ttl = v
	}

	e := &cachedEmbedder{
		options: options,
		next:    next,
		client:  client,
		ttl:     ttl,
	}

	return e, nil
}

// Connect dials redis at addr and checks it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}

	return client, nil
}
