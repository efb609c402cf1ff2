package tts

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/disgoorg/log"
	"github.com/go-redis/cache/v9"
	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/speaker"
	"github.com/samber/lo"
)

var _ Engine = (*CachedEngine)(nil)

// CachedEngine is a wrapper around an Engine that caches the generated audio.
// The key is a hash of the engine name, the synthesis settings and the text,
// so re-voicing an unchanged sentence with the same speaker costs nothing.
type CachedEngine struct {
	nextEngine Engine
	cache      *cache.Cache
	ttl        time.Duration
}

func NewCachedEngine(nextEngine Engine, redisCache *cache.Cache, ttl time.Duration) *CachedEngine {
	return &CachedEngine{
		nextEngine: nextEngine,
		cache:      redisCache,
		ttl:        ttl,
	}
}

func (c *CachedEngine) Name() string {
	return c.nextEngine.Name()
}

func (c *CachedEngine) GenerateSpeech(ctx context.Context, request SpeechRequest) error {
	key, err := c.generateKey(request)
	if err != nil {
		// not cacheable, synthesize directly
		return c.nextEngine.GenerateSpeech(ctx, request)
	}

	var audioData []byte
	if err := c.cache.Get(ctx, key, &audioData); err == nil && len(audioData) > 0 {
		slog.Debug("cache hit", "key", key, "engine", c.Name())
		if err := os.WriteFile(request.OutPath, audioData, 0o644); err != nil {
			return fmt.Errorf("failed to write cached audio: %w: %w", audiobook.ErrEngine, err)
		}
		return nil
	}

	if err := c.nextEngine.GenerateSpeech(ctx, request); err != nil {
		return err
	}

	audioData, err = os.ReadFile(request.OutPath)
	if err != nil {
		log.Warn("failed to read generated audio for caching", "error", err, "key", key)
		return nil
	}

	// Store the audio data in the cache with the generated key
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.cache.Set(&cache.Item{
			Ctx:   ctx,
			Key:   key,
			Value: audioData,
			TTL:   c.ttl,
		}); err != nil {
			// Log the error but do not return it, as we don't want to fail the request if caching fails
			log.Warn("failed to cache audio data", "error", err, "key", key)
		}
	}()

	return nil
}

// Close closes the wrapped engine when it holds resources.
func (c *CachedEngine) Close() error {
	if closer, ok := c.nextEngine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// generateKey hashes everything that shapes the audio: the engine, every
// setting except the engine selection, and the text.
func (c *CachedEngine) generateKey(request SpeechRequest) (string, error) {
	settings, err := json.Marshal(lo.OmitBy(request.Settings, func(key string, _ any) bool {
		return slices.Contains(speaker.SelectionKeys, key)
	}))
	if err != nil {
		return "", err
	}

	h := fnv.New64a()
	h.Write([]byte(c.nextEngine.Name()))
	h.Write([]byte{0})
	h.Write(settings)
	h.Write([]byte{0})
	h.Write([]byte(request.Text))
	return "audiobook:speech:" + hex.EncodeToString(h.Sum(nil)), nil
}
