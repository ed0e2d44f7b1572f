package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
)

// Candidate is a session that has gone quiet and is ready for processing.
type Candidate struct {
	Key        string
	Session    *session.ChatSession
	Transcript string
}

// Stats counts what a single scan did, for operator visibility.
type Stats struct {
	Scanned    int
	Skipped    int
	Eligible   int
	ScanErrors int
}

// Harvester scans the ephemeral cache for sessions whose remaining TTL has
// dropped into the eligibility window. The window substitutes for an
// explicit session-close signal: a session created with a 7-day life whose
// TTL is down to under ~110 minutes has been idle for days.
type Harvester struct {
	cache       session.Cache
	keyPrefix   string
	scanLimit   int
	minTTL      time.Duration
	maxTTL      time.Duration
	maxMessages int
}

func NewHarvester(cache session.Cache, cacheCfg config.CacheConfig, cfg config.HarvestConfig) (*Harvester, error) {
	minTTL, err := config.DurationOrDefault(cfg.MinTTL, config.DefaultHarvestMinTTL)
	if err != nil {
		return nil, fmt.Errorf("parse harvest min ttl: %w", err)
	}
	maxTTL, err := config.DurationOrDefault(cfg.MaxTTL, config.DefaultHarvestMaxTTL)
	if err != nil {
		return nil, fmt.Errorf("parse harvest max ttl: %w", err)
	}

	scanLimit := cfg.ScanLimit
	if scanLimit <= 0 {
		scanLimit = config.DefaultHarvestScanLimit
	}
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = config.DefaultHarvestMaxMessages
	}
	keyPrefix := cacheCfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = config.DefaultCacheKeyPrefix
	}

	return &Harvester{
		cache:       cache,
		keyPrefix:   keyPrefix,
		scanLimit:   scanLimit,
		minTTL:      minTTL,
		maxTTL:      maxTTL,
		maxMessages: maxMessages,
	}, nil
}

// Eligible reports whether a remaining TTL falls inside the harvest window.
func (h *Harvester) Eligible(ttl time.Duration) bool {
	return ttl >= h.minTTL && ttl <= h.maxTTL
}

// Collect scans the cache and returns the sessions ready for processing.
// Per-key failures are logged and skipped; one bad session never aborts
// the whole scan.
func (h *Harvester) Collect(ctx context.Context) ([]Candidate, Stats, error) {
	stats := Stats{}

	keys, err := h.cache.ScanKeys(ctx, h.keyPrefix+"*", h.scanLimit)
	if err != nil {
		return nil, stats, fmt.Errorf("scan cache: %w", err)
	}
	stats.Scanned = len(keys)

	var candidates []Candidate
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return candidates, stats, ctx.Err()
		default:
		}

		parts, err := session.ParseKey(h.keyPrefix, key)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed session key", "key", key, "error", err)
			stats.ScanErrors++
			continue
		}

		ttl, err := h.cache.TTL(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read session ttl", "key", key, "error", err)
			stats.ScanErrors++
			continue
		}

		if !h.Eligible(ttl) {
			stats.Skipped++
			continue
		}

		sess, err := h.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read session", "key", key, "error", err)
			stats.ScanErrors++
			continue
		}

		// The key itself carries identity; sessions written by older
		// ingestion builds may lack it in metadata.
		if sess.Metadata.Phone == "" {
			sess.Metadata.Phone = parts.Phone
		}
		if sess.Metadata.Product == "" {
			sess.Metadata.Product = parts.Product
		}

		if sess.Metadata.Processed {
			stats.Skipped++
			continue
		}

		if len(sess.Messages) > h.maxMessages {
			sess.Messages = sess.Messages[len(sess.Messages)-h.maxMessages:]
		}
		if len(sess.Messages) == 0 {
			stats.Skipped++
			continue
		}

		candidates = append(candidates, Candidate{
			Key:        key,
			Session:    sess,
			Transcript: sess.Transcript(),
		})
	}

	stats.Eligible = len(candidates)
	return candidates, stats, nil
}
