package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/crm"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/harvest"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/logger"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/notify"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/webhook"
)

// Analyzer runs the model chain over one conversation.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (*analysis.Result, error)
}

// Dispatcher fans a persisted lead out to configured webhook endpoints.
type Dispatcher interface {
	Dispatch(ctx context.Context, l *lead.Lead) []webhook.Report
}

// Stats summarizes one pipeline cycle. Failed counts sessions that
// produced no lead; SyncFailed counts destination errors for leads that
// were persisted but did not reach a destination.
type Stats struct {
	Scanned    int            `json:"scanned"`
	Eligible   int            `json:"eligible"`
	Duplicates int            `json:"duplicates"`
	Analyzed   int            `json:"analyzed"`
	Failed     int            `json:"failed"`
	Persisted  int            `json:"persisted"`
	Synced     map[string]int `json:"synced"`
	SyncFailed map[string]int `json:"sync_failed"`
	Webhooks   int            `json:"webhooks"`
	Notified   int            `json:"notified"`
}

func (s *Stats) destinationErrors() int {
	total := 0
	for _, n := range s.SyncFailed {
		total += n
	}
	return total
}

// Pipeline wires harvest, analysis, persistence and fan-out into one
// sequential cycle. Sessions are processed one at a time; one failing
// session or destination never aborts the rest of the cycle.
type Pipeline struct {
	harvester *harvest.Harvester
	cache     session.Cache
	analyzer  Analyzer
	store     lead.Store
	tokens    token.Store
	adapters  []crm.Adapter
	webhooks  Dispatcher
	notifiers []notify.Notifier

	processedTTL time.Duration
}

func New(
	harvester *harvest.Harvester,
	cache session.Cache,
	analyzer Analyzer,
	store lead.Store,
	tokens token.Store,
	adapters []crm.Adapter,
	webhooks Dispatcher,
	notifiers []notify.Notifier,
	cfg config.HarvestConfig,
) (*Pipeline, error) {
	processedTTL, err := config.DurationOrDefault(cfg.ProcessedTTL, config.DefaultHarvestProcessedTTL)
	if err != nil {
		return nil, fmt.Errorf("parse processed ttl: %w", err)
	}

	return &Pipeline{
		harvester:    harvester,
		cache:        cache,
		analyzer:     analyzer,
		store:        store,
		tokens:       tokens,
		adapters:     adapters,
		webhooks:     webhooks,
		notifiers:    notifiers,
		processedTTL: processedTTL,
	}, nil
}

// RunCycle executes one harvest-analyze-persist-fanout pass.
func (p *Pipeline) RunCycle(ctx context.Context) (Stats, error) {
	stats := Stats{
		Synced:     make(map[string]int),
		SyncFailed: make(map[string]int),
	}
	started := time.Now()

	candidates, scanStats, err := p.harvester.Collect(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "harvest")
	}
	stats.Scanned = scanStats.Scanned
	stats.Eligible = scanStats.Eligible

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		p.processSession(logger.WithSessionKey(ctx, cand.Key), cand, &stats)
	}

	slog.InfoContext(ctx, "Cycle complete",
		"scanned", stats.Scanned,
		"eligible", stats.Eligible,
		"duplicates", stats.Duplicates,
		"persisted", stats.Persisted,
		"failed", stats.Failed,
		"sync_failed", stats.destinationErrors(),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return stats, nil
}

func (p *Pipeline) processSession(ctx context.Context, cand harvest.Candidate, stats *Stats) {
	switch err := p.dedup(ctx, cand.Transcript); {
	case err == nil:
	case errors.IsCategory(err, errors.ErrDuplicateLead):
		// Already captured under an identical transcript. Mark the cached
		// session so the next scans stop picking it up.
		stats.Duplicates++
		if err := p.cache.MarkProcessed(ctx, cand.Key, p.processedTTL); err != nil {
			slog.WarnContext(ctx, "Failed to mark duplicate session processed", "key", cand.Key, "error", err)
		}
		return
	default:
		slog.ErrorContext(ctx, "Dedup check failed", "key", cand.Key, "error", err)
		stats.Failed++
		return
	}

	meta := cand.Session.Metadata
	res, err := p.analyzer.Analyze(ctx, analysis.Input{
		Phone:      meta.Phone,
		Product:    meta.Product,
		SessionID:  meta.SessionID,
		Transcript: cand.Transcript,
	})
	if err != nil {
		// The session stays unprocessed in the cache; a later cycle retries
		// it while it is still inside the harvest window.
		slog.ErrorContext(ctx, "Analysis failed", "key", cand.Key, "error", err)
		stats.Failed++
		return
	}
	stats.Analyzed++

	l := lead.FromAnalysis(cand.Session, cand.Transcript, res)
	if err := p.store.Upsert(ctx, l); err != nil {
		slog.ErrorContext(ctx, "Failed to persist lead", "key", cand.Key, "error", err)
		stats.Failed++
		return
	}
	stats.Persisted++
	slog.InfoContext(ctx, "Lead persisted", "lead", l.ID, "score", l.Score, "hot", l.IsHotLead)

	// The lead is durable from here on. Fan-out failures only cost the
	// failing destination; the rest still receive the lead.
	p.fanOut(ctx, l, stats)

	if err := p.cache.MarkProcessed(ctx, cand.Key, p.processedTTL); err != nil {
		slog.WarnContext(ctx, "Failed to mark session processed", "key", cand.Key, "error", err)
	}
}

// dedup returns ErrDuplicateLead when an identical transcript has already
// been persisted as a lead.
func (p *Pipeline) dedup(ctx context.Context, transcript string) error {
	exists, err := p.store.ConversationExists(ctx, transcript)
	if err != nil {
		return errors.Wrap(err, "conversation lookup")
	}
	if exists {
		return errors.ErrDuplicateLead
	}
	return nil
}

func (p *Pipeline) fanOut(ctx context.Context, l *lead.Lead, stats *Stats) {
	for _, adapter := range p.adapters {
		dest := adapter.Name()

		rec, err := p.tokens.Get(ctx, dest)
		if err != nil {
			if !errors.IsCategory(err, errors.ErrNotFound) {
				slog.WarnContext(ctx, "Failed to read destination tokens", "destination", dest, "error", err)
			}
			continue
		}
		if !rec.LiveSync {
			continue
		}

		res, err := adapter.Sync(ctx, l)
		if err != nil {
			stats.SyncFailed[dest]++
			slog.ErrorContext(ctx, "Destination sync failed",
				"destination", dest,
				"lead", l.ID,
				"retryable", errors.IsRetryable(err),
				"error", err,
			)
			continue
		}

		if err := p.store.MarkSyncedTo(ctx, l.ID, dest); err != nil {
			slog.WarnContext(ctx, "Failed to record sync destination", "destination", dest, "lead", l.ID, "error", err)
		}
		if res.Synced {
			stats.Synced[dest]++
			if err := p.tokens.RecordSync(ctx, dest, 1); err != nil {
				slog.WarnContext(ctx, "Failed to bump sync counter", "destination", dest, "error", err)
			}
		}
	}

	if p.webhooks != nil {
		reports := p.webhooks.Dispatch(ctx, l)
		for _, r := range reports {
			if r.Err == nil {
				stats.Webhooks++
			}
		}
	}

	if l.IsHotLead {
		for _, n := range p.notifiers {
			if err := n.NotifyHotLead(ctx, l); err != nil {
				slog.WarnContext(ctx, "Hot lead notification failed", "notifier", n.Name(), "lead", l.ID, "error", err)
				continue
			}
			stats.Notified++
		}
	}
}
