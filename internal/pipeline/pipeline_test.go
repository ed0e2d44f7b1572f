package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/crm"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/harvest"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/webhook"
)

type fakeAnalyzer struct {
	result *analysis.Result
	err    error
	calls  int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, in analysis.Input) (*analysis.Result, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	cp := *a.result
	if cp.Phone == "" {
		cp.Phone = in.Phone
	}
	cp.Enrich()
	return &cp, nil
}

type fakeAdapter struct {
	name  string
	err   error
	calls int
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Sync(ctx context.Context, l *lead.Lead) (crm.Result, error) {
	a.calls++
	if a.err != nil {
		return crm.Result{}, a.err
	}
	return crm.Result{Synced: true, RemoteID: a.name + "-1"}, nil
}

type fakeDispatcher struct {
	calls int
	leads []*lead.Lead
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, l *lead.Lead) []webhook.Report {
	d.calls++
	d.leads = append(d.leads, l)
	return []webhook.Report{{WebhookID: "w1", Event: webhook.EventNewLead}}
}

type fakeNotifier struct {
	calls int
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) NotifyHotLead(ctx context.Context, l *lead.Lead) error {
	n.calls++
	return nil
}

type fixture struct {
	cache      *session.MemoryCache
	analyzer   *fakeAnalyzer
	store      *lead.FileStore
	tokens     *token.FileStore
	adapters   []*fakeAdapter
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier
	pipe       *Pipeline
}

func goodResult() *analysis.Result {
	return &analysis.Result{
		Name:    "Budi",
		Score:   82,
		Intent:  "high",
		Urgency: "immediate",
		Stage:   "decision",
		Routing: "enterprise_sales",
		Topic:   "pricing",
	}
}

func newFixture(t *testing.T, analyzer *fakeAnalyzer, adapters ...*fakeAdapter) *fixture {
	t.Helper()
	ctx := context.Background()

	cache := session.NewMemoryCache()
	harvester, err := harvest.NewHarvester(cache,
		config.CacheConfig{KeyPrefix: "chat:"},
		config.HarvestConfig{ScanLimit: 100, MinTTL: "0s", MaxTTL: "110m", MaxMessages: 50},
	)
	require.NoError(t, err)

	store, err := lead.NewFileStore(filepath.Join(t.TempDir(), "leads.json"))
	require.NoError(t, err)

	tokens, err := token.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	crmAdapters := make([]crm.Adapter, 0, len(adapters))
	for _, a := range adapters {
		crmAdapters = append(crmAdapters, a)
		require.NoError(t, tokens.Put(ctx, a.name, &token.Record{AccessToken: "at", LiveSync: true}))
	}

	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}

	pipe, err := New(harvester, cache, analyzer, store, tokens, crmAdapters,
		dispatcher, nil, config.HarvestConfig{ProcessedTTL: "5m"})
	require.NoError(t, err)
	pipe.notifiers = append(pipe.notifiers, notifier)

	return &fixture{
		cache:      cache,
		analyzer:   analyzer,
		store:      store,
		tokens:     tokens,
		adapters:   adapters,
		dispatcher: dispatcher,
		notifier:   notifier,
		pipe:       pipe,
	}
}

func (f *fixture) putSession(t *testing.T, key string) *session.ChatSession {
	t.Helper()
	sess := &session.ChatSession{
		Messages: []session.Message{
			{Role: "user", Content: "how much for 8 locations? ref " + key},
			{Role: "assistant", Content: "let me put a quote together"},
		},
		Metadata: session.Metadata{Phone: "628123456789", SessionID: key, Product: "fluffy-pro"},
	}
	require.NoError(t, f.cache.Put(key, sess, 30*time.Minute))
	return sess
}

func TestRunCycleHappyPath(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{name: "sheets"}
	f := newFixture(t, &fakeAnalyzer{result: goodResult()}, adapter)
	f.putSession(t, "chat:628123456789::fluffy-pro::s1")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Analyzed)
	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 1, stats.Synced["sheets"])
	assert.Equal(t, 1, adapter.calls)
	assert.Equal(t, 1, f.dispatcher.calls)
	assert.Equal(t, 1, f.notifier.calls, "hot lead triggers notification")

	leads, err := f.store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, []string{"sheets"}, leads[0].SyncedTo)
	assert.True(t, leads[0].IsHotLead)

	// The session is rewritten as processed so the next cycle skips it.
	sess, err := f.cache.Get(ctx, "chat:628123456789::fluffy-pro::s1")
	require.NoError(t, err)
	assert.True(t, sess.Metadata.Processed)

	rec, err := f.tokens.Get(ctx, "sheets")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ExportedCount)
}

func TestRunCycleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeAnalyzer{result: goodResult()}, &fakeAdapter{name: "sheets"})
	f.putSession(t, "chat:a::p::s1")

	_, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)
	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Persisted, "second cycle must not create a second lead")
	assert.Equal(t, 1, f.analyzer.calls, "processed session is never re-analyzed")

	leads, err := f.store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestRunCycleDedupByTranscript(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeAnalyzer{result: goodResult()}, &fakeAdapter{name: "sheets"})
	sess := f.putSession(t, "chat:a::p::s1")

	// An identical transcript was already captured, e.g. by a manual run.
	existing := &lead.Lead{ID: "01OLD", Conversation: sess.Transcript(), CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.Upsert(ctx, existing))

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 0, stats.Persisted)
	assert.Equal(t, 0, f.analyzer.calls, "duplicates are caught before spending model tokens")
	assert.Equal(t, 0, f.dispatcher.calls)

	cached, err := f.cache.Get(ctx, "chat:a::p::s1")
	require.NoError(t, err)
	assert.True(t, cached.Metadata.Processed, "duplicate session still gets retired")
}

func TestRunCycleAnalysisFailureLeavesSessionForRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeAnalyzer{err: errors.Transient("all providers down")}, &fakeAdapter{name: "sheets"})
	f.putSession(t, "chat:a::p::s1")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Persisted)
	assert.Equal(t, 0, f.dispatcher.calls, "no fan-out without a persisted lead")

	leads, err := f.store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, leads)

	cached, err := f.cache.Get(ctx, "chat:a::p::s1")
	require.NoError(t, err)
	assert.False(t, cached.Metadata.Processed, "failed session stays harvestable")
}

func TestRunCyclePartialFanout(t *testing.T) {
	ctx := context.Background()
	good := &fakeAdapter{name: "sheets"}
	bad := &fakeAdapter{name: "hubspot", err: errors.Transient("api down")}
	also := &fakeAdapter{name: "zoho"}
	f := newFixture(t, &fakeAnalyzer{result: goodResult()}, good, bad, also)
	f.putSession(t, "chat:a::p::s1")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, also.calls, "a failing destination does not block the next one")
	assert.Equal(t, 1, stats.SyncFailed["hubspot"], "destination failure shows up in the cycle tally")
	assert.Equal(t, 0, stats.Failed, "a destination error is not a session failure")

	leads, err := f.store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.ElementsMatch(t, []string{"sheets", "zoho"}, leads[0].SyncedTo,
		"synced_to reflects exactly the destinations that succeeded")

	cached, err := f.cache.Get(ctx, "chat:a::p::s1")
	require.NoError(t, err)
	assert.True(t, cached.Metadata.Processed, "partial fan-out still retires the session")
}

func TestRunCycleSkipsDestinationsWithoutLiveSync(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{name: "sheets"}
	f := newFixture(t, &fakeAnalyzer{result: goodResult()}, adapter)
	require.NoError(t, f.tokens.Put(ctx, "sheets", &token.Record{AccessToken: "at", LiveSync: false}))
	f.putSession(t, "chat:a::p::s1")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 0, adapter.calls, "paused destination is not called")
}

func TestRunCycleSkipsUnconnectedDestinations(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{name: "sheets"}
	f := newFixture(t, &fakeAnalyzer{result: goodResult()})
	f.pipe.adapters = []crm.Adapter{adapter} // no token record exists
	f.putSession(t, "chat:a::p::s1")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 0, adapter.calls)
}

func TestRunCycleColdLeadSkipsNotifiers(t *testing.T) {
	ctx := context.Background()
	cold := goodResult()
	cold.Score = 40
	cold.Urgency = "exploring"
	f := newFixture(t, &fakeAnalyzer{result: cold}, &fakeAdapter{name: "sheets"})
	f.putSession(t, "chat:a::p::s1")

	_, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, f.notifier.calls)
	assert.Equal(t, 1, f.dispatcher.calls, "webhooks still fire for cold leads")
}

func TestRunCycleProcessesMultipleSessions(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{result: goodResult()}
	f := newFixture(t, analyzer, &fakeAdapter{name: "sheets"})

	f.putSession(t, "chat:a::p::s1")
	f.putSession(t, "chat:b::p::s2")

	stats, err := f.pipe.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Persisted)
	assert.Equal(t, 2, analyzer.calls)
}
