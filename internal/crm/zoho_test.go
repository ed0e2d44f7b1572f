package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

type zohoFixture struct {
	srv     *httptest.Server
	adapter *ZohoAdapter
	tokens  *token.FileStore

	searchHits map[string]string // criteria value -> record id
	created    int
	updated    int
	refreshes  int
}

func newZohoFixture(t *testing.T) *zohoFixture {
	t.Helper()

	f := &zohoFixture{searchHits: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("/crm/v2/Leads/search", func(w http.ResponseWriter, r *http.Request) {
		criteria := r.URL.Query().Get("criteria")
		for value, id := range f.searchHits {
			if strings.Contains(criteria, value) {
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]string{{"id": id}},
				})
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/crm/v2/Leads", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			f.created++
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"details": map[string]string{"id": "zoho-new"}}},
			})
		case http.MethodPut:
			f.updated++
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
		}
	})
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes++
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "fresh-token",
			"api_domain":   f.srv.URL,
		})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	tokens, err := token.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	f.tokens = tokens

	f.adapter = NewZohoAdapter(config.ZohoConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		AccountsURL:  f.srv.URL,
	}, tokens)
	f.adapter.apiDomainOverride = f.srv.URL

	return f
}

func TestZohoCreatesNewLead(t *testing.T) {
	ctx := context.Background()
	f := newZohoFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "zoho", &token.Record{AccessToken: "at"}))

	res, err := f.adapter.Sync(ctx, hotLead())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "zoho-new", res.RemoteID)
	assert.Equal(t, 1, f.created)
}

func TestZohoSkipsAlreadySyncedLead(t *testing.T) {
	ctx := context.Background()
	f := newZohoFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "zoho", &token.Record{AccessToken: "at"}))

	l := hotLead()
	f.searchHits[SourceURL(l.ID)] = "zoho-existing"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "zoho-existing", res.RemoteID)
	assert.Equal(t, 0, f.created)
}

func TestZohoUpdatesLeadMatchedByEmail(t *testing.T) {
	ctx := context.Background()
	f := newZohoFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "zoho", &token.Record{AccessToken: "at"}))

	l := hotLead()
	f.searchHits[l.Email] = "zoho-email"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "zoho-email", res.RemoteID)
	assert.Equal(t, 1, f.updated)
	assert.Equal(t, 0, f.created)
}

func TestZohoRefreshStoresAPIDomain(t *testing.T) {
	ctx := context.Background()
	f := newZohoFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "zoho", &token.Record{
		AccessToken:  "stale",
		RefreshToken: "rt",
	}))

	require.NoError(t, f.adapter.refreshToken(ctx))
	assert.Equal(t, 1, f.refreshes)

	rec, err := f.tokens.Get(ctx, "zoho")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", rec.AccessToken)
	assert.Equal(t, f.srv.URL, rec.APIDomain)
}

func TestZohoRatingBuckets(t *testing.T) {
	l := hotLead()
	assert.Equal(t, "Acquired", zohoRating(l))

	l.IsHotLead = false
	l.Score = 50
	assert.Equal(t, "Active", zohoRating(l))

	l.Score = 10
	assert.Equal(t, "Cold", zohoRating(l))
}
