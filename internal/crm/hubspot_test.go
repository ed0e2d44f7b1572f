package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

type hubspotFixture struct {
	srv     *httptest.Server
	adapter *HubSpotAdapter
	tokens  *token.FileStore

	searchHits     map[string]string // property value -> contact id
	created        int
	updated        int
	refreshes      int
	validToken     string
	refreshedToken string
}

func newHubSpotFixture(t *testing.T) *hubspotFixture {
	t.Helper()

	f := &hubspotFixture{
		searchHits:     make(map[string]string),
		validToken:     "valid-token",
		refreshedToken: "valid-token",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/crm/v3/objects/contacts/search", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			FilterGroups []struct {
				Filters []struct {
					Value string `json:"value"`
				} `json:"filters"`
			} `json:"filterGroups"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		value := body.FilterGroups[0].Filters[0].Value
		if id, ok := f.searchHits[value]; ok {
			json.NewEncoder(w).Encode(map[string]any{
				"total":   1,
				"results": []map[string]string{{"id": id}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"total": 0})
	})
	mux.HandleFunc("/crm/v3/objects/contacts", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.created++
		json.NewEncoder(w).Encode(map[string]string{"id": "new-contact"})
	})
	mux.HandleFunc("/crm/v3/objects/contacts/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.updated++
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes++
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  f.refreshedToken,
			"refresh_token": "rotated-refresh",
		})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	tokens, err := token.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	f.tokens = tokens

	f.adapter = NewHubSpotAdapter(config.HubSpotConfig{
		BaseURL:      f.srv.URL,
		TokenURL:     f.srv.URL + "/oauth/v1/token",
		ClientID:     "cid",
		ClientSecret: "secret",
	}, tokens)

	return f
}

func (f *hubspotFixture) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.validToken
}

func hotLead() *lead.Lead {
	return &lead.Lead{
		ID:        "01TEST",
		Name:      "Budi Santoso",
		Phone:     "628123456789",
		Email:     "budi@example.com",
		Company:   "Warung Kopi",
		Score:     82,
		Intent:    "high",
		Urgency:   "immediate",
		Stage:     "decision",
		Routing:   "enterprise_sales",
		IsHotLead: true,
		Status:    lead.StatusNew,
		CreatedAt: time.Now().UTC(),
	}
}

func TestHubSpotCreatesNewContact(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{AccessToken: "valid-token"}))

	res, err := f.adapter.Sync(ctx, hotLead())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "new-contact", res.RemoteID)
	assert.Equal(t, 1, f.created)
	assert.Equal(t, 0, f.refreshes)
}

func TestHubSpotSkipsAlreadySyncedLead(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{AccessToken: "valid-token"}))

	l := hotLead()
	f.searchHits[SourceURL(l.ID)] = "existing-contact"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "existing-contact", res.RemoteID)
	assert.Equal(t, 0, f.created)
}

func TestHubSpotUpdatesContactMatchedByEmail(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{AccessToken: "valid-token"}))

	l := hotLead()
	f.searchHits[l.Email] = "email-match"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "email-match", res.RemoteID)
	assert.Equal(t, 1, f.updated)
	assert.Equal(t, 0, f.created)
}

func TestHubSpotUpdatesContactMatchedByPhone(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{AccessToken: "valid-token"}))

	l := hotLead()
	l.Email = ""
	f.searchHits[l.Phone] = "phone-match"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "phone-match", res.RemoteID)
	assert.Equal(t, 1, f.updated)
	assert.Equal(t, 0, f.created)
}

func TestHubSpotPrefersEmailMatchOverPhone(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{AccessToken: "valid-token"}))

	l := hotLead()
	f.searchHits[l.Email] = "email-match"
	f.searchHits[l.Phone] = "phone-match"

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, "email-match", res.RemoteID)
}

func TestHubSpotRefreshesExpiredTokenAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
	}))

	res, err := f.adapter.Sync(ctx, hotLead())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, 1, f.refreshes, "exactly one refresh")
	assert.Equal(t, 1, f.created)

	// Rotated credentials must be persisted.
	rec, err := f.tokens.Get(ctx, "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", rec.AccessToken)
	assert.Equal(t, "rotated-refresh", rec.RefreshToken)
}

func TestHubSpotSecondAuthFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newHubSpotFixture(t)
	// The refresh endpoint hands back a token the API still rejects.
	f.refreshedToken = "still-stale"
	require.NoError(t, f.tokens.Put(ctx, "hubspot", &token.Record{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
	}))

	_, err := f.adapter.Sync(ctx, hotLead())
	require.Error(t, err)
	assert.Equal(t, 1, f.refreshes, "no refresh loop")
	assert.Equal(t, 0, f.created)
}
