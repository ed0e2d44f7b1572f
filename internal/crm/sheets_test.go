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

type sheetsFixture struct {
	srv     *httptest.Server
	adapter *SheetsAdapter
	tokens  *token.FileStore

	rows    [][]interface{}
	appends int
	updates int
}

func newSheetsFixture(t *testing.T) *sheetsFixture {
	t.Helper()

	f := &sheetsFixture{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
			json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, ":append"):
			f.appends++
			json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/values/"):
			f.updates++
			json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)

	tokens, err := token.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	f.tokens = tokens

	f.adapter = NewSheetsAdapter(config.SheetsConfig{SheetName: "Leads"}, tokens)
	f.adapter.endpointOverride = f.srv.URL

	return f
}

func TestSheetsAppendsNewLead(t *testing.T) {
	ctx := context.Background()
	f := newSheetsFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "sheets", &token.Record{
		AccessToken:   "at",
		SpreadsheetID: "sheet-1",
	}))

	res, err := f.adapter.Sync(ctx, hotLead())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, 1, f.appends)
	assert.Equal(t, 0, f.updates)
}

func TestSheetsSkipsAlreadyExportedLead(t *testing.T) {
	ctx := context.Background()
	f := newSheetsFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "sheets", &token.Record{
		AccessToken:   "at",
		SpreadsheetID: "sheet-1",
	}))

	l := hotLead()
	f.rows = [][]interface{}{
		{SourceURL(l.ID), "2026-03-14 09:30", l.Name},
	}

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, f.appends)
}

func TestSheetsUpdatesRowMatchedByPhone(t *testing.T) {
	ctx := context.Background()
	f := newSheetsFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "sheets", &token.Record{
		AccessToken:   "at",
		SpreadsheetID: "sheet-1",
	}))

	l := hotLead()
	f.rows = [][]interface{}{
		{"https://app.fluffychats.com/leads/01OTHER", "2026-03-01 10:00", "Budi", l.Phone, ""},
	}

	res, err := f.adapter.Sync(ctx, l)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, "row-1", res.RemoteID)
	assert.Equal(t, 1, f.updates)
	assert.Equal(t, 0, f.appends)
}

func TestSheetsRequiresSpreadsheet(t *testing.T) {
	ctx := context.Background()
	f := newSheetsFixture(t)
	require.NoError(t, f.tokens.Put(ctx, "sheets", &token.Record{AccessToken: "at"}))

	_, err := f.adapter.Sync(ctx, hotLead())
	require.Error(t, err)
}

func TestRowMatchesIdentity(t *testing.T) {
	l := hotLead()

	assert.True(t, rowMatchesIdentity([]interface{}{"src", "date", "name", "", l.Email}, l))
	assert.True(t, rowMatchesIdentity([]interface{}{"src", "date", "name", l.Phone}, l))
	assert.False(t, rowMatchesIdentity([]interface{}{"src", "date", "name", "62811", "x@y.z"}, l))
	assert.False(t, rowMatchesIdentity([]interface{}{"src"}, l))
}
