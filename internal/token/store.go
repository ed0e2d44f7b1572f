package token

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// Record holds one destination's OAuth credentials and sync metadata.
// The OAuth callback flow writes the initial record; the pipeline rotates
// the access token on refresh and bumps the sync counters. The dashboard
// reads this file to display connection status.
type Record struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	SpreadsheetID string    `json:"spreadsheet_id,omitempty"`
	APIDomain     string    `json:"api_domain,omitempty"`
	Region        string    `json:"region,omitempty"`
	LiveSync      bool      `json:"live_sync"`
	LastSyncAt    time.Time `json:"last_sync_at,omitempty"`
	ExportedCount int       `json:"exported_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is a destination-keyed credential store. The backing medium is
// swappable; adapters only ever see Get/Put/RecordSync.
type Store interface {
	Get(ctx context.Context, destination string) (*Record, error)
	Put(ctx context.Context, destination string, rec *Record) error

	// RecordSync bumps the destination's exported counter and last-sync
	// timestamp after a successful non-skipped sync.
	RecordSync(ctx context.Context, destination string, exported int) error

	// List returns all stored records keyed by destination.
	List(ctx context.Context) (map[string]*Record, error)
}

// FileStore persists records in one JSON file guarded by a flock, so the
// OAuth callback process and the pipeline daemon can share it.
type FileStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

type tokenFile struct {
	Destinations map[string]*Record `json:"destinations"`
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create token store dir")
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Get(ctx context.Context, destination string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := data.Destinations[destination]
	if !ok {
		return nil, errors.NotFound("token record for " + destination)
	}
	cp := *rec
	return &cp, nil
}

func (s *FileStore) Put(ctx context.Context, destination string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, func(data *tokenFile) {
		cp := *rec
		cp.UpdatedAt = time.Now().UTC()
		data.Destinations[destination] = &cp
	})
}

func (s *FileStore) RecordSync(ctx context.Context, destination string, exported int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, func(data *tokenFile) {
		rec, ok := data.Destinations[destination]
		if !ok {
			rec = &Record{}
			data.Destinations[destination] = rec
		}
		rec.ExportedCount += exported
		rec.LastSyncAt = time.Now().UTC()
		rec.UpdatedAt = rec.LastSyncAt
	})
}

func (s *FileStore) List(ctx context.Context) (map[string]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Record, len(data.Destinations))
	for dest, rec := range data.Destinations {
		cp := *rec
		out[dest] = &cp
	}
	return out, nil
}

func (s *FileStore) read() (*tokenFile, error) {
	data := &tokenFile{Destinations: make(map[string]*Record)}

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read token store")
	}
	if len(content) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(content, data); err != nil {
		return nil, errors.Wrap(err, "decode token store")
	}
	if data.Destinations == nil {
		data.Destinations = make(map[string]*Record)
	}
	return data, nil
}

func (s *FileStore) update(ctx context.Context, mutate func(*tokenFile)) error {
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return errors.Wrap(err, "acquire token store lock")
	}
	if !locked {
		return errors.Transient("token store locked by another process")
	}
	defer s.lock.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	mutate(data)

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode token store")
	}
	return atomic.WriteFile(s.path, bytes.NewReader(b))
}
