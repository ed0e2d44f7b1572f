package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// FileStore keeps leads in a single JSON file with atomic writes. Used by
// tests and single-node deployments without Postgres.
type FileStore struct {
	path string
	data leadFile
	mu   sync.RWMutex
}

type leadFile struct {
	Leads map[string]*Lead `json:"leads"`
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: leadFile{Leads: make(map[string]*Lead)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	return json.Unmarshal(content, &s.data)
}

func (s *FileStore) save() error {
	// Internal save, lock held by caller
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(b))
}

func (s *FileStore) Upsert(ctx context.Context, l *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	cp.UpdatedAt = time.Now().UTC()
	s.data.Leads[l.ID] = &cp
	return s.save()
}

func (s *FileStore) Get(ctx context.Context, id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.data.Leads[id]
	if !ok {
		return nil, errors.NotFound("lead " + id)
	}
	cp := *l
	return &cp, nil
}

func (s *FileStore) List(ctx context.Context, limit int) ([]*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leads := make([]*Lead, 0, len(s.data.Leads))
	for _, l := range s.data.Leads {
		cp := *l
		leads = append(leads, &cp)
	}
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (s *FileStore) MarkSyncedTo(ctx context.Context, id, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data.Leads[id]
	if !ok {
		return errors.NotFound("lead " + id)
	}

	for _, d := range l.SyncedTo {
		if d == destination {
			return nil
		}
	}
	l.SyncedTo = append(l.SyncedTo, destination)
	l.UpdatedAt = time.Now().UTC()
	return s.save()
}

func (s *FileStore) ConversationExists(ctx context.Context, conversation string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.data.Leads {
		if l.Conversation == conversation {
			return true, nil
		}
	}
	return false, nil
}
