package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CursorStore persists the highest fully-processed round so a restart
// resumes instead of re-syncing from genesis.
type CursorStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, round uint64) error
}

// FileCursorStore keeps the cursor in a local JSON file, written atomically
// via tmp+rename.
type FileCursorStore struct {
	Path string
}

type cursorRecord struct {
	LastProcessedRound uint64 `json:"last_processed_round"`
	UpdatedAt          string `json:"updated_at"`
}

func (s *FileCursorStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read cursor: %w", err)
	}

	var rec cursorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("parse cursor: %w", err)
	}
	return rec.LastProcessedRound, true, nil
}

func (s *FileCursorStore) Save(ctx context.Context, round uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	rec := cursorRecord{
		LastProcessedRound: round,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}

// DBCursorStore adapts a store with named cursor persistence (the Postgres
// store) to the CursorStore interface.
type DBCursorStore struct {
	Store interface {
		LoadCursor(ctx context.Context, name string) (uint64, bool, error)
		SaveCursor(ctx context.Context, name string, round uint64) error
	}
	Name string
}

func (s *DBCursorStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadCursor(ctx, s.Name)
}

func (s *DBCursorStore) Save(ctx context.Context, round uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveCursor(ctx, s.Name, round)
}
