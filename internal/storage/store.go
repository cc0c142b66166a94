// Package storage persists review runs and the posted-comment key ledger.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/jules-warden/internal/core"
)

// Store defines the persistence operations used by the review pipeline. The
// posted-key ledger is what lets comment deduplication survive reruns of the
// same content.
type Store interface {
	SaveReview(ctx context.Context, record *core.ReviewRecord) error
	WasPosted(ctx context.Context, target, key string) (bool, error)
	MarkPosted(ctx context.Context, target, key string) error
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a PostgreSQL-backed store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) SaveReview(ctx context.Context, record *core.ReviewRecord) error {
	query := `INSERT INTO reviews (repo_full_name, target, finding_count, posted_count, degraded, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		record.RepoFullName, record.Target, record.FindingCount, record.PostedCount, record.Degraded, time.Now())
	return err
}

func (s *postgresStore) WasPosted(ctx context.Context, target, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM posted_comments WHERE target = $1 AND comment_key = $2`, target, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *postgresStore) MarkPosted(ctx context.Context, target, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posted_comments (target, comment_key, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (target, comment_key) DO NOTHING`, target, key, time.Now())
	return err
}

// memoryStore keeps everything in process. It backs the CLI (one-shot runs)
// and server deployments without a configured database.
type memoryStore struct {
	mu      sync.Mutex
	posted  map[string]struct{}
	reviews []core.ReviewRecord
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore() Store {
	return &memoryStore{posted: make(map[string]struct{})}
}

func (s *memoryStore) SaveReview(_ context.Context, record *core.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.CreatedAt = time.Now()
	s.reviews = append(s.reviews, *record)
	return nil
}

func (s *memoryStore) WasPosted(_ context.Context, target, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.posted[target+"\x00"+key]
	return ok, nil
}

func (s *memoryStore) MarkPosted(_ context.Context, target, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted[target+"\x00"+key] = struct{}{}
	return nil
}
