package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
)

// Store resolves template names to active templates
type Store interface {
	GetActive(ctx context.Context, name string) (*Template, error)
}

// PostgresStore reads templates from the email_templates table
type PostgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates a Postgres-backed template store
func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetActive returns the active template with the given name
func (s *PostgresStore) GetActive(ctx context.Context, name string) (*Template, error) {
	query := `
		SELECT id, name, display_name, subject, html_body, text_body, variables, category, active, created_at, updated_at
		FROM email_templates WHERE name = $1 AND active = true
	`

	var tmpl Template
	var varsJSON []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&tmpl.ID, &tmpl.Name, &tmpl.DisplayName, &tmpl.Subject, &tmpl.HTMLBody, &tmpl.TextBody,
		&varsJSON, &tmpl.Category, &tmpl.Active, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &tmpl.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template variables: %w", err)
		}
	}
	return &tmpl, nil
}

// CachedStore layers a Redis cache over another Store. Lookups hit Redis
// first; misses fall through and populate the cache with a TTL.
type CachedStore struct {
	source Store
	redis  *database.RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps a template store with a Redis cache
func NewCachedStore(source Store, redisClient *database.RedisClient, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedStore{source: source, redis: redisClient, ttl: ttl, logger: logger}
}

// GetActive returns the active template with the given name, preferring cache
func (s *CachedStore) GetActive(ctx context.Context, name string) (*Template, error) {
	if data, err := s.redis.GetTemplate(ctx, name); err == nil {
		var tmpl Template
		if err := json.Unmarshal(data, &tmpl); err == nil {
			return &tmpl, nil
		}
		// Corrupt cache entry, fall through to source
		_ = s.redis.InvalidateTemplate(ctx, name)
	} else if err != redis.Nil {
		s.logger.Warn("Template cache read failed", zap.String("template", name), zap.Error(err))
	}

	tmpl, err := s.source.GetActive(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tmpl); err == nil {
		if err := s.redis.CacheTemplate(ctx, name, data, s.ttl); err != nil {
			s.logger.Warn("Template cache write failed", zap.String("template", name), zap.Error(err))
		}
	}
	return tmpl, nil
}

// MemoryStore holds templates in process memory, used by tests and seeds
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewMemoryStore creates an in-memory template store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]*Template)}
}

// Put inserts or replaces a template
func (s *MemoryStore) Put(tmpl *Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *tmpl
	s.templates[tmpl.Name] = &copy
}

// GetActive returns the active template with the given name
func (s *MemoryStore) GetActive(ctx context.Context, name string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[name]
	if !ok || !tmpl.Active {
		return nil, ErrTemplateNotFound
	}
	copy := *tmpl
	return &copy, nil
}
