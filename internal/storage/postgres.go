package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// PostgresStorage persists contribution drafts
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	storage := NewPostgresStorageFromDB(db)
	if err := storage.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStorageFromDB wraps an open database handle
func NewPostgresStorageFromDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Init creates necessary tables
func (s *PostgresStorage) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS contribution_drafts (
		key VARCHAR(36) PRIMARY KEY,
		owner VARCHAR(64) NOT NULL,
		mode VARCHAR(16) NOT NULL,
		contribution_id VARCHAR(64),
		scientific_name TEXT,
		state JSONB NOT NULL,
		image_keys TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_contribution_drafts_owner ON contribution_drafts(owner);`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// SaveDraft creates or updates a draft row
func (s *PostgresStorage) SaveDraft(ctx context.Context, d *models.Draft) error {
	query := `
	INSERT INTO contribution_drafts (
		key, owner, mode, contribution_id, scientific_name,
		state, image_keys, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	) ON CONFLICT (key) DO UPDATE SET
		mode = EXCLUDED.mode,
		contribution_id = EXCLUDED.contribution_id,
		scientific_name = EXCLUDED.scientific_name,
		state = EXCLUDED.state,
		image_keys = EXCLUDED.image_keys,
		updated_at = EXCLUDED.updated_at
	WHERE contribution_drafts.owner = EXCLUDED.owner
	;`

	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	state, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	keys := []string{}
	for _, img := range d.FileImages() {
		if img.StorageKey != "" {
			keys = append(keys, img.StorageKey)
		}
	}

	_, err = s.db.ExecContext(ctx, query,
		d.Key, d.Owner, d.Mode, nullString(d.ContributionID), d.Form.ScientificName,
		state, pq.Array(keys), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("key", d.Key).Msg("Failed to save draft to postgres")
		return err
	}

	return nil
}

// GetDraft retrieves a draft owned by owner. A missing row is ErrDraftNotFound.
func (s *PostgresStorage) GetDraft(ctx context.Context, owner, key string) (*models.Draft, error) {
	query := `SELECT state FROM contribution_drafts WHERE key = $1 AND owner = $2`

	var state []byte
	err := s.db.QueryRowContext(ctx, query, key, owner).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to get draft from postgres")
		return nil, fmt.Errorf("failed to get draft %s: %w", key, err)
	}

	d := &models.Draft{}
	if err := json.Unmarshal(state, d); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to decode draft")
		return nil, fmt.Errorf("failed to decode draft %s: %w", key, err)
	}
	return d, nil
}

// DraftSummary is a list row of a user's drafts
type DraftSummary struct {
	Key            string
	Mode           string
	ContributionID string
	ScientificName string
	UpdatedAt      time.Time
}

// ListDrafts returns the drafts of owner, most recent first
func (s *PostgresStorage) ListDrafts(ctx context.Context, owner string) ([]DraftSummary, error) {
	query := `
	SELECT key, mode, contribution_id, scientific_name, updated_at
	FROM contribution_drafts
	WHERE owner = $1
	ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := []DraftSummary{}
	for rows.Next() {
		var d DraftSummary
		var contributionID, scientificName sql.NullString
		if err := rows.Scan(&d.Key, &d.Mode, &contributionID, &scientificName, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.ContributionID = contributionID.String
		d.ScientificName = scientificName.String
		drafts = append(drafts, d)
	}

	return drafts, rows.Err()
}

// DeleteDraft removes a draft and returns the object keys of its images.
// The bool is false when no draft matched.
func (s *PostgresStorage) DeleteDraft(ctx context.Context, owner, key string) ([]string, bool, error) {
	query := `DELETE FROM contribution_drafts WHERE key = $1 AND owner = $2 RETURNING image_keys`

	var keys []string
	err := s.db.QueryRowContext(ctx, query, key, owner).Scan(pq.Array(&keys))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete draft")
		return nil, false, err
	}

	return keys, true, nil
}

// HealthCheck verifies the database connection
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close closes the database handle
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
