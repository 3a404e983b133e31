package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"feedpulse/internal/core/domain"
)

// Source is an alias for the domain type.
type Source = domain.Source

// ErrSourceNotFound is returned when a source id does not exist.
var ErrSourceNotFound = errors.New("source not found")

const sourceColumns = `id, url, title, description, category, icon, unread_count, is_active, created_at, last_fetched`

func (db *DB) CreateSource(ctx context.Context, source *Source) error {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO sources (url, title, description, category, icon)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, source.URL, source.Title, source.Description, source.Category, source.Icon)

	var id pgtype.UUID

	var createdAt pgtype.Timestamptz

	if err := row.Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	source.ID = fromUUID(id)
	source.CreatedAt = createdAt.Time

	return nil
}

func (db *DB) GetSource(ctx context.Context, id string) (*Source, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, toUUID(id))

	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}

		return nil, fmt.Errorf("get source: %w", err)
	}

	return source, nil
}

// GetActiveSources returns active sources in registration order, which is
// the order the fetch scheduler walks them in.
func (db *DB) GetActiveSources(ctx context.Context) ([]Source, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE is_active
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get active sources: %w", err)
	}
	defer rows.Close()

	var sources []Source

	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}

		sources = append(sources, *source)
	}

	return sources, rows.Err()
}

func (db *DB) UpdateSource(ctx context.Context, id, title, category, icon string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE sources
		SET title = $2, category = $3, icon = $4
		WHERE id = $1
	`, toUUID(id), title, category, icon)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}

	return nil
}

func (db *DB) UpdateSourceLastFetched(ctx context.Context, id string, t time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE sources SET last_fetched = $2 WHERE id = $1
	`, toUUID(id), toTimestamptz(t)); err != nil {
		return fmt.Errorf("update source last_fetched: %w", err)
	}

	return nil
}

// DeleteSource removes a source; its items go with it via the cascade.
// Returns the number of items that were deleted.
func (db *DB) DeleteSource(ctx context.Context, id string) (int64, error) {
	var itemCount int64

	if err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM items WHERE source_id = $1
	`, toUUID(id)).Scan(&itemCount); err != nil {
		return 0, fmt.Errorf("count source items: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, toUUID(id))
	if err != nil {
		return 0, fmt.Errorf("delete source: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return 0, ErrSourceNotFound
	}

	return itemCount, nil
}

// RecomputeUnreadCount re-derives the source's unread counter from its
// items. Called after ingestion and after read-state mutations.
func (db *DB) RecomputeUnreadCount(ctx context.Context, sourceID string) (int, error) {
	var count int

	if err := db.Pool.QueryRow(ctx, `
		UPDATE sources
		SET unread_count = (
			SELECT COUNT(*) FROM items
			WHERE source_id = $1 AND NOT is_read AND NOT is_trashed
		)
		WHERE id = $1
		RETURNING unread_count
	`, toUUID(sourceID)).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSourceNotFound
		}

		return 0, fmt.Errorf("recompute unread count: %w", err)
	}

	return count, nil
}

type sourceRow interface {
	Scan(dest ...any) error
}

func scanSource(row sourceRow) (*Source, error) {
	var s Source

	var id pgtype.UUID

	var createdAt, lastFetched pgtype.Timestamptz

	if err := row.Scan(&id, &s.URL, &s.Title, &s.Description, &s.Category, &s.Icon,
		&s.UnreadCount, &s.IsActive, &createdAt, &lastFetched); err != nil {
		return nil, err
	}

	s.ID = fromUUID(id)
	s.CreatedAt = createdAt.Time
	s.LastFetched = lastFetched.Time

	return &s, nil
}
