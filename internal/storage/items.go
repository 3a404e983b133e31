package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"feedpulse/internal/core/domain"
)

// Item is an alias for the domain type.
type Item = domain.Item

// ErrItemNotFound is returned when an item id does not exist.
var ErrItemNotFound = errors.New("item not found")

const itemColumns = `i.id, i.source_id, s.title, i.guid, i.title, i.link, i.description, i.content,
	i.cover_image, i.published_at, i.created_at, i.is_read, i.is_favorite, i.is_trashed, i.trashed_at,
	i.ai_label_status, i.ai_labels, i.ai_label_error,
	i.ai_summary_status, i.ai_summary, i.ai_summary_error, i.ai_summary_generated_at`

// InsertItem inserts an item unless one with the same (source_id, guid)
// already exists. Returns true when a row was actually inserted.
func (db *DB) InsertItem(ctx context.Context, item *Item) (bool, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO items (source_id, guid, title, link, description, content, cover_image, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id, guid) DO NOTHING
		RETURNING id, created_at
	`, toUUID(item.SourceID), item.GUID, item.Title, item.Link,
		toText(item.Description), toText(item.Content), toText(item.CoverImage),
		toTimestamptz(item.PublishedAt))

	var id pgtype.UUID

	var createdAt pgtype.Timestamptz

	if err := row.Scan(&id, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("insert item: %w", err)
	}

	item.ID = fromUUID(id)
	item.CreatedAt = createdAt.Time
	item.LabelStatus = domain.LabelStatusPending
	item.SummaryStatus = domain.SummaryStatusPending

	return true, nil
}

func (db *DB) GetItem(ctx context.Context, id string) (*Item, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items i JOIN sources s ON s.id = i.source_id
		WHERE i.id = $1
	`, toUUID(id))

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}

		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// GetPendingLabelItems returns the oldest items awaiting labeling.
func (db *DB) GetPendingLabelItems(ctx context.Context, limit int) ([]Item, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i JOIN sources s ON s.id = i.source_id
		WHERE i.ai_label_status = 'pending'
		ORDER BY i.created_at ASC
		LIMIT $1
	`, limit)
}

// ClaimItemsForLabeling conditionally moves items from pending to
// processing and returns the ids that were actually claimed. Items taken
// by a concurrent invocation are simply absent from the result.
func (db *DB) ClaimItemsForLabeling(ctx context.Context, ids []string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		UPDATE items
		SET ai_label_status = 'processing'
		WHERE id = ANY($1) AND ai_label_status = 'pending'
		RETURNING id
	`, toUUIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("claim items for labeling: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// SaveItemLabels records a successful labeling result.
func (db *DB) SaveItemLabels(ctx context.Context, id string, labels *domain.LabelSet) error {
	payload, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_labels = $2, ai_label_status = 'done', ai_label_error = NULL
		WHERE id = $1 AND ai_label_status = 'processing'
	`, toUUID(id), payload); err != nil {
		return fmt.Errorf("save item labels: %w", err)
	}

	return nil
}

// SaveItemLabelError records a labeling failure for later retry.
func (db *DB) SaveItemLabelError(ctx context.Context, id, message string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_label_status = 'error', ai_label_error = $2
		WHERE id = $1 AND ai_label_status = 'processing'
	`, toUUID(id), message); err != nil {
		return fmt.Errorf("save item label error: %w", err)
	}

	return nil
}

// ResetStaleProcessing returns items left in processing by an earlier
// run back to pending. One process owns the pipeline, so at startup any
// processing row is an orphan from a crash between claim and save.
func (db *DB) ResetStaleProcessing(ctx context.Context) (int64, error) {
	labels, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_label_status = 'pending'
		WHERE ai_label_status = 'processing'
	`)
	if err != nil {
		return 0, fmt.Errorf("reset stale label processing: %w", err)
	}

	summaries, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary_status = 'pending'
		WHERE ai_summary_status = 'processing'
	`)
	if err != nil {
		return 0, fmt.Errorf("reset stale summary processing: %w", err)
	}

	return labels.RowsAffected() + summaries.RowsAffected(), nil
}

// GetLabelErrorItemIDs returns ids of items stuck in label error state.
func (db *DB) GetLabelErrorItemIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM items
		WHERE ai_label_status = 'error'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get label error items: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ResetLabelErrors moves error items back to pending. The status guard
// keeps a racing processor's concurrent done/error write intact.
func (db *DB) ResetLabelErrors(ctx context.Context, ids []string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_label_status = 'pending', ai_label_error = NULL
		WHERE id = ANY($1) AND ai_label_status = 'error'
	`, toUUIDs(ids))
	if err != nil {
		return 0, fmt.Errorf("reset label errors: %w", err)
	}

	return tag.RowsAffected(), nil
}

// GetPendingSummaryItems returns labeled items awaiting summarization.
func (db *DB) GetPendingSummaryItems(ctx context.Context, limit int) ([]Item, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i JOIN sources s ON s.id = i.source_id
		WHERE i.ai_summary_status = 'pending' AND i.ai_label_status = 'done'
		ORDER BY i.created_at ASC
		LIMIT $1
	`, limit)
}

// MarkSummaryIgnored excludes an item from summarization without an API
// call. Returns false when the item was no longer pending.
func (db *DB) MarkSummaryIgnored(ctx context.Context, id, reason string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary_status = 'ignored', ai_summary_error = $2
		WHERE id = $1 AND ai_summary_status = 'pending'
	`, toUUID(id), toText(reason))
	if err != nil {
		return false, fmt.Errorf("mark summary ignored: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ClaimItemForSummary conditionally moves a labeled item from pending to
// processing. Returns false when another invocation got there first.
func (db *DB) ClaimItemForSummary(ctx context.Context, id string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary_status = 'processing'
		WHERE id = $1 AND ai_summary_status = 'pending' AND ai_label_status = 'done'
	`, toUUID(id))
	if err != nil {
		return false, fmt.Errorf("claim item for summary: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SaveItemSummary records a successful summary with its generation time.
func (db *DB) SaveItemSummary(ctx context.Context, id, summary string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary = $2, ai_summary_status = 'success', ai_summary_error = NULL,
			ai_summary_generated_at = NOW()
		WHERE id = $1 AND ai_summary_status = 'processing'
	`, toUUID(id), summary); err != nil {
		return fmt.Errorf("save item summary: %w", err)
	}

	return nil
}

// SaveItemSummaryError records a summarization failure for later retry.
func (db *DB) SaveItemSummaryError(ctx context.Context, id, message string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary_status = 'error', ai_summary_error = $2
		WHERE id = $1 AND ai_summary_status = 'processing'
	`, toUUID(id), message); err != nil {
		return fmt.Errorf("save item summary error: %w", err)
	}

	return nil
}

// GetSummaryErrorItemIDs returns ids of items stuck in summary error state.
func (db *DB) GetSummaryErrorItemIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM items
		WHERE ai_summary_status = 'error' AND ai_label_status = 'done'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get summary error items: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ResetSummaryErrors moves error items back to pending under the same
// status guard as label resets.
func (db *DB) ResetSummaryErrors(ctx context.Context, ids []string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET ai_summary_status = 'pending', ai_summary_error = NULL
		WHERE id = ANY($1) AND ai_summary_status = 'error'
	`, toUUIDs(ids))
	if err != nil {
		return 0, fmt.Errorf("reset summary errors: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SetItemRead flips the read flag and returns the source's recomputed
// unread counter.
func (db *DB) SetItemRead(ctx context.Context, id string, isRead bool) (int, error) {
	var sourceID pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		UPDATE items SET is_read = $2 WHERE id = $1 RETURNING source_id
	`, toUUID(id), isRead).Scan(&sourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrItemNotFound
		}

		return 0, fmt.Errorf("set item read: %w", err)
	}

	return db.RecomputeUnreadCount(ctx, fromUUID(sourceID))
}

func (db *DB) SetItemFavorite(ctx context.Context, id string, isFavorite bool) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items SET is_favorite = $2 WHERE id = $1
	`, toUUID(id), isFavorite)
	if err != nil {
		return fmt.Errorf("set item favorite: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

// TrashItem soft-deletes an item.
func (db *DB) TrashItem(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items SET is_trashed = TRUE, trashed_at = NOW() WHERE id = $1
	`, toUUID(id))
	if err != nil {
		return fmt.Errorf("trash item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

// RestoreItem brings an item back from the trash.
func (db *DB) RestoreItem(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items SET is_trashed = FALSE, trashed_at = NULL WHERE id = $1
	`, toUUID(id))
	if err != nil {
		return fmt.Errorf("restore item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

// EmptyTrash hard-deletes all trashed items. Returns the deleted count.
func (db *DB) EmptyTrash(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM items WHERE is_trashed`)
	if err != nil {
		return 0, fmt.Errorf("empty trash: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ItemCounts aggregates item states for the consuming layer.
type ItemCounts struct {
	Unread   int
	Favorite int
	Trashed  int
}

func (db *DB) GetItemCounts(ctx context.Context) (*ItemCounts, error) {
	var counts ItemCounts

	if err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_read AND NOT is_trashed),
			COUNT(*) FILTER (WHERE is_favorite AND NOT is_trashed),
			COUNT(*) FILTER (WHERE is_trashed)
		FROM items
	`).Scan(&counts.Unread, &counts.Favorite, &counts.Trashed); err != nil {
		return nil, fmt.Errorf("get item counts: %w", err)
	}

	return &counts, nil
}

func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}

		items = append(items, *item)
	}

	return items, rows.Err()
}

type itemRow interface {
	Scan(dest ...any) error
}

func scanItem(row itemRow) (*Item, error) {
	var it Item

	var id, sourceID pgtype.UUID

	var description, content, coverImage, labelError, summary, summaryError pgtype.Text

	var publishedAt, createdAt, trashedAt, summaryGeneratedAt pgtype.Timestamptz

	var labelsJSON []byte

	if err := row.Scan(&id, &sourceID, &it.SourceTitle, &it.GUID, &it.Title, &it.Link,
		&description, &content, &coverImage, &publishedAt, &createdAt,
		&it.IsRead, &it.IsFavorite, &it.IsTrashed, &trashedAt,
		&it.LabelStatus, &labelsJSON, &labelError,
		&it.SummaryStatus, &summary, &summaryError, &summaryGeneratedAt); err != nil {
		return nil, err
	}

	it.ID = fromUUID(id)
	it.SourceID = fromUUID(sourceID)
	it.Description = description.String
	it.Content = content.String
	it.CoverImage = coverImage.String
	it.PublishedAt = publishedAt.Time
	it.CreatedAt = createdAt.Time
	it.TrashedAt = trashedAt.Time
	it.LabelError = labelError.String
	it.Summary = summary.String
	it.SummaryError = summaryError.String
	it.SummaryGeneratedAt = summaryGeneratedAt.Time

	if len(labelsJSON) > 0 {
		var labels domain.LabelSet
		if err := json.Unmarshal(labelsJSON, &labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}

		it.Labels = &labels
	}

	return &it, nil
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	var ids []string

	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}

		ids = append(ids, fromUUID(id))
	}

	return ids, rows.Err()
}
