package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
	"shareit/internal/pagination"
)

const itemColumns = `id, name, description, available, owner_id, request_id, created_at, updated_at`

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (name, description, available, owner_id, request_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		item.Name,
		item.Description,
		item.Available,
		item.OwnerID,
		nullableID(item.RequestID),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := scanItem(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET name = ?, description = ?, available = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, item.Name, item.Description, item.Available, formatTime(now), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItemsByOwner(ctx context.Context, ownerID int64, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_id = ? ORDER BY id LIMIT ? OFFSET ?`
	items, err := db.queryItems(ctx, query, append([]interface{}{ownerID}, limitArgs(page)...)...)
	if err != nil {
		return pagination.Page[*models.Item]{}, fmt.Errorf("failed to get items by owner: %w", err)
	}
	return pageOf(items, page), nil
}

// SearchItems matches text case-insensitively in the name or description of available items.
// Case folding is Unicode aware.
func (db *DB) SearchItems(ctx context.Context, text string, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
	query := `SELECT ` + itemColumns + ` FROM items
              WHERE available = 1 AND (fold(name) LIKE ? ESCAPE '\' OR fold(description) LIKE ? ESCAPE '\')
              ORDER BY id LIMIT ? OFFSET ?`
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	items, err := db.queryItems(ctx, query, append([]interface{}{pattern, pattern}, limitArgs(page)...)...)
	if err != nil {
		return pagination.Page[*models.Item]{}, fmt.Errorf("failed to search items: %w", err)
	}
	return pageOf(items, page), nil
}

func (db *DB) GetItemsByRequestIDs(ctx context.Context, requestIDs []int64) ([]*models.Item, error) {
	if len(requestIDs) == 0 {
		return []*models.Item{}, nil
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE request_id IN (` + inClause(len(requestIDs)) + `) ORDER BY id`
	items, err := db.queryItems(ctx, query, int64Args(requestIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by request ids: %w", err)
	}
	return items, nil
}

func (db *DB) queryItems(ctx context.Context, query string, args ...interface{}) ([]*models.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var requestID sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Available, &item.OwnerID,
		&requestID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if requestID.Valid {
		id := requestID.Int64
		item.RequestID = &id
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
