package database

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/models"
)

func (db *DB) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := `INSERT INTO comments (text, item_id, author_id, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, comment.Text, comment.ItemID, comment.AuthorID, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	err = db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, comment.AuthorID).Scan(&comment.AuthorName)
	if err != nil {
		return fmt.Errorf("failed to resolve comment author: %w", err)
	}
	comment.ID = id
	comment.Created = now
	return nil
}

// GetCommentsByItemIDs groups comments per item, oldest first.
func (db *DB) GetCommentsByItemIDs(ctx context.Context, itemIDs []int64) (map[int64][]*models.Comment, error) {
	result := make(map[int64][]*models.Comment, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	query := `SELECT c.id, c.text, c.item_id, c.author_id, u.name, c.created_at
              FROM comments c
              JOIN users u ON u.id = c.author_id
              WHERE c.item_id IN (` + inClause(len(itemIDs)) + `)
              ORDER BY c.created_at, c.id`
	rows, err := db.QueryContext(ctx, query, int64Args(itemIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Comment
		var created string
		if err := rows.Scan(&c.ID, &c.Text, &c.ItemID, &c.AuthorID, &c.AuthorName, &created); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if c.Created, err = parseTime(created); err != nil {
			return nil, err
		}
		result[c.ItemID] = append(result[c.ItemID], &c)
	}
	return result, rows.Err()
}
