package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
	"shareit/internal/pagination"
)

func (db *DB) CreateRequest(ctx context.Context, request *models.ItemRequest) error {
	query := `INSERT INTO requests (description, requester_id, created_at) VALUES (?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, request.Description, request.RequesterID, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	request.ID = id
	request.Created = now
	return nil
}

func (db *DB) GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error) {
	query := `SELECT id, description, requester_id, created_at FROM requests WHERE id = ?`
	request, err := scanRequest(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

func (db *DB) GetRequestsByRequester(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error) {
	query := `SELECT id, description, requester_id, created_at FROM requests
              WHERE requester_id = ? ORDER BY created_at DESC, id DESC`
	requests, err := db.queryRequests(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests by requester: %w", err)
	}
	return requests, nil
}

func (db *DB) GetRequestsExcept(ctx context.Context, requesterID int64, page pagination.PageRequest) (pagination.Page[*models.ItemRequest], error) {
	query := `SELECT id, description, requester_id, created_at FROM requests
              WHERE requester_id <> ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	requests, err := db.queryRequests(ctx, query, append([]interface{}{requesterID}, limitArgs(page)...)...)
	if err != nil {
		return pagination.Page[*models.ItemRequest]{}, fmt.Errorf("failed to get other requests: %w", err)
	}
	return pageOf(requests, page), nil
}

func (db *DB) queryRequests(ctx context.Context, query string, args ...interface{}) ([]*models.ItemRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*models.ItemRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*models.ItemRequest, error) {
	var r models.ItemRequest
	var created string
	if err := row.Scan(&r.ID, &r.Description, &r.RequesterID, &created); err != nil {
		return nil, err
	}
	var err error
	if r.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	return &r, nil
}
