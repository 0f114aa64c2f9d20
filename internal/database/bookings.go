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

const bookingSelect = `SELECT b.id, b.start_at, b.end_at, b.status, b.version, b.created_at, b.updated_at,
                  i.id, i.name, i.description, i.available, i.owner_id, i.request_id,
                  u.id, u.name, u.email
              FROM bookings b
              JOIN items i ON i.id = b.item_id
              JOIN users u ON u.id = b.booker_id`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (start_at, end_at, item_id, booker_id, status, version, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		formatTime(booking.Start),
		formatTime(booking.End),
		booking.ItemID,
		booking.BookerID,
		booking.Status,
		1,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion applies the status only if nobody changed the booking since fromVersion was read.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, formatTime(time.Now()), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return versionedUpdate(result)
}

// versionedUpdate maps a version-guarded UPDATE that touched nothing to ErrConcurrentModification.
func versionedUpdate(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (db *DB) FindBookings(ctx context.Context, filter domain.BookingFilter, page pagination.PageRequest) (pagination.Page[*models.Booking], error) {
	var conds []string
	var args []interface{}

	switch {
	case filter.BookerID != 0:
		conds = append(conds, "b.booker_id = ?")
		args = append(args, filter.BookerID)
	case filter.OwnerID != 0:
		conds = append(conds, "i.owner_id = ?")
		args = append(args, filter.OwnerID)
	default:
		return pagination.Page[*models.Booking]{}, errors.New("booking filter needs a booker or an owner")
	}

	if len(filter.Statuses) > 0 {
		conds = append(conds, "b.status IN ("+inClause(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	now := formatTime(filter.Now)
	switch filter.Window {
	case domain.WindowPast:
		conds = append(conds, "b.end_at < ?")
		args = append(args, now)
	case domain.WindowCurrent:
		conds = append(conds, "b.start_at < ? AND b.end_at > ?")
		args = append(args, now, now)
	case domain.WindowFuture:
		conds = append(conds, "b.start_at > ?")
		args = append(args, now)
	}

	query := bookingSelect + ` WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY b.start_at DESC, b.id DESC LIMIT ? OFFSET ?`
	args = append(args, limitArgs(page)...)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Page[*models.Booking]{}, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return pagination.Page[*models.Booking]{}, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[*models.Booking]{}, fmt.Errorf("failed to find bookings: %w", err)
	}
	return pageOf(bookings, page), nil
}

func (db *DB) FindLastBookings(ctx context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error) {
	return db.findNearestBookings(ctx, itemIDs, "b.start_at < ?", "b.start_at DESC, b.id DESC", now)
}

func (db *DB) FindNextBookings(ctx context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error) {
	return db.findNearestBookings(ctx, itemIDs, "b.start_at > ?", "b.start_at ASC, b.id ASC", now)
}

// findNearestBookings picks the first active booking per item under the given order.
func (db *DB) findNearestBookings(ctx context.Context, itemIDs []int64, cond, order string, now time.Time) (map[int64]*models.BookingShort, error) {
	result := make(map[int64]*models.BookingShort, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	query := `SELECT id, booker_id, item_id FROM (
                  SELECT b.id, b.booker_id, b.item_id,
                         ROW_NUMBER() OVER (PARTITION BY b.item_id ORDER BY ` + order + `) AS rn
                  FROM bookings b
                  WHERE b.item_id IN (` + inClause(len(itemIDs)) + `)
                    AND b.status IN (?, ?)
                    AND ` + cond + `
              ) WHERE rn = 1`
	args := int64Args(itemIDs)
	args = append(args, models.StatusWaiting, models.StatusApproved, formatTime(now))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.BookingShort
		if err := rows.Scan(&s.ID, &s.BookerID, &s.ItemID); err != nil {
			return nil, fmt.Errorf("failed to scan booking summary: %w", err)
		}
		result[s.ItemID] = &s
	}
	return result, rows.Err()
}

// HasFinishedBooking reports whether the booker has a booking of the item that ended before now
// and was neither rejected nor canceled.
func (db *DB) HasFinishedBooking(ctx context.Context, bookerID, itemID int64, now time.Time) (bool, error) {
	query := `SELECT EXISTS (
                  SELECT 1 FROM bookings
                  WHERE booker_id = ? AND item_id = ? AND end_at < ? AND status NOT IN (?, ?)
              )`
	var exists bool
	err := db.QueryRowContext(ctx, query, bookerID, itemID, formatTime(now),
		models.StatusRejected, models.StatusCanceled).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check finished booking: %w", err)
	}
	return exists, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var item models.Item
	var booker models.User
	var start, end, createdAt, updatedAt string
	var requestID sql.NullInt64

	err := row.Scan(
		&b.ID, &start, &end, &b.Status, &b.Version, &createdAt, &updatedAt,
		&item.ID, &item.Name, &item.Description, &item.Available, &item.OwnerID, &requestID,
		&booker.ID, &booker.Name, &booker.Email,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		dst *time.Time
		raw string
	}{{&b.Start, start}, {&b.End, end}, {&b.CreatedAt, createdAt}, {&b.UpdatedAt, updatedAt}} {
		if *f.dst, err = parseTime(f.raw); err != nil {
			return nil, err
		}
	}

	if requestID.Valid {
		id := requestID.Int64
		item.RequestID = &id
	}
	b.ItemID = item.ID
	b.BookerID = booker.ID
	b.Item = &item
	b.Booker = &booker
	return &b, nil
}
