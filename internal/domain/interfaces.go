package domain

import (
	"context"
	"time"

	"shareit/internal/models"
	"shareit/internal/pagination"
)

// TimeWindow restricts bookings by their interval relative to a reference instant.
type TimeWindow int

const (
	WindowAny     TimeWindow = iota
	WindowPast               // end < now
	WindowCurrent            // start < now AND end > now
	WindowFuture             // start > now
)

// BookingFilter selects bookings of one booker or of one owner's items.
// Exactly one of BookerID and OwnerID is set. An empty Statuses matches every status.
type BookingFilter struct {
	BookerID int64
	OwnerID  int64
	Statuses []models.BookingStatus
	Window   TimeWindow
	Now      time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	GetItemsByOwner(ctx context.Context, ownerID int64, page pagination.PageRequest) (pagination.Page[*models.Item], error)
	SearchItems(ctx context.Context, text string, page pagination.PageRequest) (pagination.Page[*models.Item], error)
	GetItemsByRequestIDs(ctx context.Context, requestIDs []int64) ([]*models.Item, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error
	// FindBookings returns one page ordered by start DESC, id DESC.
	FindBookings(ctx context.Context, filter BookingFilter, page pagination.PageRequest) (pagination.Page[*models.Booking], error)
	// FindLastBookings returns, per item, the active booking with the latest start before now.
	FindLastBookings(ctx context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error)
	// FindNextBookings returns, per item, the active booking with the earliest start after now.
	FindNextBookings(ctx context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error)
	HasFinishedBooking(ctx context.Context, bookerID, itemID int64, now time.Time) (bool, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByItemIDs(ctx context.Context, itemIDs []int64) (map[int64][]*models.Comment, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, request *models.ItemRequest) error
	GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error)
	// GetRequestsByRequester returns the requester's requests newest first.
	GetRequestsByRequester(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error)
	// GetRequestsExcept pages every request not filed by requesterID, newest first.
	GetRequestsExcept(ctx context.Context, requesterID int64, page pagination.PageRequest) (pagination.Page[*models.ItemRequest], error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	Create(ctx context.Context, requesterID int64, req models.BookingRequest) (*models.Booking, error)
	ChangeStatus(ctx context.Context, actorID, bookingID int64, approve bool) (*models.Booking, error)
	GetByID(ctx context.Context, viewerID, bookingID int64) (*models.Booking, error)
	ListByBooker(ctx context.Context, bookerID int64, state string, from, size int) ([]*models.Booking, error)
	ListByOwner(ctx context.Context, ownerID int64, state string, from, size int) ([]*models.Booking, error)
}

type UserService interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, id int64, patch models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type ItemService interface {
	Create(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error)
	Update(ctx context.Context, userID, itemID int64, patch models.ItemUpdate) (*models.Item, error)
	GetByID(ctx context.Context, viewerID, itemID int64) (*models.ItemDetails, error)
	ListByOwner(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemDetails, error)
	Search(ctx context.Context, userID int64, text string, from, size int) ([]*models.Item, error)
	AddComment(ctx context.Context, userID, itemID int64, text string) (*models.Comment, error)
}

type RequestService interface {
	Create(ctx context.Context, requesterID int64, description string) (*models.ItemRequest, error)
	ListOwn(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error)
	ListOthers(ctx context.Context, requesterID int64, from, size int) ([]*models.ItemRequest, error)
	GetByID(ctx context.Context, userID, requestID int64) (*models.ItemRequest, error)
}

// RateLimitStore counts requests per user in fixed windows.
type RateLimitStore interface {
	// CheckRateLimit records one request and reports whether it fits in limit for the current window.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}
