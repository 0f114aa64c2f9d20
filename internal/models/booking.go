package models

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusWaiting  BookingStatus = "WAITING"
	StatusApproved BookingStatus = "APPROVED"
	StatusRejected BookingStatus = "REJECTED"
	StatusCanceled BookingStatus = "CANCELED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusApproved, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// Active reports whether a booking with this status still occupies the item.
func (s BookingStatus) Active() bool {
	return s == StatusWaiting || s == StatusApproved
}

// BookingState names a listing bucket.
type BookingState string

const (
	StateAll      BookingState = "ALL"
	StateCurrent  BookingState = "CURRENT"
	StatePast     BookingState = "PAST"
	StateFuture   BookingState = "FUTURE"
	StateWaiting  BookingState = "WAITING"
	StateRejected BookingState = "REJECTED"
)

// BookingStates lists every bucket in a stable order.
var BookingStates = []BookingState{StateAll, StateCurrent, StatePast, StateFuture, StateWaiting, StateRejected}

// ParseBookingState accepts one of the six bucket tokens. An empty string means ALL.
// Tokens are case sensitive.
func ParseBookingState(raw string) (BookingState, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateAll, true
	}
	for _, s := range BookingStates {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

type Booking struct {
	ID        int64         `json:"id"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	ItemID    int64         `json:"-"`
	BookerID  int64         `json:"-"`
	Status    BookingStatus `json:"status"`
	Item      *Item         `json:"item,omitempty"`
	Booker    *User         `json:"booker,omitempty"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`
	Version   int64         `json:"-"`
}

// OwnerID returns the owner of the booked item, or zero when the item is not resolved.
func (b *Booking) OwnerID() int64 {
	if b.Item == nil {
		return 0
	}
	return b.Item.OwnerID
}

// Short projects the booking for item listings.
func (b *Booking) Short() *BookingShort {
	return &BookingShort{ID: b.ID, BookerID: b.BookerID, ItemID: b.ItemID}
}

// BookingRequest is the input of a booking creation.
type BookingRequest struct {
	ItemID int64     `json:"itemId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// BookingShort is the last/next booking summary attached to item listings.
type BookingShort struct {
	ID       int64 `json:"id"`
	BookerID int64 `json:"bookerId"`
	ItemID   int64 `json:"itemId"`
}
