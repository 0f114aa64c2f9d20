package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"
	"shareit/internal/pagination"

	"github.com/rs/zerolog"
)

// bucket is the query behind one listing state.
type bucket struct {
	window   domain.TimeWindow
	statuses []models.BookingStatus
}

var bookingBuckets = map[models.BookingState]bucket{
	models.StateAll: {
		window:   domain.WindowAny,
		statuses: []models.BookingStatus{models.StatusWaiting, models.StatusApproved, models.StatusRejected, models.StatusCanceled},
	},
	models.StatePast:     {window: domain.WindowPast},
	models.StateCurrent:  {window: domain.WindowCurrent},
	models.StateFuture:   {window: domain.WindowFuture, statuses: []models.BookingStatus{models.StatusApproved, models.StatusWaiting}},
	models.StateWaiting:  {window: domain.WindowAny, statuses: []models.BookingStatus{models.StatusWaiting}},
	models.StateRejected: {window: domain.WindowAny, statuses: []models.BookingStatus{models.StatusRejected}},
}

type BookingService struct {
	users    domain.UserStore
	items    domain.ItemStore
	bookings domain.BookingStore
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(users domain.UserStore, items domain.ItemStore, bookings domain.BookingStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		users:    users,
		items:    items,
		bookings: bookings,
		eventBus: eventBus,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *BookingService) Create(ctx context.Context, requesterID int64, req models.BookingRequest) (*models.Booking, error) {
	booker, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	item, err := s.items.GetItemByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: item %d", domain.ErrItemUnavailable, item.ID)
	}
	if item.OwnerID == booker.ID {
		return nil, fmt.Errorf("%w: item %d", domain.ErrSelfBooking, item.ID)
	}

	booking := &models.Booking{
		Start:    req.Start,
		End:      req.End,
		ItemID:   item.ID,
		BookerID: booker.ID,
		Status:   models.StatusWaiting,
		Item:     item,
		Booker:   booker,
	}
	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", item.ID).
		Int64("booker_id", booker.ID).
		Msg("Booking created")
	s.publishEvent(events.EventBookingCreated, booking, requesterID)

	return booking, nil
}

// ChangeStatus records the owner's decision on a waiting booking.
func (s *BookingService) ChangeStatus(ctx context.Context, actorID, bookingID int64, approve bool) (*models.Booking, error) {
	if _, err := s.users.GetUserByID(ctx, actorID); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID() != actorID {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotOwner, bookingID)
	}

	target := models.StatusRejected
	if approve {
		target = models.StatusApproved
	}
	if err := checkDecision(booking.Status, target); err != nil {
		return nil, err
	}

	err = s.bookings.UpdateBookingStatusWithVersion(ctx, bookingID, booking.Version, target)
	if errors.Is(err, domain.ErrConcurrentModification) {
		return nil, s.explainConflict(ctx, bookingID, target, err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("from", string(booking.Status)).
		Str("to", string(target)).
		Int64("owner_id", actorID).
		Msg("Booking status changed")

	booking.Status = target
	booking.Version++

	eventType := events.EventBookingRejected
	if approve {
		eventType = events.EventBookingApproved
	}
	s.publishEvent(eventType, booking, actorID)

	return booking, nil
}

// checkDecision allows a single decision on a waiting booking.
func checkDecision(current, target models.BookingStatus) error {
	if current == target {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyInState, current)
	}
	if current != models.StatusWaiting {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyDecided, current)
	}
	return nil
}

// explainConflict reloads a booking after a lost update so the caller sees the decision that won.
func (s *BookingService) explainConflict(ctx context.Context, bookingID int64, target models.BookingStatus, conflict error) error {
	fresh, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return conflict
	}
	if err := checkDecision(fresh.Status, target); err != nil {
		return err
	}
	return conflict
}

func (s *BookingService) GetByID(ctx context.Context, viewerID, bookingID int64) (*models.Booking, error) {
	if _, err := s.users.GetUserByID(ctx, viewerID); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if viewerID != booking.BookerID && viewerID != booking.OwnerID() {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotAuthorized, bookingID)
	}
	return booking, nil
}

func (s *BookingService) ListByBooker(ctx context.Context, bookerID int64, state string, from, size int) ([]*models.Booking, error) {
	return s.list(ctx, bookerID, domain.BookingFilter{BookerID: bookerID}, state, from, size)
}

func (s *BookingService) ListByOwner(ctx context.Context, ownerID int64, state string, from, size int) ([]*models.Booking, error) {
	return s.list(ctx, ownerID, domain.BookingFilter{OwnerID: ownerID}, state, from, size)
}

func (s *BookingService) list(ctx context.Context, userID int64, filter domain.BookingFilter, rawState string, from, size int) ([]*models.Booking, error) {
	state, ok := models.ParseBookingState(rawState)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownState, rawState)
	}
	if err := checkWindow(from, size); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	b := bookingBuckets[state]
	filter.Window = b.window
	filter.Statuses = b.statuses
	filter.Now = s.now()

	return pagination.Window(ctx, from, size, func(ctx context.Context, page pagination.PageRequest) (pagination.Page[*models.Booking], error) {
		return s.bookings.FindBookings(ctx, filter, page)
	})
}

// AttachBookingSummaries fills last and next bookings of the items the viewer owns.
// Items of other owners always end up with both fields nil.
func (s *BookingService) AttachBookingSummaries(ctx context.Context, viewerID int64, items []*models.ItemDetails) error {
	var owned []int64
	for _, item := range items {
		item.LastBooking = nil
		item.NextBooking = nil
		if item.OwnerID == viewerID {
			owned = append(owned, item.ID)
		}
	}
	if len(owned) == 0 {
		return nil
	}

	now := s.now()
	last, err := s.bookings.FindLastBookings(ctx, owned, now)
	if err != nil {
		return err
	}
	next, err := s.bookings.FindNextBookings(ctx, owned, now)
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.OwnerID != viewerID {
			continue
		}
		item.LastBooking = last[item.ID]
		item.NextBooking = next[item.ID]
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		ItemID:      booking.ItemID,
		OwnerID:     booking.OwnerID(),
		BookerID:    booking.BookerID,
		Status:      string(booking.Status),
		Start:       booking.Start,
		End:         booking.End,
		ChangedByID: changedByID,
	}
	if booking.Item != nil {
		payload.ItemName = booking.Item.Name
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

// checkWindow rejects offsets and page sizes the listings cannot serve.
func checkWindow(from, size int) error {
	if from < 0 || size < 1 || size > pagination.MaxSize {
		return fmt.Errorf("%w: from=%d size=%d", domain.ErrInvalidPagination, from, size)
	}
	return nil
}
