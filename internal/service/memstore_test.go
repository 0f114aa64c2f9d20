package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
	"shareit/internal/pagination"
)

// memStore keeps every store in maps so the services can be exercised without SQLite.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*models.User
	items    map[int64]*models.Item
	bookings map[int64]*models.Booking
	comments []*models.Comment
	requests map[int64]*models.ItemRequest
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		items:    make(map[int64]*models.Item),
		bookings: make(map[int64]*models.Booking),
		requests: make(map[int64]*models.ItemRequest),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: %s", domain.ErrEmailConflict, user.Email)
		}
	}
	user.ID = m.id()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUserNotFound, id)
	}
	out := *u
	return &out, nil
}

func (m *memStore) GetAllUsers(_ context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrUserNotFound, user.ID)
	}
	for _, u := range m.users {
		if u.ID != user.ID && strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: %s", domain.ErrEmailConflict, user.Email)
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrUserNotFound, id)
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CreateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id()
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *memStore) GetItemByID(_ context.Context, id int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	out := *item
	return &out, nil
}

func (m *memStore) UpdateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrItemNotFound, item.ID)
	}
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *memStore) filterItems(keep func(*models.Item) bool) []*models.Item {
	var out []*models.Item
	for _, item := range m.items {
		if keep(item) {
			c := *item
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) GetItemsByOwner(ctx context.Context, ownerID int64, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
	m.mu.Lock()
	items := m.filterItems(func(i *models.Item) bool { return i.OwnerID == ownerID })
	m.mu.Unlock()
	return pagination.Slice(items)(ctx, page)
}

func (m *memStore) SearchItems(ctx context.Context, text string, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
	needle := strings.ToLower(text)
	m.mu.Lock()
	items := m.filterItems(func(i *models.Item) bool {
		return i.Available && (strings.Contains(strings.ToLower(i.Name), needle) ||
			strings.Contains(strings.ToLower(i.Description), needle))
	})
	m.mu.Unlock()
	return pagination.Slice(items)(ctx, page)
}

func (m *memStore) GetItemsByRequestIDs(_ context.Context, requestIDs []int64) ([]*models.Item, error) {
	wanted := make(map[int64]bool, len(requestIDs))
	for _, id := range requestIDs {
		wanted[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterItems(func(i *models.Item) bool { return i.RequestID != nil && wanted[*i.RequestID] }), nil
}

func (m *memStore) CreateBooking(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking.ID = m.id()
	booking.Version = 1
	stored := *booking
	stored.Item, stored.Booker = nil, nil
	m.bookings[booking.ID] = &stored
	return nil
}

// resolved copies a stored booking with its item and booker attached. Callers hold mu.
func (m *memStore) resolved(b *models.Booking) *models.Booking {
	out := *b
	if item, ok := m.items[b.ItemID]; ok {
		c := *item
		out.Item = &c
	}
	if user, ok := m.users[b.BookerID]; ok {
		c := *user
		out.Booker = &c
	}
	return &out
}

func (m *memStore) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrBookingNotFound, id)
	}
	return m.resolved(b), nil
}

func (m *memStore) UpdateBookingStatusWithVersion(_ context.Context, id, fromVersion int64, status models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Version != fromVersion {
		return domain.ErrConcurrentModification
	}
	b.Status = status
	b.Version++
	return nil
}

func matchesFilter(f domain.BookingFilter, b *models.Booking) bool {
	if f.BookerID != 0 && b.BookerID != f.BookerID {
		return false
	}
	if f.OwnerID != 0 && b.OwnerID() != f.OwnerID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == b.Status {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	switch f.Window {
	case domain.WindowPast:
		return b.End.Before(f.Now)
	case domain.WindowCurrent:
		return b.Start.Before(f.Now) && b.End.After(f.Now)
	case domain.WindowFuture:
		return b.Start.After(f.Now)
	}
	return true
}

func (m *memStore) FindBookings(ctx context.Context, filter domain.BookingFilter, page pagination.PageRequest) (pagination.Page[*models.Booking], error) {
	m.mu.Lock()
	var out []*models.Booking
	for _, b := range m.bookings {
		r := m.resolved(b)
		if matchesFilter(filter, r) {
			out = append(out, r)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.After(out[j].Start)
		}
		return out[i].ID > out[j].ID
	})
	return pagination.Slice(out)(ctx, page)
}

func (m *memStore) nearest(itemIDs []int64, better func(candidate, current *models.Booking) bool, eligible func(*models.Booking) bool) map[int64]*models.BookingShort {
	wanted := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	best := make(map[int64]*models.Booking)
	for _, b := range m.bookings {
		if !wanted[b.ItemID] || !b.Status.Active() || !eligible(b) {
			continue
		}
		if cur, ok := best[b.ItemID]; !ok || better(b, cur) {
			best[b.ItemID] = b
		}
	}

	out := make(map[int64]*models.BookingShort, len(best))
	for id, b := range best {
		out[id] = b.Short()
	}
	return out
}

func (m *memStore) FindLastBookings(_ context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error) {
	return m.nearest(itemIDs,
		func(c, cur *models.Booking) bool { return c.Start.After(cur.Start) },
		func(b *models.Booking) bool { return b.Start.Before(now) }), nil
}

func (m *memStore) FindNextBookings(_ context.Context, itemIDs []int64, now time.Time) (map[int64]*models.BookingShort, error) {
	return m.nearest(itemIDs,
		func(c, cur *models.Booking) bool { return c.Start.Before(cur.Start) },
		func(b *models.Booking) bool { return b.Start.After(now) }), nil
}

func (m *memStore) HasFinishedBooking(_ context.Context, bookerID, itemID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookerID == bookerID && b.ItemID == itemID && b.End.Before(now) &&
			b.Status != models.StatusRejected && b.Status != models.StatusCanceled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = m.id()
	comment.Created = time.Now().UTC()
	if u, ok := m.users[comment.AuthorID]; ok {
		comment.AuthorName = u.Name
	}
	stored := *comment
	m.comments = append(m.comments, &stored)
	return nil
}

func (m *memStore) GetCommentsByItemIDs(_ context.Context, itemIDs []int64) (map[int64][]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]*models.Comment)
	for _, id := range itemIDs {
		for _, c := range m.comments {
			if c.ItemID == id {
				cc := *c
				out[id] = append(out[id], &cc)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateRequest(_ context.Context, request *models.ItemRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request.ID = m.id()
	request.Created = time.Now().UTC()
	stored := *request
	m.requests[request.ID] = &stored
	return nil
}

func (m *memStore) GetRequestByID(_ context.Context, id int64) (*models.ItemRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrRequestNotFound, id)
	}
	out := *r
	return &out, nil
}

func (m *memStore) sortedRequests(keep func(*models.ItemRequest) bool) []*models.ItemRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ItemRequest
	for _, r := range m.requests {
		if keep(r) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memStore) GetRequestsByRequester(_ context.Context, requesterID int64) ([]*models.ItemRequest, error) {
	return m.sortedRequests(func(r *models.ItemRequest) bool { return r.RequesterID == requesterID }), nil
}

func (m *memStore) GetRequestsExcept(ctx context.Context, requesterID int64, page pagination.PageRequest) (pagination.Page[*models.ItemRequest], error) {
	requests := m.sortedRequests(func(r *models.ItemRequest) bool { return r.RequesterID != requesterID })
	return pagination.Slice(requests)(ctx, page)
}

var (
	_ domain.UserStore    = (*memStore)(nil)
	_ domain.ItemStore    = (*memStore)(nil)
	_ domain.BookingStore = (*memStore)(nil)
	_ domain.CommentStore = (*memStore)(nil)
	_ domain.RequestStore = (*memStore)(nil)
)
