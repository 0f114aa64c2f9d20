package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
	"shareit/internal/pagination"

	"github.com/rs/zerolog"
)

// BookingSummarizer enriches item views with their surrounding bookings.
type BookingSummarizer interface {
	AttachBookingSummaries(ctx context.Context, viewerID int64, items []*models.ItemDetails) error
}

type ItemService struct {
	users     domain.UserStore
	items     domain.ItemStore
	comments  domain.CommentStore
	requests  domain.RequestStore
	bookings  domain.BookingStore
	summaries BookingSummarizer
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewItemService(
	users domain.UserStore,
	items domain.ItemStore,
	comments domain.CommentStore,
	requests domain.RequestStore,
	bookings domain.BookingStore,
	summaries BookingSummarizer,
	logger *zerolog.Logger,
) *ItemService {
	return &ItemService{
		users:     users,
		items:     items,
		comments:  comments,
		requests:  requests,
		bookings:  bookings,
		summaries: summaries,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *ItemService) Create(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error) {
	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}
	if item.RequestID != nil {
		if _, err := s.requests.GetRequestByID(ctx, *item.RequestID); err != nil {
			return nil, err
		}
	}

	item.OwnerID = ownerID
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", ownerID).Msg("Item created")
	return item, nil
}

// Update applies a partial update on behalf of the item owner.
func (s *ItemService) Update(ctx context.Context, userID, itemID int64, patch models.ItemUpdate) (*models.Item, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID {
		return nil, fmt.Errorf("%w: item %d", domain.ErrNotItemOwner, itemID)
	}

	patch.Apply(item)
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) GetByID(ctx context.Context, viewerID, itemID int64) (*models.ItemDetails, error) {
	if _, err := s.users.GetUserByID(ctx, viewerID); err != nil {
		return nil, err
	}

	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	details, err := s.describe(ctx, viewerID, []*models.Item{item})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *ItemService) ListByOwner(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemDetails, error) {
	if err := checkWindow(from, size); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	items, err := pagination.Window(ctx, from, size, func(ctx context.Context, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
		return s.items.GetItemsByOwner(ctx, ownerID, page)
	})
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, ownerID, items)
}

// Search matches available items by name or description. Blank text matches nothing.
func (s *ItemService) Search(ctx context.Context, userID int64, text string, from, size int) ([]*models.Item, error) {
	if err := checkWindow(from, size); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return []*models.Item{}, nil
	}

	s.logger.Debug().Int64("user_id", userID).Str("text", text).Msg("Searching items")
	return pagination.Window(ctx, from, size, func(ctx context.Context, page pagination.PageRequest) (pagination.Page[*models.Item], error) {
		return s.items.SearchItems(ctx, text, page)
	})
}

// AddComment stores a review from a user whose booking of the item has ended.
func (s *ItemService) AddComment(ctx context.Context, userID, itemID int64, text string) (*models.Comment, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.items.GetItemByID(ctx, itemID); err != nil {
		return nil, err
	}

	finished, err := s.bookings.HasFinishedBooking(ctx, userID, itemID, s.now())
	if err != nil {
		return nil, err
	}
	if !finished {
		return nil, fmt.Errorf("%w: user %d item %d", domain.ErrCommentNotAllowed, userID, itemID)
	}

	comment := &models.Comment{Text: text, ItemID: itemID, AuthorID: userID}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *ItemService) describe(ctx context.Context, viewerID int64, items []*models.Item) ([]*models.ItemDetails, error) {
	details := make([]*models.ItemDetails, 0, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		details = append(details, &models.ItemDetails{Item: *item, Comments: []*models.Comment{}})
		ids = append(ids, item.ID)
	}
	if len(details) == 0 {
		return details, nil
	}

	comments, err := s.comments.GetCommentsByItemIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range details {
		if c, ok := comments[d.ID]; ok {
			d.Comments = c
		}
	}

	if err := s.summaries.AttachBookingSummaries(ctx, viewerID, details); err != nil {
		return nil, err
	}
	return details, nil
}
