package service

import (
	"context"

	"shareit/internal/domain"
	"shareit/internal/models"
	"shareit/internal/pagination"

	"github.com/rs/zerolog"
)

type RequestService struct {
	users    domain.UserStore
	requests domain.RequestStore
	items    domain.ItemStore
	logger   *zerolog.Logger
}

func NewRequestService(users domain.UserStore, requests domain.RequestStore, items domain.ItemStore, logger *zerolog.Logger) *RequestService {
	return &RequestService{users: users, requests: requests, items: items, logger: logger}
}

func (s *RequestService) Create(ctx context.Context, requesterID int64, description string) (*models.ItemRequest, error) {
	if _, err := s.users.GetUserByID(ctx, requesterID); err != nil {
		return nil, err
	}

	request := &models.ItemRequest{Description: description, RequesterID: requesterID, Items: []*models.Item{}}
	if err := s.requests.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("request_id", request.ID).Int64("requester_id", requesterID).Msg("Item request created")
	return request, nil
}

func (s *RequestService) ListOwn(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error) {
	if _, err := s.users.GetUserByID(ctx, requesterID); err != nil {
		return nil, err
	}

	requests, err := s.requests.GetRequestsByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, requests)
}

// ListOthers pages the requests filed by everyone except requesterID, newest first.
func (s *RequestService) ListOthers(ctx context.Context, requesterID int64, from, size int) ([]*models.ItemRequest, error) {
	if err := checkWindow(from, size); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, requesterID); err != nil {
		return nil, err
	}

	requests, err := pagination.Window(ctx, from, size, func(ctx context.Context, page pagination.PageRequest) (pagination.Page[*models.ItemRequest], error) {
		return s.requests.GetRequestsExcept(ctx, requesterID, page)
	})
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, requests)
}

func (s *RequestService) GetByID(ctx context.Context, userID, requestID int64) (*models.ItemRequest, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	request, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	out, err := s.withItems(ctx, []*models.ItemRequest{request})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// withItems attaches the items created in answer to each request.
func (s *RequestService) withItems(ctx context.Context, requests []*models.ItemRequest) ([]*models.ItemRequest, error) {
	if len(requests) == 0 {
		return []*models.ItemRequest{}, nil
	}

	ids := make([]int64, 0, len(requests))
	byID := make(map[int64]*models.ItemRequest, len(requests))
	for _, r := range requests {
		r.Items = []*models.Item{}
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}

	items, err := s.items.GetItemsByRequestIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.RequestID == nil {
			continue
		}
		if r, ok := byID[*item.RequestID]; ok {
			r.Items = append(r.Items, item)
		}
	}
	return requests, nil
}
