package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/export"
	"shareit/internal/models"
)

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decodeJSON(r, &user); err != nil {
		writeServiceError(w, r, err)
		return
	}
	created, err := s.services.Users.Create(r.Context(), &user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.services.Users.GetAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := s.services.Users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var patch models.UserUpdate
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := s.services.Users.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.services.Users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var item models.Item
	if err := decodeJSON(r, &item); err != nil {
		writeServiceError(w, r, err)
		return
	}
	created, err := s.services.Items.Create(r.Context(), userID, &item)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	itemID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var patch models.ItemUpdate
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	item, err := s.services.Items.Update(r.Context(), userID, itemID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	itemID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	item, err := s.services.Items.GetByID(r.Context(), userID, itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	from, size, err := s.window(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := s.services.Items.ListByOwner(r.Context(), userID, from, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	from, size, err := s.window(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := s.services.Items.Search(r.Context(), userID, r.URL.Query().Get("text"), from, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	itemID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	comment, err := s.services.Items.AddComment(r.Context(), userID, itemID, body.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req models.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	booking, err := s.services.Bookings.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleChangeBookingStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	approved, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("approved")))
	if err != nil {
		writeServiceError(w, r, domain.Validationf("approved must be true or false"))
		return
	}
	booking, err := s.services.Bookings.ChangeStatus(r.Context(), userID, bookingID, approved)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	booking, err := s.services.Bookings.GetByID(r.Context(), userID, bookingID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleListBookerBookings(w http.ResponseWriter, r *http.Request) {
	s.listBookings(w, r, s.services.Bookings.ListByBooker)
}

func (s *HTTPServer) handleListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	s.listBookings(w, r, s.services.Bookings.ListByOwner)
}

type bookingLister func(ctx context.Context, userID int64, state string, from, size int) ([]*models.Booking, error)

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request, list bookingLister) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	from, size, err := s.window(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	bookings, err := list(r.Context(), userID, r.URL.Query().Get("state"), from, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// handleExportOwnerBookings streams an owner's bucket as an XLSX workbook.
func (s *HTTPServer) handleExportOwnerBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rawState := r.URL.Query().Get("state")
	bookings, err := s.services.Bookings.ListByOwner(r.Context(), userID, rawState, 0, models.ExportMaxRows)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// state already validated by the listing
	state, _ := models.ParseBookingState(rawState)
	now := s.now()
	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, state, bookings, now); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(userID, state, now)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	request, err := s.services.Requests.Create(r.Context(), userID, body.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (s *HTTPServer) handleListOwnRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	requests, err := s.services.Requests.ListOwn(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *HTTPServer) handleListOtherRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	from, size, err := s.window(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	requests, err := s.services.Requests.ListOthers(r.Context(), userID, from, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	requestID, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	request, err := s.services.Requests.GetByID(r.Context(), userID, requestID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}
