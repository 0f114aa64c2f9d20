package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/export"
	"shareit/internal/models"
	"shareit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testAPI struct {
	t  *testing.T
	ts *httptest.Server
	db *database.DB
}

func newTestAPI(t *testing.T, cfg *config.Config) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	bookings := service.NewBookingService(db, db, db, bus, &logger)
	services := Services{
		Users:    service.NewUserService(db, &logger),
		Items:    service.NewItemService(db, db, db, db, db, bookings, &logger),
		Bookings: bookings,
		Requests: service.NewRequestService(db, db, db, &logger),
	}

	if cfg == nil {
		cfg = &config.Config{}
	}
	srv := NewHTTPServer(cfg, services, db, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{t: t, ts: ts, db: db}
}

func (a *testAPI) do(method, path string, userID int64, body any) *http.Response {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(a.t, err)
	if userID != 0 {
		req.Header.Set(models.UserIDHeader, strconv.FormatInt(userID, 10))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *testAPI) createUser(name string) models.User {
	resp := a.do(http.MethodPost, "/users", 0, map[string]string{"name": name, "email": name + "@example.com"})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	return decode[models.User](a.t, resp)
}

func (a *testAPI) createItem(owner int64, name string) models.Item {
	resp := a.do(http.MethodPost, "/items", owner, map[string]any{"name": name, "description": name + " for rent", "available": true})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	return decode[models.Item](a.t, resp)
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[map[string]string](t, resp)["error"]
}

func TestBookingFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.createUser("owner")
	booker := api.createUser("booker")
	stranger := api.createUser("stranger")
	item := api.createItem(owner.ID, "Drill")

	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	resp := api.do(http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID,
		"start":  start,
		"end":    start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(models.RequestIDHeader))
	booking := decode[models.Booking](t, resp)
	assert.Equal(t, models.StatusWaiting, booking.Status)
	require.NotNil(t, booking.Item)
	assert.Equal(t, item.ID, booking.Item.ID)
	assert.Equal(t, booker.ID, booking.Booker.ID)

	path := fmt.Sprintf("/bookings/%d?approved=true", booking.ID)
	resp = api.do(http.MethodPatch, path, owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusApproved, decode[models.Booking](t, resp).Status)

	resp = api.do(http.MethodPatch, path, owner.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=false", booking.ID), booker.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID), booker.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID), stranger.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(http.MethodGet, "/bookings/999", owner.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(http.MethodGet, "/bookings?state=FUTURE", booker.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Booking](t, resp), 1)

	resp = api.do(http.MethodGet, "/bookings/owner", owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Booking](t, resp), 1)

	resp = api.do(http.MethodGet, fmt.Sprintf("/items/%d", item.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	details := decode[models.ItemDetails](t, resp)
	require.NotNil(t, details.NextBooking)
	assert.Equal(t, booking.ID, details.NextBooking.ID)

	resp = api.do(http.MethodGet, fmt.Sprintf("/items/%d", item.ID), stranger.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[models.ItemDetails](t, resp).NextBooking)
}

func TestBookingErrorsOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.createUser("owner")
	item := api.createItem(owner.ID, "Tent")
	start := time.Now().Add(time.Hour).UTC()

	resp := api.do(http.MethodPost, "/bookings", owner.ID, map[string]any{"itemId": item.ID, "start": start, "end": start.Add(time.Hour)})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "self booking")

	resp = api.do(http.MethodGet, "/bookings?state=UNSUPPORTED_STATUS", owner.ID, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown state: UNSUPPORTED_STATUS", errorBody(t, resp))

	resp = api.do(http.MethodGet, "/bookings?from=-1", owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodGet, "/bookings?size=abc", owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodGet, "/bookings", 0, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing user header")

	resp = api.do(http.MethodGet, "/bookings", 999, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(http.MethodPatch, "/bookings/1?approved=maybe", owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	name := "Closed tent"
	available := false
	resp = api.do(http.MethodPatch, fmt.Sprintf("/items/%d", item.ID), owner.ID, models.ItemUpdate{Name: &name, Available: &available})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	booker := api.createUser("booker")
	resp = api.do(http.MethodPost, "/bookings", booker.ID, map[string]any{"itemId": item.ID, "start": start, "end": start.Add(time.Hour)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unavailable item")
}

func TestOversizedPagesAreRejected(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.createUser("owner")
	booker := api.createUser("booker")
	item := api.createItem(owner.ID, "Tent")
	start := time.Now().Add(time.Hour).UTC()
	resp := api.do(http.MethodPost, "/bookings", booker.ID, map[string]any{"itemId": item.ID, "start": start, "end": start.Add(time.Hour)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, path := range []string{
		"/bookings?from=0&size=9223372036854775807",
		"/bookings?from=1&size=4611686018427387904",
		"/bookings/owner?from=3&size=10001",
		"/items?size=9223372036854775807",
		"/items/search?text=tent&from=1&size=4611686018427387904",
		"/requests/all?size=9223372036854775807",
	} {
		resp := api.do(http.MethodGet, path, owner.ID, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, errorBody(t, resp), "size must be between 1 and 10000", path)
	}

	resp = api.do(http.MethodGet, "/bookings?from=0&size=10000", booker.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Booking](t, resp), 1)
}

func TestUsersOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	user := api.createUser("alice")

	resp := api.do(http.MethodPost, "/users", 0, map[string]string{"name": "other", "email": "alice@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.do(http.MethodPost, "/users", 0, map[string]any{"name": "x", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodPatch, fmt.Sprintf("/users/%d", user.ID), 0, map[string]string{"name": "Alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alice", decode[models.User](t, resp).Name)

	resp = api.do(http.MethodGet, "/users", 0, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.User](t, resp), 1)

	resp = api.do(http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(http.MethodGet, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(http.MethodGet, "/users/abc", 0, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemsAndRequestsOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.createUser("owner")
	requester := api.createUser("requester")

	resp := api.do(http.MethodPost, "/requests", requester.ID, map[string]string{"description": "need a kayak"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	request := decode[models.ItemRequest](t, resp)

	resp = api.do(http.MethodPost, "/items", owner.ID, map[string]any{
		"name": "Kayak", "description": "two seats", "available": true, "requestId": request.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	kayak := decode[models.Item](t, resp)

	for i := 0; i < 3; i++ {
		api.createItem(owner.ID, fmt.Sprintf("Paddle %d", i))
	}

	resp = api.do(http.MethodGet, "/items?from=1&size=2", owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[[]models.ItemDetails](t, resp)
	require.Len(t, page, 2)
	assert.Equal(t, "Paddle 0", page[0].Name)

	resp = api.do(http.MethodGet, "/items/search?text=KAYAK", requester.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[[]models.Item](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, kayak.ID, found[0].ID)

	resp = api.do(http.MethodGet, "/items/search?text=", requester.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Item](t, resp))

	resp = api.do(http.MethodPost, fmt.Sprintf("/items/%d/comment", kayak.ID), requester.ID, map[string]string{"text": "nice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(http.MethodGet, "/requests", requester.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	own := decode[[]models.ItemRequest](t, resp)
	require.Len(t, own, 1)
	require.Len(t, own[0].Items, 1)
	assert.Equal(t, kayak.ID, own[0].Items[0].ID)

	resp = api.do(http.MethodGet, "/requests/all", owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.ItemRequest](t, resp), 1)

	resp = api.do(http.MethodGet, fmt.Sprintf("/requests/%d", request.ID), owner.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/requests/999", owner.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportOwnerBookings(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := api.createUser("owner")
	booker := api.createUser("booker")
	item := api.createItem(owner.ID, "Camera")

	start := time.Now().Add(2 * time.Hour).UTC()
	resp := api.do(http.MethodPost, "/bookings", booker.ID, map[string]any{"itemId": item.ID, "start": start, "end": start.Add(time.Hour)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(http.MethodGet, "/bookings/owner/export?state=WAITING", owner.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Camera", rows[3][1])

	resp = api.do(http.MethodGet, "/bookings/owner/export?state=nope", owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, api.db.Close())
	resp = api.do(http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDIsPropagated(t *testing.T) {
	api := newTestAPI(t, nil)
	req, err := http.NewRequest(http.MethodGet, api.ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(models.RequestIDHeader, "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(models.RequestIDHeader))
}

func TestServerRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	api := newTestAPI(t, cfg)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		statuses = append(statuses, api.do(http.MethodGet, "/users", 0, nil).StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// a different user has its own bucket
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/bookings", 42, nil).StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUserNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: 5", domain.ErrSelfBooking), http.StatusNotFound},
		{domain.ErrNotAuthorized, http.StatusForbidden},
		{domain.ErrAlreadyInState, http.StatusConflict},
		{domain.ErrConcurrentModification, http.StatusConflict},
		{domain.ErrUnknownState, http.StatusBadRequest},
		{domain.Validationf("bad"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	logger := zerolog.New(io.Discard)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	writeServiceError(rec, req, errors.New("sql: connection refused at 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
