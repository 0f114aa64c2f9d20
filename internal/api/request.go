package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// actorID reads the acting user from the sharer header.
func actorID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(models.UserIDHeader))
	if raw == "" {
		return 0, domain.Validationf("header %s is required", models.UserIDHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Validationf("header %s must be a number", models.UserIDHeader)
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, domain.Validationf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", name)
	}
	return v, nil
}

// window reads the from/size pair of a paged listing.
func (s *HTTPServer) window(r *http.Request) (int, int, error) {
	from, err := queryInt(r, "from", models.DefaultFrom)
	if err != nil {
		return 0, 0, err
	}
	size, err := queryInt(r, "size", s.defaultSize)
	if err != nil {
		return 0, 0, err
	}
	return from, size, nil
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("request body is required")
		}
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
