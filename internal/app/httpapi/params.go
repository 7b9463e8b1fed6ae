package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	apperrors "github.com/bealive/bealive-api/internal/errors"
)

// pathID parses a positive integer path variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("%s must be a positive integer", name)
	}
	return id, nil
}

// pathUserID parses a UUID path variable.
func pathUserID(r *http.Request, name string) (string, error) {
	return parseUserID(mux.Vars(r)[name], name)
}

func parseUserID(raw, field string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.Validation("%s must be a UUID", field)
	}
	return id.String(), nil
}

// queryLimit returns 0 when absent so services apply their default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Validation("limit must be a positive integer")
	}
	return n, nil
}

// queryCursor parses the RFC3339 "cursor" parameter.
func queryCursor(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperrors.Validation("cursor must be an RFC3339 timestamp")
	}
	return &t, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be a boolean", name)
	}
	return &v, nil
}

// pageParams reads the cursor and limit query parameters.
func pageParams(r *http.Request) (*time.Time, int, error) {
	before, err := queryCursor(r)
	if err != nil {
		return nil, 0, err
	}
	limit, err := queryLimit(r)
	if err != nil {
		return nil, 0, err
	}
	return before, limit, nil
}
