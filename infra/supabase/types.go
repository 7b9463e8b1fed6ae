// Package supabase is a small client for the Supabase REST surfaces used by
// the API: PostgREST tables and RPCs, GoTrue user lookup and Storage uploads.
package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds Supabase client configuration.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co
	URL string
	// APIKey is the anon key sent as the apikey header.
	APIKey string
	// ServiceKey is the service role key. When set it authorizes requests
	// that carry no user token.
	ServiceKey string
	// HTTPClient is the underlying client; a pooled client is built when nil.
	HTTPClient *http.Client
	// Timeout bounds each gateway request. Defaults to 30s.
	Timeout time.Duration
	// AuthTimeout bounds user lookups, which are never retried. Defaults to 10s.
	AuthTimeout time.Duration

	Retry   Retry
	Breaker Breaker

	// Observer, when set, is called after every request.
	Observer Observer
}

// Observer receives the outcome of one gateway request. status is 0 when no
// response was received.
type Observer func(operation string, status int, elapsed time.Duration)

// User is the subset of a GoTrue user the API consumes.
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud"`
	Role         string         `json:"role"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// SignedUploadURL is a short-lived upload grant for one object.
type SignedUploadURL struct {
	URL   string
	Token string
	Path  string
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Count returns the total parsed from Content-Range ("0-9/42"), or -1.
func (r *Response) Count() int {
	cr := r.Headers.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(cr[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

// Error represents a Supabase API error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("supabase %d: %s", e.StatusCode, msg)
}

const (
	codeUniqueViolation = "23505"
	codeNoRows          = "PGRST116"
)

// IsUniqueViolation reports whether err is a PostgREST uniqueness conflict.
func IsUniqueViolation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == codeUniqueViolation || e.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err is a missing row or object.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == codeNoRows || e.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func parseError(body []byte, statusCode int) error {
	apiErr := &Error{StatusCode: statusCode}
	var raw struct {
		Code       json.RawMessage `json:"code"`
		Message    string          `json:"message"`
		Msg        string          `json:"msg"`
		Error      string          `json:"error"`
		ErrorDesc  string          `json:"error_description"`
		Details    string          `json:"details"`
		Hint       string          `json:"hint"`
		StatusCode json.RawMessage `json:"statusCode"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		apiErr.Code = strings.Trim(string(raw.Code), `"`)
		apiErr.Details = raw.Details
		apiErr.Hint = raw.Hint
		for _, m := range []string{raw.Message, raw.Msg, raw.ErrorDesc, raw.Error} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	} else if len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
