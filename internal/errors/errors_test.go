package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		kind   Kind
		status int
	}{
		{Validation("bad"), KindValidation, http.StatusBadRequest},
		{Unauthorized("no token"), KindUnauthorized, http.StatusUnauthorized},
		{Forbidden("not owner"), KindForbidden, http.StatusForbidden},
		{NotFound("missing"), KindNotFound, http.StatusNotFound},
		{Conflict("locked"), KindConflict, http.StatusConflict},
		{Unavailable("not configured"), KindUnavailable, http.StatusInternalServerError},
		{BadGateway(stderrors.New("dial"), "auth down"), KindBadGateway, http.StatusBadGateway},
		{RateLimitExceeded(10, "1s"), KindRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("%v: kind %s, want %s", tc.err, got, tc.kind)
		}
		if got := HTTPStatus(tc.err); got != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("update challenge: %w", Conflict("challenge is locked"))
	if !IsConflict(err) {
		t.Fatalf("expected conflict through wrap, got %s", KindOf(err))
	}
	if HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", HTTPStatus(err))
	}
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := stderrors.New("boom")
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal, got %s", KindOf(err))
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", HTTPStatus(err))
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil error should have no kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := BadGateway(cause, "gateway unreachable")
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "gateway unreachable: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
