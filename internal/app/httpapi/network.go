package httpapi

import (
	"net/http"

	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/httputil"
	"github.com/bealive/bealive-api/internal/middleware"
)

type followRequest struct {
	TargetUserID string `json:"target_user_id"`
}

type contactsRequest struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

type contactsResponse struct {
	Matches []network.ContactMatch `json:"matches"`
}

func (h *handler) decodeTarget(r *http.Request) (string, error) {
	var body followRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		return "", err
	}
	return parseUserID(body.TargetUserID, "target_user_id")
}

func (h *handler) follow(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	conn, err := h.svc.Network.Follow(r.Context(), middleware.UserID(r.Context()), target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]network.Connection{"connection": conn})
}

func (h *handler) unfollowBody(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.unfollow(w, r, target)
}

func (h *handler) unfollowPath(w http.ResponseWriter, r *http.Request) {
	target, err := pathUserID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.unfollow(w, r, target)
}

func (h *handler) unfollow(w http.ResponseWriter, r *http.Request, target string) {
	if err := h.svc.Network.Unfollow(r.Context(), middleware.UserID(r.Context()), target); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listNetwork(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.Network.ListNetwork(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *handler) importContacts(w http.ResponseWriter, r *http.Request) {
	var body contactsRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := h.svc.Network.ImportContacts(r.Context(), body.Emails, body.Phones)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contactsResponse{Matches: matches})
}

func (h *handler) importAndFollow(w http.ResponseWriter, r *http.Request) {
	var body contactsRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := h.svc.Network.ImportAndFollow(r.Context(), middleware.UserID(r.Context()), body.Emails, body.Phones)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contactsResponse{Matches: matches})
}

func (h *handler) getMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profiles.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) patchMe(w http.ResponseWriter, r *http.Request) {
	var patch profile.Patch
	if err := httputil.DecodeJSON(r.Body, &patch); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.upsertProfile(w, r, patch)
}

type createProfileRequest struct {
	UserID *string `json:"user_id"`
	profile.Patch
}

func (h *handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var body createProfileRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.UserID != nil {
		id, err := parseUserID(*body.UserID, "user_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if id != middleware.UserID(r.Context()) {
			httputil.WriteError(w, apperrors.Forbidden("cannot write another user's profile"))
			return
		}
	}
	h.upsertProfile(w, r, body.Patch)
}

func (h *handler) upsertProfile(w http.ResponseWriter, r *http.Request, patch profile.Patch) {
	p, err := h.svc.Profiles.Upsert(r.Context(), middleware.UserID(r.Context()), patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) mySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Aggregates.UserSummary(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
