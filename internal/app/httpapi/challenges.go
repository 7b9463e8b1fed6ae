package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/services/challenges"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/httputil"
	"github.com/bealive/bealive-api/internal/middleware"
)

type createChallengeRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (h *handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	var body createChallengeRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	created, err := h.svc.Challenges.Create(r.Context(), challenge.Challenge{
		OwnerID:     middleware.UserID(r.Context()),
		Title:       body.Title,
		Description: body.Description,
		AmountCents: body.AmountCents,
		StartsAt:    body.StartsAt,
		EndsAt:      body.EndsAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	filter := challenges.ListFilter{}
	if raw := r.URL.Query().Get("creator_id"); raw != "" {
		ownerID, err := parseUserID(raw, "creator_id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.OwnerID = ownerID
	}
	active, err := queryBool(r, "active")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.Active = active
	if filter.Before, filter.Limit, err = pageParams(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	items, err := h.svc.Challenges.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) searchChallenges(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Challenges.Search(r.Context(), q, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) getChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.svc.Challenges.GetDetail(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *handler) updateChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var patch challenge.Patch
	if err := httputil.DecodeJSON(r.Body, &patch); err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.svc.Challenges.Update(r.Context(), middleware.UserID(r.Context()), id, patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) challengeStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.svc.Aggregates.ChallengeStats(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handler) challengePosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	before, limit, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Challenges.ListPosts(r.Context(), id, before, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

type commitmentRequest struct {
	Direction      string `json:"direction"`
	Side           string `json:"side"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *handler) createCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body commitmentRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	side := body.Direction
	if side == "" {
		side = body.Side
	}
	if strings.TrimSpace(side) == "" {
		httputil.WriteError(w, apperrors.Validation("direction is required"))
		return
	}
	key := body.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	c, created, err := h.svc.Commitments.Create(r.Context(), middleware.UserID(r.Context()), id, side, key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, c)
}

func (h *handler) listCommitments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Commitments.ListForChallenge(r.Context(), id, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) myCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Commitments.GetMine(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) myCommitments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Commitments.ListMine(r.Context(), middleware.UserID(r.Context()), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}
