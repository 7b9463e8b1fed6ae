package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bealive/bealive-api/internal/app/services/posts"
	"github.com/bealive/bealive-api/internal/app/services/uploads"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/httputil"
	"github.com/bealive/bealive-api/internal/middleware"
)

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	var body posts.CreateRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	created, err := h.svc.Posts.CreatePost(r.Context(), middleware.UserID(r.Context()), body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	full, err := h.svc.Posts.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, full)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Posts.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mediaRequest struct {
	MediaURL string `json:"media_url"`
}

func (h *handler) updatePostMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body mediaRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.svc.Posts.UpdateMedia(r.Context(), middleware.UserID(r.Context()), id, body.MediaURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	before, limit, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.svc.Posts.Feed(r.Context(), before, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *handler) trending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Aggregates.TrendingChallenges(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) userPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	before, limit, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.svc.Posts.ListByUser(r.Context(), userID, before, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

// maxUploadBytes caps server-mediated uploads.
const maxUploadBytes = 25 << 20

func (h *handler) presignUpload(w http.ResponseWriter, r *http.Request) {
	var body uploads.PresignRequest
	if err := httputil.DecodeJSON(r.Body, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	grant, err := h.svc.Uploads.Presign(r.Context(), middleware.UserID(r.Context()), body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grant)
}

func (h *handler) directUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, apperrors.Wrap(apperrors.KindValidation, err, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	postID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("post_id")), 10, 64)
	if err != nil || postID <= 0 {
		httputil.WriteError(w, apperrors.Validation("post_id must be a positive integer"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, apperrors.Validation("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, apperrors.Wrap(apperrors.KindValidation, err, "could not read file"))
		return
	}

	path, err := h.svc.Uploads.Direct(r.Context(), middleware.UserID(r.Context()), postID,
		header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"path": path})
}
