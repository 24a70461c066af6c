package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/crucial707/postfeed/internal/feed"
	"github.com/crucial707/postfeed/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is buffered in memory before
// spilling to temp files. The total size is bounded by the MaxBytes middleware.
const multipartMemory = 8 << 20

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ==========================
// Feed Handler
// ==========================
type FeedHandler struct {
	Feed *feed.Service
}

func requireUser(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := middleware.GetUserID(r.Context()); !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return false
	}
	return true
}

// ==========================
// List posts (?page=N, 2 per page)
// ==========================
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if !requireUser(w, r) {
		return
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	res, err := h.Feed.ListPosts(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Fetched posts successfully.",
		"posts":      res.Posts,
		"totalItems": res.TotalItems,
	})
}

// readPostForm fills in from a multipart, urlencoded or JSON body and returns
// the attached image (nil when none) and the "image" text field.
func readPostForm(w http.ResponseWriter, r *http.Request, in *feed.PostInput) (up *feed.Upload, closeFn func(), existing string, ok bool) {
	closeFn = func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var body struct {
			feed.PostInput
			Image string `json:"image"`
		}
		if !decodeJSON(w, r, &body) {
			return nil, closeFn, "", false
		}
		*in = body.PostInput
		return nil, closeFn, body.Image, true

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			if tooLarge(err) {
				JSONError(w, "Request body too large.", http.StatusRequestEntityTooLarge)
			} else {
				JSONError(w, "invalid form data", http.StatusUnprocessableEntity)
			}
			return nil, closeFn, "", false
		}
		closeFn = func() { r.MultipartForm.RemoveAll() }

		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			up = &feed.Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Body:        file,
			}
			removeAll := closeFn
			closeFn = func() {
				file.Close()
				removeAll()
			}
		case !errors.Is(err, http.ErrMissingFile):
			closeFn()
			JSONError(w, "invalid form data", http.StatusUnprocessableEntity)
			return nil, func() {}, "", false
		}

	default:
		if err := r.ParseForm(); err != nil {
			JSONError(w, "invalid form data", http.StatusUnprocessableEntity)
			return nil, closeFn, "", false
		}
	}

	in.Title = r.FormValue("title")
	in.Content = r.FormValue("content")
	return up, closeFn, r.FormValue("image"), true
}

// ==========================
// Create post (multipart: title, content, image)
// ==========================
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	var input feed.PostInput
	up, done, _, ok := readPostForm(w, r, &input)
	if !ok {
		return
	}
	defer done()

	post, err := h.Feed.CreatePost(r.Context(), userID, input, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Post created successfully!",
		"post":    post,
		"creator": post.Creator,
	})
}

// ==========================
// Get post
// ==========================
func (h *FeedHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	if !requireUser(w, r) {
		return
	}

	post, err := h.Feed.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Post fetched.",
		"post":    post,
	})
}

// ==========================
// Update post (owner only)
// ==========================
func (h *FeedHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	var input feed.PostInput
	up, done, existing, ok := readPostForm(w, r, &input)
	if !ok {
		return
	}
	defer done()

	post, err := h.Feed.UpdatePost(r.Context(), userID, chi.URLParam(r, "postId"), input, up, existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Post updated!",
		"post":    post,
	})
}

// ==========================
// Delete post (owner only)
// ==========================
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	if err := h.Feed.DeletePost(r.Context(), userID, chi.URLParam(r, "postId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted post."})
}

// ==========================
// Activity (?limit=&offset=)
// ==========================
func (h *FeedHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		JSONError(w, "Not authenticated.", http.StatusUnauthorized)
		return
	}

	limit := defaultActivityLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			JSONError(w, "limit must be a positive integer", http.StatusUnprocessableEntity)
			return
		}
		limit = min(n, maxActivityLimit)
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			JSONError(w, "offset must be a non-negative integer", http.StatusUnprocessableEntity)
			return
		}
		offset = n
	}

	items, err := h.Feed.Activity(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}
